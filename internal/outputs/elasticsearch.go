package outputs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// ElasticsearchOutput keeps the latest snapshot of each profile in Elasticsearch.
// Documents are keyed by profile URL, so each run overwrites the previous one.
type ElasticsearchOutput struct {
	config *config.ElasticsearchConfig
	client *elasticsearch.Client
}

// Upper bound on the startup connection check
const elasticsearchConnectTimeout = 5 * time.Second

// snapshotDocument is the indexed form of a snapshot
type snapshotDocument struct {
	*models.ProfileSnapshot
	Timestamp models.Timestamp `json:"@timestamp"`
}

// NewElasticsearchOutput creates a new Elasticsearch output. The connection
// check is bounded by ctx and elasticsearchConnectTimeout.
func NewElasticsearchOutput(ctx context.Context, cfg *config.ElasticsearchConfig) (*ElasticsearchOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// Build Elasticsearch configuration
	esCfg := elasticsearch.Config{
		Addresses:     []string{cfg.Endpoint},
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	}

	// Configure authentication
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	// Configure TLS
	if cfg.TLSSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	// Test connection
	infoCtx, cancel := context.WithTimeout(ctx, elasticsearchConnectTimeout)
	defer cancel()

	res, err := client.Info(client.Info.WithContext(infoCtx))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch returned error: %s", res.Status())
	}

	slog.Info("Connected to Elasticsearch", "endpoint", cfg.Endpoint)

	return &ElasticsearchOutput{
		config: cfg,
		client: client,
	}, nil
}

// Write indexes snapshot under a document ID derived from its source URL
func (e *ElasticsearchOutput) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	if e == nil {
		return nil
	}

	data, err := json.Marshal(snapshotDocument{
		ProfileSnapshot: snapshot,
		Timestamp:       snapshot.FetchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	index := e.formatIndexName(snapshot.FetchedAt.Time())
	res, err := e.client.Index(
		index,
		bytes.NewReader(data),
		e.client.Index.WithContext(ctx),
		e.client.Index.WithDocumentID(DocumentID(snapshot.Source)),
	)
	if err != nil {
		return fmt.Errorf("failed to index snapshot: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("Elasticsearch rejected snapshot: %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}

	return nil
}

// DocumentID returns the stable document ID for a profile URL
func DocumentID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

// formatIndexName formats the index name using the configured pattern
func (e *ElasticsearchOutput) formatIndexName(t time.Time) string {
	indexName := e.config.IndexPattern
	t = t.UTC()

	// %{+yyyy.MM.dd} -> 2024.01.15
	if strings.Contains(indexName, "%{+yyyy.MM.dd}") {
		indexName = strings.ReplaceAll(indexName, "%{+yyyy.MM.dd}", t.Format("2006.01.02"))
	}

	// %{+yyyy.MM} -> 2024.01
	if strings.Contains(indexName, "%{+yyyy.MM}") {
		indexName = strings.ReplaceAll(indexName, "%{+yyyy.MM}", t.Format("2006.01"))
	}

	// %{+yyyy} -> 2024
	if strings.Contains(indexName, "%{+yyyy}") {
		indexName = strings.ReplaceAll(indexName, "%{+yyyy}", t.Format("2006"))
	}

	return indexName
}

// Name returns the output module name
func (e *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}
