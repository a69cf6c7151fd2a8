package outputs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// Gauge names, one per known metric
var metricGaugeNames = map[models.MetricKind]string{
	models.MetricCitations: "scholar_citations_all",
	models.MetricHIndex:    "scholar_h_index_all",
	models.MetricI10Index:  "scholar_i10_index_all",
}

// PrometheusOutput pushes the latest snapshot to a Pushgateway. The process
// exits after one run, so there is nothing for a scraper to poll.
type PrometheusOutput struct {
	config *config.PrometheusConfig
	now    func() time.Time
}

// NewPrometheusOutput creates a new Pushgateway output
func NewPrometheusOutput(cfg *config.PrometheusConfig) (*PrometheusOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	return &PrometheusOutput{
		config: cfg,
		now:    time.Now,
	}, nil
}

// Write replaces the profile's metric group with the snapshot's values.
// Absent metrics are left out rather than reported as zero.
func (p *PrometheusOutput) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	if p == nil {
		return nil
	}

	registry := prometheus.NewRegistry()

	for _, kind := range models.KnownMetrics {
		value := snapshot.Metric(kind)
		if value == nil {
			continue
		}
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricGaugeNames[kind],
			Help: fmt.Sprintf("All-time %s of the profile", kind.Label()),
		})
		gauge.Set(float64(*value))
		registry.MustRegister(gauge)
	}

	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scholar_last_success_timestamp_seconds",
		Help: "Unix timestamp of the last successful fetch",
	})
	lastSuccess.Set(float64(snapshot.FetchedAt.Time().Unix()))
	registry.MustRegister(lastSuccess)

	if err := p.pusher(snapshot.Source, registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// ReportFailure records the failure time without discarding the last good values
func (p *PrometheusOutput) ReportFailure(ctx context.Context, source string, err error) error {
	if p == nil {
		return nil
	}

	registry := prometheus.NewRegistry()

	lastFailure := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scholar_last_failure_timestamp_seconds",
		Help: "Unix timestamp of the last failed fetch",
	}, []string{"category"})
	lastFailure.WithLabelValues(browser.ErrorCategory(err)).Set(float64(p.now().Unix()))
	registry.MustRegister(lastFailure)

	if err := p.pusher(source, registry).AddContext(ctx); err != nil {
		return fmt.Errorf("failed to push failure metric: %w", err)
	}
	return nil
}

func (p *PrometheusOutput) pusher(source string, g prometheus.Gatherer) *push.Pusher {
	return push.New(p.config.PushgatewayURL, p.config.Job).
		Grouping("profile", source).
		Gatherer(g)
}

// Name returns the output module name
func (p *PrometheusOutput) Name() string {
	return "prometheus"
}
