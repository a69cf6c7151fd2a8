package scholar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

const (
	// StatsTableSelector matches the citation statistics table container
	StatsTableSelector = "#gsc_rsb_st"

	// NameSelector matches the profile owner's display name
	NameSelector = "#gsc_prf_in"

	// DocumentSelector is queried once to snapshot the rendered page
	DocumentSelector = "html"

	rowSelector   = StatsTableSelector + " tbody tr"
	labelSelector = "td.gsc_rsb_sth"
	valueSelector = "td.gsc_rsb_std"
)

// Grouping separators seen in locale-formatted counts: comma, ASCII space,
// no-break space, narrow no-break space and apostrophe
var groupingSeparators = strings.NewReplacer(
	",", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"'", "",
)

// Extract snapshots the rendered document from session and normalizes it
func Extract(session browser.Session, source string, now func() time.Time) (*models.ProfileSnapshot, error) {
	html, err := session.Query(DocumentSelector)
	if err != nil {
		return nil, fmt.Errorf("reading rendered document: %w", err)
	}

	name, rows, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}

	return Normalize(name, rows, source, now()), nil
}

// ParseDocument collects the display name and the statistics rows from html.
// The name is nil only when its element is missing.
// Rows without a label are discarded; empty value cells are recorded as absent.
func ParseDocument(html string) (*string, []models.StatRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing rendered document: %w", err)
	}

	// An empty name element still yields "", only a missing one yields nil
	var name *string
	if sel := doc.Find(NameSelector).First(); sel.Length() > 0 {
		text := collapseSpace(sel.Text())
		name = &text
	}

	var rows []models.StatRow
	doc.Find(rowSelector).Each(func(_ int, tr *goquery.Selection) {
		label := collapseSpace(tr.Find(labelSelector).First().Text())
		if label == "" {
			return
		}

		row := models.StatRow{Label: label}
		values := tr.Find(valueSelector)
		if values.Length() > 0 {
			row.AllTime = textOrNil(values.Eq(0))
		}
		if values.Length() > 1 {
			row.SinceCutoff = textOrNil(values.Eq(1))
		}
		rows = append(rows, row)
	})

	return name, rows, nil
}

// Normalize assembles a snapshot from the parsed rows. A repeated label keeps
// its last occurrence and unrecognized labels are ignored.
func Normalize(name *string, rows []models.StatRow, source string, fetchedAt time.Time) *models.ProfileSnapshot {
	byKind := make(map[models.MetricKind]models.StatRow, len(models.KnownMetrics))
	for _, row := range rows {
		if kind, ok := models.MetricKindForLabel(row.Label); ok {
			byKind[kind] = row
		}
	}

	snapshot := &models.ProfileSnapshot{
		Name:      name,
		FetchedAt: models.NewTimestamp(fetchedAt),
		Source:    source,
	}

	for _, kind := range models.KnownMetrics {
		row, ok := byKind[kind]
		if !ok || row.AllTime == nil {
			continue
		}
		snapshot.SetMetric(kind, ParseCount(*row.AllTime))
	}

	return snapshot
}

// ParseCount strips grouping separators and parses s as a base-10 integer.
// Empty or malformed input returns nil.
func ParseCount(s string) *int64 {
	cleaned := groupingSeparators.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return nil
	}

	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func textOrNil(sel *goquery.Selection) *string {
	text := collapseSpace(sel.Text())
	if text == "" {
		return nil
	}
	return &text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
