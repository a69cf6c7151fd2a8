package models

import (
	"strings"
	"time"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ProfileSnapshot is one capture of a researcher's citation profile.
// Field order and JSON names are the output file contract.
type ProfileSnapshot struct {
	// Name is the profile owner's display name (nil when the element is missing)
	Name *string `json:"name"`

	// CitationAll is the all-time citation count
	CitationAll *int64 `json:"citation_all"`

	// HIndexAll is the all-time h-index
	HIndexAll *int64 `json:"h_index_all"`

	// I10IndexAll is the all-time i10-index
	I10IndexAll *int64 `json:"i10_index_all"`

	// FetchedAt is when extraction completed
	FetchedAt Timestamp `json:"fetched_at"`

	// Source is the exact profile URL that was fetched
	Source string `json:"source"`
}

// Metric returns the value recorded for kind, or nil
func (s *ProfileSnapshot) Metric(kind MetricKind) *int64 {
	switch kind {
	case MetricCitations:
		return s.CitationAll
	case MetricHIndex:
		return s.HIndexAll
	case MetricI10Index:
		return s.I10IndexAll
	}
	return nil
}

// SetMetric stores value under the field for kind. Unknown kinds are ignored.
func (s *ProfileSnapshot) SetMetric(kind MetricKind, value *int64) {
	switch kind {
	case MetricCitations:
		s.CitationAll = value
	case MetricHIndex:
		s.HIndexAll = value
	case MetricI10Index:
		s.I10IndexAll = value
	}
}

// StatRow is one row of the rendered statistics table
type StatRow struct {
	Label       string
	AllTime     *string
	SinceCutoff *string
}

// MetricKind enumerates the statistics the snapshot records
type MetricKind int

const (
	MetricCitations MetricKind = iota
	MetricHIndex
	MetricI10Index
)

// KnownMetrics lists every metric kind in output order
var KnownMetrics = []MetricKind{MetricCitations, MetricHIndex, MetricI10Index}

// Label returns the table label the page uses for this metric
func (k MetricKind) Label() string {
	switch k {
	case MetricCitations:
		return "Citations"
	case MetricHIndex:
		return "h-index"
	case MetricI10Index:
		return "i10-index"
	default:
		return "unknown"
	}
}

func (k MetricKind) String() string {
	return k.Label()
}

// MetricKindForLabel maps an observed table label to a known metric.
// Matching ignores surrounding whitespace and case; unrecognized labels return false.
func MetricKindForLabel(label string) (MetricKind, bool) {
	label = strings.TrimSpace(label)
	for _, k := range KnownMetrics {
		if strings.EqualFold(label, k.Label()) {
			return k, true
		}
	}
	return 0, false
}

// Timestamp is a time.Time that always serializes in UTC with millisecond precision
type Timestamp time.Time

// NewTimestamp converts t to UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

// Time returns the underlying time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(TimestampLayout)
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler. Any RFC 3339 value is accepted.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	*t = NewTimestamp(parsed)
	return nil
}
