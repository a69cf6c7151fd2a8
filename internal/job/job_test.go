package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/metrics"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
	"github.com/nickborgers/monorepo/scholar-citations/internal/outputs"
	"github.com/nickborgers/monorepo/scholar-citations/internal/scholar"
)

const profileURL = "https://scholar.google.com/citations?user=abc123&hl=en"

const scenarioAPage = `<html><body>
<div id="gsc_prf_in">Jane Doe</div>
<table id="gsc_rsb_st"><tbody>
<tr><td class="gsc_rsb_sth">Citations</td><td class="gsc_rsb_std">1,200</td><td class="gsc_rsb_std">800</td></tr>
<tr><td class="gsc_rsb_sth">h-index</td><td class="gsc_rsb_std">15</td><td class="gsc_rsb_std">10</td></tr>
<tr><td class="gsc_rsb_sth">i10-index</td><td class="gsc_rsb_std">22</td><td class="gsc_rsb_std">14</td></tr>
</tbody></table></body></html>`

type stubSession struct {
	html       string
	waitErr    error
	closeCount int
}

func (s *stubSession) Navigate(url string) error     { return nil }
func (s *stubSession) WaitFor(selector string) error { return s.waitErr }
func (s *stubSession) Query(selector string) (string, error) {
	return s.html, nil
}
func (s *stubSession) Close() error {
	s.closeCount++
	return nil
}

type stubController struct {
	session *stubSession
}

func (c *stubController) Open(ctx context.Context) (browser.Session, error) {
	return c.session, nil
}

// captureOutput records what the dispatcher hands it
type captureOutput struct {
	snapshots []*models.ProfileSnapshot
	failures  []error
}

func (c *captureOutput) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	c.snapshots = append(c.snapshots, snapshot)
	return nil
}

func (c *captureOutput) ReportFailure(ctx context.Context, source string, err error) error {
	c.failures = append(c.failures, err)
	return nil
}

func (c *captureOutput) Name() string { return "capture" }

func newTestJob(session *stubSession, path string) (*Job, *captureOutput) {
	capture := &captureOutput{}
	dispatcher := metrics.NewDispatcher()
	dispatcher.RegisterOutput(capture)
	return New(&stubController{session: session}, outputs.NewFileWriter(path), dispatcher), capture
}

func int64Ptr(n int64) *int64 { return &n }
func strPtr(s string) *string  { return &s }

func TestRun_WritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "citation.json")
	session := &stubSession{html: scenarioAPage}
	job, capture := newTestJob(session, path)

	start := time.Now().Truncate(time.Millisecond)
	snapshot, err := job.Run(context.Background(), profileURL)
	end := time.Now()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := &models.ProfileSnapshot{
		Name:        strPtr("Jane Doe"),
		CitationAll: int64Ptr(1200),
		HIndexAll:   int64Ptr(15),
		I10IndexAll: int64Ptr(22),
		Source:      profileURL,
	}
	ignoreTime := cmpopts.IgnoreFields(models.ProfileSnapshot{}, "FetchedAt")

	if diff := cmp.Diff(expected, snapshot, ignoreTime); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected output file: %v", err)
	}
	var written models.ProfileSnapshot
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("Output file is not valid JSON: %v", err)
	}
	if diff := cmp.Diff(expected, &written, ignoreTime); diff != "" {
		t.Errorf("Written file mismatch (-want +got):\n%s", diff)
	}

	fetchedAt := written.FetchedAt.Time()
	if fetchedAt.Before(start) || fetchedAt.After(end) {
		t.Errorf("fetched_at %v outside run bounds [%v, %v]", fetchedAt, start, end)
	}

	if len(capture.snapshots) != 1 {
		t.Errorf("Expected optional outputs to receive 1 snapshot, got %d", len(capture.snapshots))
	}
	if session.closeCount != 1 {
		t.Errorf("Expected session closed once, got %d", session.closeCount)
	}
}

func TestRun_TableMissingLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citation.json")
	previous := []byte(`{"name":"previous run"}`)
	if err := os.WriteFile(path, previous, 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	session := &stubSession{waitErr: fmt.Errorf("%w: %s", browser.ErrElementNotFound, scholar.StatsTableSelector)}
	job, capture := newTestJob(session, path)

	snapshot, err := job.Run(context.Background(), profileURL)
	if !errors.Is(err, browser.ErrElementNotFound) {
		t.Fatalf("Expected ErrElementNotFound, got %v", err)
	}
	if snapshot != nil {
		t.Error("Expected no snapshot on failure")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != string(previous) {
		t.Errorf("Expected previous output to be untouched, got %s", data)
	}

	if len(capture.snapshots) != 0 {
		t.Error("Expected no snapshot to be dispatched")
	}
	if len(capture.failures) != 1 {
		t.Errorf("Expected 1 failure report, got %d", len(capture.failures))
	}
	if session.closeCount != 1 {
		t.Errorf("Expected session closed once, got %d", session.closeCount)
	}
}

func TestRun_TableMissingCreatesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "citation.json")
	session := &stubSession{waitErr: browser.ErrElementNotFound}
	job, _ := newTestJob(session, path)

	if _, err := job.Run(context.Background(), profileURL); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected no output file, stat returned %v", err)
	}
}

func TestRun_WriteFailure(t *testing.T) {
	// A directory in place of the output file makes the final rename fail
	path := filepath.Join(t.TempDir(), "citation.json")
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	session := &stubSession{html: scenarioAPage}
	job, capture := newTestJob(session, path)

	if _, err := job.Run(context.Background(), profileURL); err == nil {
		t.Fatal("Expected write error, got nil")
	}
	if len(capture.snapshots) != 0 {
		t.Error("Expected no dispatch after a failed write")
	}
	if len(capture.failures) != 1 {
		t.Errorf("Expected the write failure to be reported, got %d reports", len(capture.failures))
	}
}
