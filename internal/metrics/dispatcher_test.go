package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// recordingOutput counts writes and optionally fails
type recordingOutput struct {
	name     string
	writeErr error

	mu       sync.Mutex
	written  []*models.ProfileSnapshot
	failures []string
}

func (r *recordingOutput) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = append(r.written, snapshot)
	return r.writeErr
}

func (r *recordingOutput) Name() string { return r.name }

// reportingOutput also implements FailureReporter
type reportingOutput struct {
	recordingOutput
}

func (r *reportingOutput) ReportFailure(ctx context.Context, source string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, source+": "+err.Error())
	return nil
}

func TestDispatcher_DispatchReachesAllOutputs(t *testing.T) {
	d := NewDispatcher()
	failing := &recordingOutput{name: "failing", writeErr: errors.New("unreachable")}
	ok := &recordingOutput{name: "ok"}
	d.RegisterOutput(failing)
	d.RegisterOutput(ok)

	snapshot := &models.ProfileSnapshot{Source: "https://example.test/profile"}
	failed := d.Dispatch(context.Background(), snapshot)

	if failed != 1 {
		t.Errorf("Expected 1 failed output, got %d", failed)
	}
	if len(failing.written) != 1 || len(ok.written) != 1 {
		t.Fatalf("Expected each output to receive the snapshot once, got %d and %d",
			len(failing.written), len(ok.written))
	}
	if ok.written[0] != snapshot {
		t.Error("Expected the dispatched snapshot to be passed through unchanged")
	}
}

func TestDispatcher_DispatchFailureOnlyReporters(t *testing.T) {
	d := NewDispatcher()
	plain := &recordingOutput{name: "plain"}
	reporter := &reportingOutput{recordingOutput{name: "reporter"}}
	d.RegisterOutput(plain)
	d.RegisterOutput(reporter)

	failed := d.DispatchFailure(context.Background(), "https://example.test/profile", errors.New("navigation timed out"))

	if failed != 0 {
		t.Errorf("Expected no failures, got %d", failed)
	}
	if len(reporter.failures) != 1 {
		t.Fatalf("Expected 1 failure report, got %d", len(reporter.failures))
	}
	if reporter.failures[0] != "https://example.test/profile: navigation timed out" {
		t.Errorf("Unexpected failure report: %s", reporter.failures[0])
	}
	if len(plain.written) != 0 {
		t.Error("Expected plain outputs to receive nothing on failure")
	}
}

func TestDispatcher_Outputs(t *testing.T) {
	d := NewDispatcher()
	if len(d.Outputs()) != 0 {
		t.Errorf("Expected no outputs, got %v", d.Outputs())
	}

	d.RegisterOutput(&recordingOutput{name: "logger"})
	d.RegisterOutput(&recordingOutput{name: "snmp"})

	names := d.Outputs()
	if len(names) != 2 || names[0] != "logger" || names[1] != "snmp" {
		t.Errorf("Unexpected output names: %v", names)
	}
}
