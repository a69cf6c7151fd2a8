package metrics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// Dispatcher distributes snapshots to all output modules
type Dispatcher struct {
	outputs []Output
	mu      sync.RWMutex
	logger  *slog.Logger
}

// Output is an interface for snapshot output modules
type Output interface {
	// Write sends a snapshot to the output
	Write(ctx context.Context, snapshot *models.ProfileSnapshot) error

	// Name returns the output module name
	Name() string
}

// FailureReporter is implemented by outputs that also announce failed fetches
type FailureReporter interface {
	ReportFailure(ctx context.Context, source string, err error) error
}

// NewDispatcher creates a new snapshot dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		outputs: make([]Output, 0),
		logger:  slog.Default(),
	}
}

// RegisterOutput adds an output module to the dispatcher
func (d *Dispatcher) RegisterOutput(output Output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = append(d.outputs, output)
}

// Outputs returns the names of the registered outputs
func (d *Dispatcher) Outputs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.outputs))
	for _, o := range d.outputs {
		names = append(names, o.Name())
	}
	return names
}

// Dispatch sends a snapshot to all registered outputs in parallel.
// Output errors are logged and counted; one failing output never blocks the others.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot *models.ProfileSnapshot) int {
	return d.fanOut(func(o Output) (bool, error) {
		return true, o.Write(ctx, snapshot)
	}, "Failed to write snapshot")
}

// DispatchFailure tells every output that implements FailureReporter about a failed fetch
func (d *Dispatcher) DispatchFailure(ctx context.Context, source string, fetchErr error) int {
	return d.fanOut(func(o Output) (bool, error) {
		reporter, ok := o.(FailureReporter)
		if !ok {
			return false, nil
		}
		return true, reporter.ReportFailure(ctx, source, fetchErr)
	}, "Failed to report fetch failure")
}

// fanOut runs fn against every output and returns how many of them failed
func (d *Dispatcher) fanOut(fn func(Output) (bool, error), msg string) int {
	d.mu.RLock()
	outputs := make([]Output, len(d.outputs))
	copy(outputs, d.outputs)
	d.mu.RUnlock()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, output := range outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			called, err := fn(o)
			if !called || err == nil {
				return
			}
			d.logger.Warn(msg, "output", o.Name(), "error", err)
			mu.Lock()
			failed++
			mu.Unlock()
		}(output)
	}

	wg.Wait()
	return failed
}
