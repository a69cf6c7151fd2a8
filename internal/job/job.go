package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/metrics"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
	"github.com/nickborgers/monorepo/scholar-citations/internal/scholar"
)

// Job captures one snapshot of a profile and persists it
type Job struct {
	browser    browser.Controller
	writer     metrics.Output
	dispatcher *metrics.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a job. writer is the primary sink and its failure fails the run;
// outputs registered on dispatcher are best effort.
func New(browserCtrl browser.Controller, writer metrics.Output, dispatcher *metrics.Dispatcher) *Job {
	return &Job{
		browser:    browserCtrl,
		writer:     writer,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
	}
}

// Run fetches url and writes the snapshot. On any failure nothing is written
// and the previous output is left as it was.
func (j *Job) Run(ctx context.Context, url string) (*models.ProfileSnapshot, error) {
	logger := j.logger.With("run_id", uuid.NewString())
	start := j.now()

	logger.Debug("Fetching profile", "url", url)

	snapshot, err := scholar.Fetch(ctx, j.browser, url, j.now)
	if err != nil {
		j.dispatcher.DispatchFailure(ctx, url, err)
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}

	if err := j.writer.Write(ctx, snapshot); err != nil {
		j.dispatcher.DispatchFailure(ctx, url, err)
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	// Dispatch to the optional outputs
	if failed := j.dispatcher.Dispatch(ctx, snapshot); failed > 0 {
		logger.Warn("Some outputs did not accept the snapshot", "failed", failed)
	}

	logger.Info("Snapshot captured",
		"output", j.writer.Name(),
		"duration_ms", j.now().Sub(start).Milliseconds(),
	)

	return snapshot, nil
}
