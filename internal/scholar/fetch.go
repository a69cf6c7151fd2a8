package scholar

import (
	"context"
	"log/slog"
	"time"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// Fetch opens a session, renders url, waits for the statistics table and
// extracts a snapshot. The session is closed on every return path.
func Fetch(ctx context.Context, controller browser.Controller, url string, now func() time.Time) (*models.ProfileSnapshot, error) {
	session, err := controller.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("Failed to close browser session", "error", err)
		}
	}()

	slog.Debug("Navigating to profile", "url", url)
	if err := session.Navigate(url); err != nil {
		return nil, err
	}

	if err := session.WaitFor(StatsTableSelector); err != nil {
		return nil, err
	}

	snapshot, err := Extract(session, url, now)
	if err != nil {
		return nil, err
	}

	slog.Debug("Extracted profile snapshot",
		"name_present", snapshot.Name != nil,
		"citations", snapshot.CitationAll != nil,
		"h_index", snapshot.HIndexAll != nil,
		"i10_index", snapshot.I10IndexAll != nil,
	)

	return snapshot, nil
}
