package detection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// StartSweeps runs Sweep on the given cron schedule until ctx is cancelled.
// Standard five-field expressions and descriptors such as "@every 10m" are
// accepted. An empty schedule disables sweeping and returns a nil scheduler.
func StartSweeps(ctx context.Context, schedule string, d *Detector) (*cron.Cron, error) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		slog.Info("detection sweep disabled (sweep_schedule not set)")
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := d.Sweep(ctx); err != nil {
			slog.Warn("detection sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep_schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.Info("detection sweep scheduled", "schedule", schedule)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
