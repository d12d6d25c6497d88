// Package retention runs the periodic housekeeping jobs: the age-based
// conversation sweep and the pending-attachment cache sweep.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/pending"
)

const (
	conversationSweepSpec = "0 3 * * *"
	pendingSweepSpec      = "@hourly"
	sweepTimeout          = 5 * time.Minute
)

// ConversationSweeper removes conversations whose last activity predates the
// cutoff and reports how many it deleted.
type ConversationSweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Runner schedules the sweeps on a cron.
type Runner struct {
	cron          *cron.Cron
	conversations ConversationSweeper
	cache         *pending.Cache
	retention     time.Duration
	logger        *slog.Logger
}

// NewRunner creates the runner. Jobs are registered but not yet running.
func NewRunner(log *slog.Logger, conversations ConversationSweeper, cache *pending.Cache, cfg config.ChatConfig) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	days := cfg.RetentionDays
	if days <= 0 {
		days = config.DefaultRetentionDays
	}
	r := &Runner{
		cron:          cron.New(),
		conversations: conversations,
		cache:         cache,
		retention:     time.Duration(days) * 24 * time.Hour,
		logger:        log.With(slog.String("service", "retention")),
	}
	if _, err := r.cron.AddFunc(conversationSweepSpec, r.sweepConversations); err != nil {
		return nil, err
	}
	if _, err := r.cron.AddFunc(pendingSweepSpec, r.cache.Sweep); err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins running the scheduled jobs.
func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("retention jobs scheduled",
		slog.Duration("retention", r.retention),
	)
}

// Stop halts scheduling and waits for a running job to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("retention jobs stopped")
}

// Cutoff returns the deletion horizon relative to now.
func (r *Runner) Cutoff(now time.Time) time.Time {
	return now.Add(-r.retention)
}

func (r *Runner) sweepConversations() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := r.Cutoff(time.Now())
	removed, err := r.conversations.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("conversation sweep failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		r.logger.Info("swept stale conversations",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
}
