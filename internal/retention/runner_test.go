package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bayy420-999/wulang-ai/internal/config"
	"github.com/bayy420-999/wulang-ai/internal/pending"
)

type fakeSweeper struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakeSweeper) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.removed, f.err
}

func TestCutoffMath(t *testing.T) {
	t.Parallel()

	cache := pending.NewCache(nil, time.Hour)
	r, err := NewRunner(nil, &fakeSweeper{}, cache, config.ChatConfig{RetentionDays: 30})
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}

	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	want := now.Add(-30 * 24 * time.Hour)
	if got := r.Cutoff(now); !got.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", got, want)
	}
}

func TestCutoffDefaultsRetentionDays(t *testing.T) {
	t.Parallel()

	cache := pending.NewCache(nil, time.Hour)
	r, err := NewRunner(nil, &fakeSweeper{}, cache, config.ChatConfig{})
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}

	now := time.Now()
	want := now.Add(-time.Duration(config.DefaultRetentionDays) * 24 * time.Hour)
	if got := r.Cutoff(now); !got.Equal(want) {
		t.Errorf("Cutoff = %v, want %v", got, want)
	}
}

func TestSweepConversationsPassesCutoff(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{removed: 3}
	cache := pending.NewCache(nil, time.Hour)
	r, err := NewRunner(nil, sweeper, cache, config.ChatConfig{RetentionDays: 7})
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}

	before := time.Now()
	r.sweepConversations()
	after := time.Now()

	wantEarliest := before.Add(-7 * 24 * time.Hour)
	wantLatest := after.Add(-7 * 24 * time.Hour)
	if sweeper.cutoff.Before(wantEarliest) || sweeper.cutoff.After(wantLatest) {
		t.Errorf("cutoff %v outside [%v, %v]", sweeper.cutoff, wantEarliest, wantLatest)
	}
}

func TestSweepConversationsSwallowsErrors(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{err: errors.New("connection refused")}
	cache := pending.NewCache(nil, time.Hour)
	r, err := NewRunner(nil, sweeper, cache, config.ChatConfig{})
	if err != nil {
		t.Fatalf("NewRunner error: %v", err)
	}

	// A failing sweep logs and returns; the runner keeps its schedule.
	r.sweepConversations()
}
