package poller

import (
	"context"
	"time"

	"redwatch/internal/notify"
	"redwatch/internal/reddit"
)

// Config controls the sweep loop.
type Config struct {
	Enabled bool

	// Interval between sweeps.
	Interval time.Duration
	// SearchSpacing paces consecutive searches within one sweep.
	SearchSpacing time.Duration
	// Lookback drops results older than this. 0 disables the age filter.
	Lookback time.Duration
	// Timezone renders post times in notification bodies.
	Timezone string

	// RetryMax bounds extra fetch attempts per search per sweep.
	// Zero means the default (2); retries cannot be disabled outright,
	// the sweep interval is the real backoff.
	RetryMax int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.SearchSpacing < 0 {
		c.SearchSpacing = 0
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2
	}
	return c
}

// Searcher runs one search. Implemented by reddit.Client.
type Searcher interface {
	Search(ctx context.Context, s reddit.Search) ([]reddit.Post, error)
}

// Notifier accepts one notification. Implemented by notify.Service.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}
