package notify

import (
	"context"
	"time"
)

// Notification is one push about a newly-seen post.
type Notification struct {
	// Search is the config name of the search that produced the match.
	Search string
	// PostID is the reddit post ID the push is about.
	PostID string

	Title string
	Body  string
}

// Sender delivers one notification to the push service.
// Implementations must honor ctx and return an error on non-delivery.
type Sender interface {
	Push(ctx context.Context, n Notification) error
}

// Config controls the notification pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// HistoryItem is one recently sent notification, kept for debugging.
type HistoryItem struct {
	At    time.Time
	Title string
}
