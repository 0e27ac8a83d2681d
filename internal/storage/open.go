package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "redwatch/pkg/logx"
)

// Store is the seen-state API used by the poller.
type Store interface {
	// Seen reports whether (search, id) was already marked, and when.
	Seen(ctx context.Context, search, id string) (at time.Time, ok bool, err error)
	// MarkSeen records that (search, id) has been notified at the given time.
	MarkSeen(ctx context.Context, search, id string, at time.Time) error
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled; the poller then dedups
// in memory only and forgets everything on restart.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
