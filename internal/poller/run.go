package poller

import (
	"context"
	"time"

	"redwatch/internal/notify"
	"redwatch/internal/reddit"
	logx "redwatch/pkg/logx"
)

// runSearch fetches one search and notifies about unseen results.
// Returns (total results, newly notified).
func (s *Service) runSearch(ctx context.Context, cfg Config, search reddit.Search) (int, int, error) {
	log := s.log.With(logx.String("search", search.Name))

	posts, err := s.fetchWithRetry(ctx, cfg, search)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now()
	var cutoff time.Time
	if cfg.Lookback > 0 {
		cutoff = now.Add(-cfg.Lookback)
	}

	newCount := 0
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		// Posts with no parsable timestamp are treated as fresh.
		if !cutoff.IsZero() && !p.CreatedAt.IsZero() && p.CreatedAt.Before(cutoff) {
			continue
		}

		seen, err := s.isSeen(ctx, search.Name, p.ID)
		if err != nil {
			log.Warn("seen lookup failed; skipping post", logx.String("post", p.ID), logx.Any("err", err))
			continue
		}
		if seen {
			continue
		}

		n := notify.Notification{
			Search: search.Name,
			PostID: p.ID,
			Title:  noteTitle(search.Subreddit, p, now),
			Body:   noteBody(p, s.displayLocation()),
		}
		if err := s.notif.Notify(ctx, n); err != nil {
			// Leave the post unmarked so the next sweep retries it.
			log.Warn("notify failed; post stays eligible", logx.String("post", p.ID), logx.Any("err", err))
			continue
		}
		if err := s.markSeen(ctx, search.Name, p.ID, now); err != nil {
			log.Warn("mark seen failed", logx.String("post", p.ID), logx.Any("err", err))
		}
		newCount++
	}

	log.Info("search checked", logx.Int("posts", len(posts)), logx.Int("new", newCount))
	return len(posts), newCount, nil
}

func (s *Service) fetchWithRetry(ctx context.Context, cfg Config, search reddit.Search) ([]reddit.Post, error) {
	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		posts, err := s.client.Search(ctx, search)
		if err == nil {
			return posts, nil
		}
		lastErr = err
		if attempt >= maxAttempts {
			break
		}
		// Short fixed pause; the sweep interval is the real backoff.
		t := time.NewTimer(time.Duration(attempt) * time.Second)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (s *Service) displayLocation() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

func (s *Service) isSeen(ctx context.Context, search, id string) (bool, error) {
	if s.store != nil {
		_, ok, err := s.store.Seen(ctx, search, id)
		return ok, err
	}
	s.memMu.Lock()
	defer s.memMu.Unlock()
	_, ok := s.memSeen[search+"\x1f"+id]
	return ok, nil
}

func (s *Service) markSeen(ctx context.Context, search, id string, at time.Time) error {
	if s.store != nil {
		return s.store.MarkSeen(ctx, search, id, at)
	}
	s.memMu.Lock()
	defer s.memMu.Unlock()
	s.memSeen[search+"\x1f"+id] = struct{}{}
	return nil
}
