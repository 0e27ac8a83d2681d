// Package poller drives the sweep loop: on a fixed interval it runs every
// configured search, filters out already-seen results, and hands new posts
// to the notifier.
package poller

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"redwatch/internal/reddit"
	"redwatch/internal/storage"
	logx "redwatch/pkg/logx"
)

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	client Searcher
	notif  Notifier
	store  storage.Store

	cfg      Config
	searches []reddit.Search
	loc      *time.Location

	c      *cron.Cron
	stopCh chan struct{}

	// parent is the context Start was called with; restarts (e.g. on an
	// interval change) derive the new run context from it, never from the
	// already-canceled previous run context.
	parent    context.Context
	runCtx    context.Context
	runCancel context.CancelFunc
	sweepWG   sync.WaitGroup

	// sweeping guards against overlapping sweeps (a slow sweep skips the next tick).
	sweeping bool

	// memSeen is the in-memory fallback when no store is configured.
	// It is scoped per search and lost on restart.
	memMu   sync.Mutex
	memSeen map[string]struct{}
}

func New(cfg Config, client Searcher, notif Notifier, store storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:     log,
		client:  client,
		notif:   notif,
		store:   store,
		memSeen: map[string]struct{}{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// SetSearches replaces the search list (config hot reload).
func (s *Service) SetSearches(searches []reddit.Search) {
	s.mu.Lock()
	s.searches = append([]reddit.Search(nil), searches...)
	s.mu.Unlock()
}

// Apply updates poller settings. An interval change restarts the cron entry.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	oldInterval := s.cfg.Interval
	s.applyLocked(cfg)
	newInterval := s.cfg.Interval
	restart := s.c != nil && newInterval != oldInterval
	parent := s.parent
	s.mu.Unlock()

	if restart {
		s.log.Info("sweep interval changed; rescheduling", logx.Duration("interval", newInterval))
		if parent == nil {
			parent = context.Background()
		}
		s.Stop(context.Background())
		s.Start(parent)
	}
}

func (s *Service) applyLocked(cfg Config) {
	s.cfg = cfg.withDefaults()

	s.loc = nil
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			s.loc = loc
		} else {
			s.log.Warn("invalid poller timezone; using UTC", logx.String("tz", tz), logx.Any("err", err))
		}
	}
}

// Start schedules sweeps and kicks one immediately, so new searches are
// checked right away instead of waiting a full interval.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	if !s.cfg.Enabled {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.parent = ctx
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	runCtx := s.runCtx
	stopCh := s.stopCh
	interval := s.cfg.Interval

	s.c = cron.New()
	_, err := s.c.AddFunc("@every "+interval.String(), func() {
		s.trySweep(runCtx, stopCh)
	})
	s.mu.Unlock()
	if err != nil {
		// Interval came through withDefaults(), so this should not happen.
		s.log.Error("failed to schedule sweep", logx.Any("err", err), logx.Duration("interval", interval))
		return
	}

	s.mu.Lock()
	s.c.Start()
	s.mu.Unlock()

	// Immediate first sweep.
	s.sweepWG.Add(1)
	go func() {
		defer s.sweepWG.Done()
		s.trySweep(runCtx, stopCh)
	}()

	s.log.Info("poller started", logx.Duration("interval", interval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	stopCh := s.stopCh
	cancel := s.runCancel
	s.c = nil
	s.stopCh = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if stopCh != nil {
		close(stopCh)
	}
	if cancel != nil {
		cancel()
	}
	<-c.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.sweepWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// sweep finishes in background
	}
	s.log.Info("poller stopped")
}

// trySweep runs one sweep unless another is still in flight.
func (s *Service) trySweep(ctx context.Context, stopCh <-chan struct{}) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.log.Warn("previous sweep still running; skipping tick")
		return
	}
	s.sweeping = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in sweep", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	s.sweep(ctx, stopCh)
}

func (s *Service) sweep(ctx context.Context, stopCh <-chan struct{}) {
	s.mu.Lock()
	cfg := s.cfg
	searches := append([]reddit.Search(nil), s.searches...)
	s.mu.Unlock()

	if len(searches) == 0 {
		s.log.Debug("no searches configured; sweep is a no-op")
		return
	}

	start := time.Now()
	s.log.Info("sweep started", logx.Int("searches", len(searches)))

	// Pace searches so one sweep doesn't hammer the search endpoint.
	// The bucket starts full, so the first search runs immediately.
	var limiter *rate.Limiter
	if cfg.SearchSpacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.SearchSpacing), 1)
	}

	var totalPosts, totalNew int
	for _, search := range searches {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		posts, fresh, err := s.runSearch(ctx, cfg, search)
		if err != nil {
			s.log.Warn("search failed",
				logx.String("search", search.Name),
				logx.String("subreddit", search.Subreddit),
				logx.Any("err", err),
			)
			continue
		}
		totalPosts += posts
		totalNew += fresh
	}

	s.log.Info("sweep finished",
		logx.Int("posts", totalPosts),
		logx.Int("new", totalNew),
		logx.Duration("took", time.Since(start)),
	)
}
