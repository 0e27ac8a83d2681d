package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"redwatch/internal/config"
	"redwatch/internal/notify"
	"redwatch/internal/poller"
	"redwatch/internal/pushbullet"
	"redwatch/internal/reddit"
	"redwatch/internal/storage"
	logx "redwatch/pkg/logx"
)

const defaultTokenEnv = "PUSHBULLET_API_KEY"

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	store storage.Store

	sender *pushbullet.Client
	notif  *notify.Service
	poll   *poller.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	if err := validateConfig(context.Background(), cfg); err != nil {
		return nil, err
	}

	// Logging service mapping
	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollCfg, err := pollerConfig(cfg)
	if err != nil {
		return nil, err
	}

	// Storage (seen state). A nil store means in-memory dedup only.
	storeCfg, err := storageConfig(cfg, pollCfg.Lookback)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store == nil {
		log.Warn("storage disabled; seen state will not survive restarts")
	}

	// Push transport.
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}
	pbTimeout, err := config.ParseDurationOrDefault("pushbullet.timeout", cfg.Pushbullet.Timeout, 8*time.Second)
	if err != nil {
		return nil, err
	}
	sender, err := pushbullet.New(pushbullet.Config{
		Token:   token,
		BaseURL: cfg.Pushbullet.BaseURL,
		Timeout: pbTimeout,
	}, logSvc.Logger().With(logx.String("comp", "pushbullet")))
	if err != nil {
		return nil, err
	}

	notifCfg, err := notifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notifSvc := notify.New(notifCfg, sender, logSvc.Logger().With(logx.String("comp", "notifier")))

	// Search client.
	reqTimeout, err := config.ParseDurationOrDefault("poller.request_timeout", cfg.Poller.RequestTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	client := reddit.New(reddit.Config{
		BaseURL:   cfg.Poller.BaseURL,
		UserAgent: cfg.Poller.UserAgent,
		Timeout:   reqTimeout,
	}, logSvc.Logger().With(logx.String("comp", "reddit")))

	pollSvc := poller.New(pollCfg, client, notifSvc, store, logSvc.Logger().With(logx.String("comp", "poller")))
	pollSvc.SetSearches(searchList(cfg))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		sender:  sender,
		notif:   notifSvc,
		poll:    pollSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)

	a.notif.Start(a.sup.Context())
	if a.poll.Enabled() {
		a.poll.Start(a.sup.Context())
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyReload(c, newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyReload pushes a validated config into the running services.
//
// Transport settings (pushbullet token/endpoint, reddit base_url/user_agent)
// are wired at construction time and take effect on restart.
func (a *App) applyReload(ctx context.Context, cfg *config.Config) {
	// logging
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	// notifier (validated already, so parse errors are unexpected)
	if nc, err := notifierConfig(cfg); err == nil {
		a.notif.Apply(nc)
		if nc.Enabled {
			a.notif.Start(ctx)
		} else {
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		}
	} else {
		a.log.Warn("notifier config rejected on reload", logx.Any("err", err))
	}

	// poller settings + search list
	a.poll.SetSearches(searchList(cfg))
	pc, err := pollerConfig(cfg)
	if err != nil {
		a.log.Warn("poller config rejected on reload", logx.Any("err", err))
		return
	}
	prevEnabled := a.poll.Enabled()
	a.poll.Apply(pc)
	if prevEnabled && !pc.Enabled {
		a.log.Info("poller disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.poll.Stop(stopCtx)
		cancel()
	} else if !prevEnabled && pc.Enabled {
		a.log.Info("poller enabled via config")
		a.poll.Start(ctx)
	}

	a.log.Info("config reloaded", logx.Int("searches", len(cfg.Searches)))
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("poller", 3*time.Second, func(c context.Context) error { a.poll.Stop(c); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	if a.store != nil {
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// ---- config mapping ----

func searchList(cfg *config.Config) []reddit.Search {
	out := make([]reddit.Search, 0, len(cfg.Searches))
	for _, sc := range cfg.Searches {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			// validated configs always carry names; fall back for direct callers
			name = strings.TrimSpace(sc.Subreddit) + "/" + strings.TrimSpace(sc.Query)
		}
		out = append(out, reddit.Search{
			Name:      name,
			Subreddit: strings.TrimSpace(sc.Subreddit),
			Query:     sc.Query,
		})
	}
	return out
}

func pollerConfig(cfg *config.Config) (poller.Config, error) {
	interval, err := config.ParseDurationOrDefault("poller.interval", cfg.Poller.Interval, 5*time.Minute)
	if err != nil {
		return poller.Config{}, err
	}
	spacing, err := config.ParseDurationOrDefault("poller.search_spacing", cfg.Poller.SearchSpacing, 10*time.Second)
	if err != nil {
		return poller.Config{}, err
	}
	lookback, err := config.ParseDurationOrDefault("poller.lookback", cfg.Poller.Lookback, 7*24*time.Hour)
	if err != nil {
		return poller.Config{}, err
	}
	tz := strings.TrimSpace(cfg.Poller.Timezone)
	if tz == "" {
		tz = "America/New_York"
	}
	return poller.Config{
		Enabled:       cfg.Poller.Enabled,
		Interval:      interval,
		SearchSpacing: spacing,
		Lookback:      lookback,
		Timezone:      tz,
		RetryMax:      cfg.Poller.RetryMax,
	}, nil
}

func notifierConfig(cfg *config.Config) (notify.Config, error) {
	// Omitted section means enabled with defaults.
	if cfg.Notifier == nil {
		return notify.Config{Enabled: true}, nil
	}
	nc := cfg.Notifier
	retryBase, err := config.ParseDurationField("notifier.retry_base", nc.RetryBase)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", nc.RetryMaxDelay)
	if err != nil {
		return notify.Config{}, err
	}
	dedupWindow, err := config.ParseDurationField("notifier.dedup_window", nc.DedupWindow)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		Enabled:         nc.Enabled,
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       retryBase,
		RetryMaxDelay:   retryMaxDelay,
		DedupWindow:     dedupWindow,
		DedupMaxEntries: nc.DedupMaxEntries,
	}, nil
}

func storageConfig(cfg *config.Config, lookback time.Duration) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	// Seen entries must outlive the lookback window they guard.
	retention, err := config.ParseDurationOrDefault("storage.retention", cfg.Storage.Retention, lookback+24*time.Hour)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
		Retention:   retention,
	}, nil
}

func resolveToken(cfg *config.Config) (string, error) {
	if tok := strings.TrimSpace(cfg.Pushbullet.Token); tok != "" {
		return tok, nil
	}
	env := strings.TrimSpace(cfg.Pushbullet.TokenEnv)
	if env == "" {
		env = defaultTokenEnv
	}
	if tok := strings.TrimSpace(os.Getenv(env)); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("pushbullet token not configured (set pushbullet.token or the %s environment variable)", env)
}

// validateConfig is used both at startup and as the hot-reload gate.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	for _, field := range []struct{ path, raw string }{
		{"poller.interval", cfg.Poller.Interval},
		{"poller.search_spacing", cfg.Poller.SearchSpacing},
		{"poller.lookback", cfg.Poller.Lookback},
		{"poller.request_timeout", cfg.Poller.RequestTimeout},
		{"pushbullet.timeout", cfg.Pushbullet.Timeout},
	} {
		if _, err := config.ParseDurationField(field.path, field.raw); err != nil {
			return err
		}
	}
	if cfg.Poller.RetryMax < 0 {
		return fmt.Errorf("poller.retry_max must be >= 0")
	}
	if tz := strings.TrimSpace(cfg.Poller.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("poller.timezone: invalid %q: %w", tz, err)
		}
	}

	if nc := cfg.Notifier; nc != nil {
		for _, field := range []struct{ path, raw string }{
			{"notifier.retry_base", nc.RetryBase},
			{"notifier.retry_max_delay", nc.RetryMaxDelay},
			{"notifier.dedup_window", nc.DedupWindow},
		} {
			if _, err := config.ParseDurationField(field.path, field.raw); err != nil {
				return err
			}
		}
		if nc.Workers < 0 || nc.QueueSize < 0 || nc.RetryMax < 0 {
			return fmt.Errorf("notifier: workers/queue_size/retry_max must be >= 0")
		}
	}

	if sc := cfg.Storage; sc != nil {
		for _, field := range []struct{ path, raw string }{
			{"storage.busy_timeout", sc.BusyTimeout},
			{"storage.retention", sc.Retention},
		} {
			if _, err := config.ParseDurationField(field.path, field.raw); err != nil {
				return err
			}
		}
	}

	names := make(map[string]struct{}, len(cfg.Searches))
	for i, s := range cfg.Searches {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return fmt.Errorf("searches[%d]: name is required", i)
		}
		if strings.TrimSpace(s.Subreddit) == "" {
			return fmt.Errorf("searches[%d] (%s): subreddit is required", i, name)
		}
		if _, dup := names[name]; dup {
			return fmt.Errorf("searches[%d]: duplicate name %q", i, name)
		}
		names[name] = struct{}{}
	}

	return nil
}
