package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "redwatch/pkg/logx"
)

type captureSender struct {
	mu    sync.Mutex
	calls []Notification
	fail  int // fail this many calls before succeeding
}

func (c *captureSender) Push(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, n)
	if c.fail > 0 {
		c.fail--
		return errors.New("push failed")
	}
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()

	snd := &captureSender{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100}, snd, logx.Nop())
	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	n := Notification{Search: "kb", PostID: "abc123", Title: "New post in r/mechmarket"}
	if err := svc.Notify(context.Background(), n); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	waitFor(t, func() bool { return snd.count() == 1 })
	if hist := svc.Snapshot(); len(hist) != 1 || hist[0].Title != n.Title {
		t.Fatalf("history = %+v", hist)
	}
}

func TestNotifyDedupWindow(t *testing.T) {
	t.Parallel()

	snd := &captureSender{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 100, DedupWindow: time.Minute}, snd, logx.Nop())
	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	n := Notification{Search: "kb", PostID: "abc123", Title: "t"}
	for i := 0; i < 3; i++ {
		if err := svc.Notify(context.Background(), n); err != nil {
			t.Fatalf("Notify error: %v", err)
		}
	}

	waitFor(t, func() bool { return snd.count() == 1 })
	// Give a suppressed duplicate a chance to sneak through.
	time.Sleep(50 * time.Millisecond)
	if got := snd.count(); got != 1 {
		t.Fatalf("sender called %d times, want 1", got)
	}
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	snd := &captureSender{fail: 2}
	svc := New(Config{
		Enabled:    true,
		Workers:    1,
		RatePerSec: 100,
		RetryMax:   3,
		RetryBase:  time.Millisecond,
	}, snd, logx.Nop())
	svc.Start(context.Background())
	defer svc.Stop(context.Background())

	if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: "x"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	waitFor(t, func() bool { return snd.count() == 3 })
}

func TestNotifyDisabledAndStopped(t *testing.T) {
	t.Parallel()

	snd := &captureSender{}
	svc := New(Config{Enabled: false}, snd, logx.Nop())
	if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: "x"}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}

	svc2 := New(Config{Enabled: true}, snd, logx.Nop())
	if err := svc2.Notify(context.Background(), Notification{Search: "kb", PostID: "x"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped before Start", err)
	}
}

// blockingSender holds every push until release is closed.
type blockingSender struct {
	release chan struct{}
}

func (b *blockingSender) Push(ctx context.Context, _ Notification) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestStopDeadlineThenRestart(t *testing.T) {
	t.Parallel()

	snd := &blockingSender{release: make(chan struct{})}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 1000}, snd, logx.Nop())
	svc.Start(context.Background())

	if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: "a"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	// An already-expired deadline forces Stop onto its give-up path while the
	// worker is wedged in Push. Stop must still return and leave the pipeline
	// restartable.
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	svc.Stop(ctx)

	svc.Start(context.Background())
	if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: "b"}); err != nil {
		t.Fatalf("Notify after restart: %v", err)
	}

	close(snd.release)
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	svc.Stop(stopCtx)
}

func TestStopDrainsQueue(t *testing.T) {
	t.Parallel()

	snd := &captureSender{}
	svc := New(Config{Enabled: true, Workers: 1, RatePerSec: 1000}, snd, logx.Nop())
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: string(rune('a' + i))}); err != nil {
			t.Fatalf("Notify error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	svc.Stop(ctx)

	if got := snd.count(); got != 5 {
		t.Fatalf("sender called %d times after drain, want 5", got)
	}
	if err := svc.Notify(context.Background(), Notification{Search: "kb", PostID: "z"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped after Stop", err)
	}
}
