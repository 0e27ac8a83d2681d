package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "redwatch/pkg/logx"
)

func TestFileStoreMarkAndSeen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "seen")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	at := time.Now().Truncate(time.Millisecond)

	if _, ok, err := st.Seen(ctx, "kb", "abc123"); err != nil || ok {
		t.Fatalf("Seen before mark: ok=%v err=%v", ok, err)
	}
	if err := st.MarkSeen(ctx, "kb", "abc123", at); err != nil {
		t.Fatalf("MarkSeen error: %v", err)
	}
	got, ok, err := st.Seen(ctx, "kb", "abc123")
	if err != nil || !ok {
		t.Fatalf("Seen after mark: ok=%v err=%v", ok, err)
	}
	if !got.Equal(at) {
		t.Errorf("Seen at = %v, want %v", got, at)
	}

	// Scope is per search: same ID under a different search is unseen.
	if _, ok, _ := st.Seen(ctx, "other", "abc123"); ok {
		t.Error("ID leaked across search scopes")
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "seen")}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()
	if err := st.MarkSeen(ctx, "kb", "abc123", time.Now()); err != nil {
		t.Fatalf("MarkSeen error: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()
	if _, ok, err := st2.Seen(ctx, "kb", "abc123"); err != nil || !ok {
		t.Fatalf("seen state lost across reopen: ok=%v err=%v", ok, err)
	}
}

func TestFileStoreRetentionPrunesOnReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "seen"), Retention: time.Hour}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	ctx := context.Background()
	if err := st.MarkSeen(ctx, "kb", "old", time.Now().Add(-2*time.Hour)); err != nil {
		t.Fatalf("MarkSeen error: %v", err)
	}
	if err := st.MarkSeen(ctx, "kb", "fresh", time.Now()); err != nil {
		t.Fatalf("MarkSeen error: %v", err)
	}
	_ = st.Close()

	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()
	if _, ok, _ := st2.Seen(ctx, "kb", "old"); ok {
		t.Error("entry older than retention survived reopen")
	}
	if _, ok, _ := st2.Seen(ctx, "kb", "fresh"); !ok {
		t.Error("fresh entry pruned")
	}
}

func TestFileStoreCompaction(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "seen")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 1000; i++ {
		if err := st.MarkSeen(ctx, "kb", fmt.Sprintf("id%04d", i), now); err != nil {
			t.Fatalf("MarkSeen #%d: %v", i, err)
		}
	}

	// The thousandth write compacts: everything moves into the snapshot and
	// the journal is truncated.
	if _, err := os.Stat(path + ".seen.snapshot.json"); err != nil {
		t.Fatalf("snapshot missing after compaction: %v", err)
	}
	fi, err := os.Stat(path + ".seen.journal.jsonl")
	if err != nil {
		t.Fatalf("journal missing: %v", err)
	}
	if fi.Size() != 0 {
		t.Fatalf("journal size = %d after compaction, want 0", fi.Size())
	}

	// The journal file handle must still append correctly afterwards.
	if err := st.MarkSeen(ctx, "kb", "after-compact", now); err != nil {
		t.Fatalf("MarkSeen after compaction: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer st2.Close()
	for _, id := range []string{"id0000", "id0999", "after-compact"} {
		if _, ok, err := st2.Seen(ctx, "kb", id); err != nil || !ok {
			t.Errorf("Seen(%q) after reopen: ok=%v err=%v", id, ok, err)
		}
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("disabled storage: st=%v err=%v", st, err)
	}
	if _, err := Open(Config{Driver: "bolt"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
