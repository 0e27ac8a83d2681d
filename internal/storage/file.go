package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "redwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.seen.snapshot.json (periodic snapshot)
//   - <prefix>.seen.journal.jsonl (append-only journal)
//
// The journal is periodically compacted into the snapshot.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File
	seen         map[string]int64 // composite key -> unix milli first seen
	retention    time.Duration

	writes int
}

type seenRecord struct {
	Search string `json:"search"`
	ID     string `json:"id"`
	At     int64  `json:"at"`
}

// seenKey joins search and id with a separator that can't appear in either
// (search names are config identifiers, IDs are base36).
func seenKey(search, id string) string { return search + "\x1f" + id }

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".seen.snapshot.json"
	journalPath := prefix + ".seen.journal.jsonl"

	// Load seen set from snapshot + journal.
	seen := map[string]int64{}
	_ = loadSeenSnapshot(snapPath, seen)
	_ = replaySeenJournal(journalPath, seen)
	pruneOldSeen(seen, cfg.Retention)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journalFile:  jf,
		seen:         seen,
		retention:    cfg.Retention,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) Seen(ctx context.Context, search, id string) (time.Time, bool, error) {
	_ = ctx
	if search == "" || id == "" {
		return time.Time{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		return time.Time{}, false, nil
	}
	ms, ok := s.seen[seenKey(search, id)]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

func (s *fileStore) MarkSeen(ctx context.Context, search, id string, at time.Time) error {
	_ = ctx
	if search == "" || id == "" {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	ms := at.UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("seen journal closed")
	}
	if s.seen == nil {
		s.seen = map[string]int64{}
	}
	s.seen[seenKey(search, id)] = ms

	// Append journal record.
	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(seenRecord{Search: search, ID: id, At: ms}); err != nil {
		return err
	}
	s.writes++
	if s.writes%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("seen compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	if s.seen == nil {
		return nil
	}
	pruneOldSeen(s.seen, s.retention)

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.seen); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	// Truncate journal.
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, io.SeekEnd)
	return err
}

func loadSeenSnapshot(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]int64
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replaySeenJournal(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r seenRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Search == "" || r.ID == "" {
			continue
		}
		out[seenKey(r.Search, r.ID)] = r.At
	}
	return sc.Err()
}

func pruneOldSeen(m map[string]int64, retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention).UnixMilli()
	for k, v := range m {
		if v < cutoff {
			delete(m, k)
		}
	}
}
