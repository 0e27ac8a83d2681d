package storage

// Package storage persists which post IDs have already been notified,
// scoped per search, so restarts don't re-notify old results.
//
// It currently supports:
//   - A dependency-free file backend (snapshot + jsonl journal)
//   - SQLite (optional build tag)
