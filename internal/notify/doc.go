// Package notify provides a lightweight notification pipeline.
//
// Notifications are small, high-signal messages about newly-seen posts. The
// pipeline is asynchronous: enqueue, worker pool, rate limiting, bounded
// retry with jittered backoff, and a short dedup window so a flapping search
// page can't spam the push service with the same post.
//
// # Transport
//
// The service delegates delivery to a Sender implementation (the Pushbullet
// client). This keeps throttling and retry policy centralized here while the
// transport stays a thin REST wrapper.
//
// # History
//
// For debugging, the service keeps a small in-memory history of recently
// emitted notifications.
package notify
