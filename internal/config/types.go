package config

type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Pushbullet PushbulletConfig `json:"pushbullet"`

	// Poller controls the sweep loop (interval, lookback, pacing).
	Poller PollerConfig `json:"poller"`

	// Notifier controls the async push pipeline.
	// If the whole section is omitted, the notifier defaults to enabled=true.
	Notifier *NotifierConfig `json:"notifier,omitempty"`

	// Storage controls the optional seen-state persistence layer.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Searches is the static list of search definitions.
	Searches []SearchConfig `json:"searches"`
}

// SearchConfig is one named subreddit search.
//
// Name is used as the seen-state scope; changing it makes every result of the
// search look new again.
type SearchConfig struct {
	Name      string `json:"name"`
	Subreddit string `json:"subreddit"`
	Query     string `json:"query"`
}

// PollerConfig controls the sweep loop.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - interval: "5m"
//   - search_spacing: "10s"
//   - lookback: "168h" (one week)
//   - request_timeout: "5s"
//   - retry_max: 2
type PollerConfig struct {
	Enabled bool `json:"enabled"`

	Interval      string `json:"interval,omitempty"`
	SearchSpacing string `json:"search_spacing,omitempty"`

	// Lookback bounds how old a result may be and still be notified.
	// Use "0s" to disable the age filter.
	Lookback string `json:"lookback,omitempty"`

	// Timezone is the IANA zone used when rendering post times in
	// notification bodies (e.g. "America/New_York").
	Timezone string `json:"timezone,omitempty"`

	RequestTimeout string `json:"request_timeout,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`

	// BaseURL overrides the search endpoint (tests point it at a local server).
	BaseURL string `json:"base_url,omitempty"`

	RetryMax int `json:"retry_max,omitempty"`
}

// PushbulletConfig configures the push transport.
//
// Token wins over TokenEnv when both are set. TokenEnv defaults to
// PUSHBULLET_API_KEY so tokens can stay out of the config file.
type PushbulletConfig struct {
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	// Timeout is a Go duration string for one push call.
	Timeout string `json:"timeout,omitempty"`
}

// NotifierConfig controls the async notification pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifierConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
}

// StorageConfig controls the seen-state persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./redwatch_seen" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// Retention prunes seen entries older than this. Defaults to poller.lookback
	// plus a day so entries outlive the window they guard.
	Retention string `json:"retention,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
