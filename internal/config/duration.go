package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration fields in the config file are Go duration strings ("10s", "5m",
// "168h"). They stay strings in the Config structs and are parsed at the
// point of use so a reload with a bad value can be rejected up front.

// ParseDurationField parses one duration field. An empty value means unset
// and yields 0; negative durations are rejected. path names the field in
// error messages (e.g. "poller.interval").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with a fallback for unset
// fields, used wherever the config documents a default interval or timeout.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
