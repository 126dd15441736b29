package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a config field holding a Go duration string ("30s", "5m").
// Empty means unset; the consumer supplies the default via Std.
type Duration string

func (d Duration) validate(path string) error {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", path, string(d), err)
	}
	if v < 0 {
		return fmt.Errorf("%s: duration must be >= 0", path)
	}
	return nil
}

// Std resolves the field to a time.Duration, using def when the field is
// unset or non-positive. Invalid values also fall back to def; Normalize
// has already rejected them for configs that went through loading.
func (d Duration) Std(def time.Duration) time.Duration {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return def
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
