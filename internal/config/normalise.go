package config

import (
	"path/filepath"
	"strings"
)

const (
	LogLevelDebug    = "debug"
	LogLevelInfo     = "info"
	LogLevelWarn     = "warn"
	LogLevelError    = "error"
	LogLevelDisabled = "disabled"
)

const (
	HistoryMaxEntriesDefault = 500
	HistoryMaxEntriesMin     = 10
	HistoryMaxEntriesMax     = 100000
)

type LogSettings struct {
	Level   string `json:"level"   toml:"level"`
	File    string `json:"file"    toml:"file"`
	Console bool   `json:"console" toml:"console"`
}

type WebDriverSettings struct {
	ChromePath string `json:"chrome_path" toml:"chrome_path"`
	// Endpoints maps a browser type to the url of a remote W3C driver.
	Endpoints map[string]string `json:"endpoints" toml:"endpoints"`
	// TimeoutSeconds bounds each driver call. Zero keeps the driver default.
	TimeoutSeconds int `json:"timeout_seconds" toml:"timeout_seconds"`
}

type HistorySettings struct {
	Enabled    bool   `json:"enabled"     toml:"enabled"`
	Path       string `json:"path"        toml:"path"`
	MaxEntries int    `json:"max_entries" toml:"max_entries"`
}

type RunnerSettings struct {
	StopOnAssertFail bool `json:"stop_on_assert_fail" toml:"stop_on_assert_fail"`
}

func DefaultSettings() Settings {
	return Settings{
		Log: LogSettings{Level: LogLevelInfo},
		History: HistorySettings{
			MaxEntries: HistoryMaxEntriesDefault,
		},
	}
}

// NormaliseSettings fills blanks with defaults and pulls out-of-range
// values back inside their bounds.
func NormaliseSettings(in Settings) Settings {
	out := in
	out.Log.Level = normaliseLevel(in.Log.Level, LogLevelInfo)
	out.Log.File = strings.TrimSpace(in.Log.File)

	out.WebDriver.ChromePath = strings.TrimSpace(in.WebDriver.ChromePath)
	if len(in.WebDriver.Endpoints) > 0 {
		endpoints := make(map[string]string, len(in.WebDriver.Endpoints))
		for browser, endpoint := range in.WebDriver.Endpoints {
			browser = strings.TrimSpace(browser)
			endpoint = strings.TrimSpace(endpoint)
			if browser == "" || endpoint == "" {
				continue
			}
			endpoints[browser] = endpoint
		}
		out.WebDriver.Endpoints = endpoints
	}
	if in.WebDriver.TimeoutSeconds < 0 {
		out.WebDriver.TimeoutSeconds = 0
	}

	out.History.Path = strings.TrimSpace(in.History.Path)
	if out.History.Enabled && out.History.Path == "" {
		out.History.Path = filepath.Join(Dir(), "history.db")
	}
	out.History.MaxEntries = clampInt(
		in.History.MaxEntries,
		HistoryMaxEntriesMin,
		HistoryMaxEntriesMax,
		HistoryMaxEntriesDefault,
	)
	return out
}

func normaliseLevel(in, def string) string {
	switch level := strings.ToLower(strings.TrimSpace(in)); level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelDisabled:
		return level
	case "warning":
		return LogLevelWarn
	case "off", "none":
		return LogLevelDisabled
	default:
		return def
	}
}

func clampInt[T ~int](value, min, max, fallback T) T {
	if value == 0 {
		return fallback
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
