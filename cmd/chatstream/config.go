package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds client settings. Values are layered: defaults, then the
// TOML file, then environment, then flags.
type Config struct {
	URL           string `toml:"url"`
	Streaming     bool   `toml:"streaming"`
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	CodeStyle     string `toml:"code_style"`
	Highlight     bool   `toml:"highlight"`
	SettleDelayMS int    `toml:"settle_delay_ms"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		URL:           "http://localhost:8080",
		Streaming:     true,
		LogLevel:      "info",
		CodeStyle:     "monokai",
		Highlight:     true,
		SettleDelayMS: 100,
	}
}

// SettleDelay returns the settle delay as a duration.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// defaultConfigPath returns ~/.config/chatstream/config.toml, or "" when
// the home directory is unknown.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatstream", "config.toml")
}

// loadConfigFile decodes path over cfg. A missing file is tolerated only
// when it is the default path.
func loadConfigFile(cfg Config, path string, isDefault bool) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) && isDefault {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// applyEnv overrides cfg with environment values. The lookup function is
// passed in so env is only read in main.
func applyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup("CHATSTREAM_URL"); ok && v != "" {
		cfg.URL = v
	}
	if v, ok := lookup("CHATSTREAM_STREAMING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("CHATSTREAM_STREAMING: %w", err)
		}
		cfg.Streaming = b
	}
	if v, ok := lookup("CHATSTREAM_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("server URL is required")
	}
	if c.SettleDelayMS < 0 {
		return fmt.Errorf("settle_delay_ms must not be negative, got %d", c.SettleDelayMS)
	}
	return nil
}
