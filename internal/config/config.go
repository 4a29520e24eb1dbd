// Package config loads and validates tutorbar configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Panel   PanelConfig   `mapstructure:"panel"`
	Signals SignalsConfig `mapstructure:"signals"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PanelConfig controls the progress panel timers and its statistics source.
type PanelConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ClockInterval   time.Duration `mapstructure:"clock_interval"`
	BadgeDuration   time.Duration `mapstructure:"badge_duration"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	TopicWidth      int           `mapstructure:"topic_width"`
	StartVisible    bool          `mapstructure:"start_visible"`
}

// SignalsConfig points at the notification stream. An empty URL keeps
// notifications in-process.
type SignalsConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig controls the local statistics service.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features and the log destination.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// ValidationError reports a single invalid setting.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Key, e.Reason)
}

// Load builds a Config from disk/environment. Environment variables use the
// TUTORBAR_ prefix with dots replaced by underscores
// (TUTORBAR_PANEL_ENDPOINT).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TUTORBAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Panel: PanelConfig{
			Endpoint:        "http://localhost:8000/learning/progress",
			RefreshInterval: 30 * time.Second,
			ClockInterval:   time.Minute,
			BadgeDuration:   3 * time.Second,
			FetchTimeout:    10 * time.Second,
			TopicWidth:      24,
			StartVisible:    true,
		},
		Server: ServerConfig{
			Addr: "localhost:8000",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("panel.endpoint", d.Panel.Endpoint)
	v.SetDefault("panel.refresh_interval", d.Panel.RefreshInterval)
	v.SetDefault("panel.clock_interval", d.Panel.ClockInterval)
	v.SetDefault("panel.badge_duration", d.Panel.BadgeDuration)
	v.SetDefault("panel.fetch_timeout", d.Panel.FetchTimeout)
	v.SetDefault("panel.topic_width", d.Panel.TopicWidth)
	v.SetDefault("panel.start_visible", d.Panel.StartVisible)
	v.SetDefault("signals.url", d.Signals.URL)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
}

// Validate checks that timers are positive and URLs parse.
func (c Config) Validate() error {
	if err := validateURL("panel.endpoint", c.Panel.Endpoint); err != nil {
		return err
	}
	if c.Signals.URL != "" {
		if err := validateURL("signals.url", c.Signals.URL); err != nil {
			return err
		}
	}
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"panel.refresh_interval", c.Panel.RefreshInterval},
		{"panel.clock_interval", c.Panel.ClockInterval},
		{"panel.badge_duration", c.Panel.BadgeDuration},
		{"panel.fetch_timeout", c.Panel.FetchTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return &ValidationError{Key: d.key, Reason: "must be positive"}
		}
	}
	if c.Panel.TopicWidth < 4 {
		return &ValidationError{Key: "panel.topic_width", Reason: "must be at least 4"}
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return &ValidationError{Key: "server.addr", Reason: "must not be empty"}
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Key: key, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Key: key, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Key: key, Reason: "missing host"}
	}
	return nil
}
