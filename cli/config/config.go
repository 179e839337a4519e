package config

import (
	"fmt"
	"time"
)

// Config represents a strata.yaml configuration file. All values are
// optional and act as defaults for the engine and CLI; CLI flags always
// override config values.
type Config struct {
	Engine   EngineConfig                `yaml:"engine"`
	Scratch  ScratchConfig               `yaml:"scratch"`
	Profiles map[string]ProfileConfig    `yaml:"profiles"`
	// StatePath is where the shell's opaque UI-state document is
	// persisted (default ".strata-state.json").
	StatePath string `yaml:"state_path"`
}

// EngineConfig tunes the job engine's worker pool, per-job part
// concurrency, per-scheme connection limits, and retry backoff.
type EngineConfig struct {
	// Workers is the fixed worker pool size (default 5).
	Workers int `yaml:"workers"`
	// PartConcurrency caps intra-job fan-out, e.g. multipart upload parts
	// (default 4).
	PartConcurrency int `yaml:"part_concurrency"`
	// ConnectionsPerScheme caps in-flight HTTP/gRPC connections per scheme
	// (default 16).
	ConnectionsPerScheme int `yaml:"connections_per_scheme"`
	// RequestTimeout is the per-backend-call deadline (default 30s).
	RequestTimeout Duration `yaml:"request_timeout"`
	// AzureCopyPollTimeout bounds an async Azure copy's polling loop
	// (default 10m).
	AzureCopyPollTimeout Duration `yaml:"azure_copy_poll_timeout"`
	Retry                RetryConfig `yaml:"retry"`
	// JournalPath is where the job journal is persisted.
	JournalPath string `yaml:"journal_path"`
}

// RetryConfig configures the engine's exponential backoff for transient
// failures.
type RetryConfig struct {
	// BaseDelay is the first retry's delay (default 500ms).
	BaseDelay Duration `yaml:"base_delay"`
	// Factor is the backoff multiplier applied per attempt (default 2).
	Factor float64 `yaml:"factor"`
	// JitterFraction is the +/- fraction of randomness applied to each
	// delay (default 0.2).
	JitterFraction float64 `yaml:"jitter_fraction"`
	// MaxDelay caps the computed delay (default 30s).
	MaxDelay Duration `yaml:"max_delay"`
	// MaxAttempts is the maximum number of attempts before failing
	// (default 5).
	MaxAttempts int `yaml:"max_attempts"`
}

// ScratchConfig configures the stream-through scratch directory used for
// cross-scheme copies.
type ScratchConfig struct {
	Dir       string `yaml:"dir"`
	QuotaMiB  int64  `yaml:"quota_mib"`
}

// ProfileConfig declares a provider profile inline, for bootstrapping
// before the encrypted secret store is unlocked. Credential fields here are
// meant for local/dev use (env-var expanded); production credentials
// belong in the secret store.
type ProfileConfig struct {
	Scheme      string            `yaml:"scheme"`
	DisplayName string            `yaml:"display_name"`
	Enabled     bool              `yaml:"enabled"`
	Settings    map[string]string `yaml:"settings"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Defaults fills zero-valued fields with the engine's documented defaults.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Workers:              5,
			PartConcurrency:      4,
			ConnectionsPerScheme: 16,
			RequestTimeout:       Duration{30 * time.Second},
			AzureCopyPollTimeout: Duration{10 * time.Minute},
			Retry: RetryConfig{
				BaseDelay:      Duration{500 * time.Millisecond},
				Factor:         2,
				JitterFraction: 0.2,
				MaxDelay:       Duration{30 * time.Second},
				MaxAttempts:    5,
			},
			JournalPath: "journal.msgpack",
		},
		Scratch: ScratchConfig{
			Dir:      ".strata-scratch",
			QuotaMiB: 4096,
		},
		StatePath: ".strata-state.json",
	}
}

// WithDefaults returns a copy of c with every zero-valued field replaced by
// its documented default.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Engine.Workers == 0 {
		c.Engine.Workers = d.Engine.Workers
	}
	if c.Engine.PartConcurrency == 0 {
		c.Engine.PartConcurrency = d.Engine.PartConcurrency
	}
	if c.Engine.ConnectionsPerScheme == 0 {
		c.Engine.ConnectionsPerScheme = d.Engine.ConnectionsPerScheme
	}
	if c.Engine.RequestTimeout.Duration == 0 {
		c.Engine.RequestTimeout = d.Engine.RequestTimeout
	}
	if c.Engine.AzureCopyPollTimeout.Duration == 0 {
		c.Engine.AzureCopyPollTimeout = d.Engine.AzureCopyPollTimeout
	}
	if c.Engine.Retry.BaseDelay.Duration == 0 {
		c.Engine.Retry.BaseDelay = d.Engine.Retry.BaseDelay
	}
	if c.Engine.Retry.Factor == 0 {
		c.Engine.Retry.Factor = d.Engine.Retry.Factor
	}
	if c.Engine.Retry.JitterFraction == 0 {
		c.Engine.Retry.JitterFraction = d.Engine.Retry.JitterFraction
	}
	if c.Engine.Retry.MaxDelay.Duration == 0 {
		c.Engine.Retry.MaxDelay = d.Engine.Retry.MaxDelay
	}
	if c.Engine.Retry.MaxAttempts == 0 {
		c.Engine.Retry.MaxAttempts = d.Engine.Retry.MaxAttempts
	}
	if c.Engine.JournalPath == "" {
		c.Engine.JournalPath = d.Engine.JournalPath
	}
	if c.Scratch.Dir == "" {
		c.Scratch.Dir = d.Scratch.Dir
	}
	if c.Scratch.QuotaMiB == 0 {
		c.Scratch.QuotaMiB = d.Scratch.QuotaMiB
	}
	if c.StatePath == "" {
		c.StatePath = d.StatePath
	}
	return c
}
