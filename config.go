package sessionsync

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete synchronizer configuration. Start from DefaultConfig and
// override fields; Build validates it.
type Config struct {
	Routes    Routes
	Subscribe SubscribeConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// SubscribeConfig controls how the stream subscription is established.
type SubscribeConfig struct {
	// MaxAttempts bounds subscribe calls per mount. 1 disables retry.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters and the bootstrap latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when Builder.WithConfig is not called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Routes: Routes{
			AuthenticatedEntry: "/profile",
			SignInEntry:        "/(auth)/signin",
		},
		Subscribe: SubscribeConfig{
			MaxAttempts:    1,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks cfg for values the synchronizer cannot run with. Every error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(string(c.Routes.AuthenticatedEntry)) == "" {
		return fmt.Errorf("%w: Routes.AuthenticatedEntry must be set", ErrInvalidConfig)
	}
	if strings.TrimSpace(string(c.Routes.SignInEntry)) == "" {
		return fmt.Errorf("%w: Routes.SignInEntry must be set", ErrInvalidConfig)
	}
	if c.Routes.AuthenticatedEntry == c.Routes.SignInEntry {
		return fmt.Errorf("%w: authenticated and sign-in routes must differ", ErrInvalidConfig)
	}

	if c.Subscribe.MaxAttempts < 1 {
		return fmt.Errorf("%w: Subscribe.MaxAttempts must be >= 1", ErrInvalidConfig)
	}
	if c.Subscribe.MaxAttempts > 1 {
		if c.Subscribe.InitialBackoff <= 0 {
			return fmt.Errorf("%w: Subscribe.InitialBackoff must be > 0 when retrying", ErrInvalidConfig)
		}
		if c.Subscribe.MaxBackoff < c.Subscribe.InitialBackoff {
			return fmt.Errorf("%w: Subscribe.MaxBackoff must be >= InitialBackoff", ErrInvalidConfig)
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: Audit.BufferSize must be > 0 when audit is enabled", ErrInvalidConfig)
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return fmt.Errorf("%w: latency histograms require metrics to be enabled", ErrInvalidConfig)
	}

	return nil
}
