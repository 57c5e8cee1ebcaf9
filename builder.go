package sessionsync

import (
	"errors"
	"log/slog"

	internalaudit "github.com/MrEthical07/sessionsync/internal/audit"
	"github.com/MrEthical07/sessionsync/provider"
	"github.com/jonboulle/clockwork"
)

// Builder assembles a Synchronizer. A Builder can be built only once.
type Builder struct {
	config    Config
	client    provider.Client
	navigator Navigator
	auditSink AuditSink
	logger    *slog.Logger
	clock     clockwork.Clock

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider client used by every mount. Required.
func (b *Builder) WithProvider(client provider.Client) *Builder {
	b.client = client
	return b
}

// WithNavigator sets the navigation side effect. Without one, transitions are still
// tracked, counted and logged but nothing navigates.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithAuditSink sets the sink for audit events. A non-nil sink enables the audit
// dispatcher regardless of Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Nil keeps the default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock sets the clock used for latencies and audit timestamps.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the bootstrap latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Synchronizer.
func (b *Builder) Build() (*Synchronizer, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.client == nil {
		return nil, ErrNoProvider
	}

	cfg := cloneConfig(b.config)
	if b.auditSink != nil {
		cfg.Audit.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Synchronizer{
		config:    cfg,
		client:    b.client,
		navigator: b.navigator,
		boot:      bootstrapper{client: b.client, clock: clock},
		listen:    listener{client: b.client, cfg: cfg.Subscribe},
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger.With("component", "sessionsync"),
		clock:     clock,
		mounts:    make(map[*Mount]struct{}),
	}
	s.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true
	return s, nil
}
