package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/sessionsync"
	"github.com/MrEthical07/sessionsync/httpstate"
	"github.com/MrEthical07/sessionsync/jwt"
	"github.com/MrEthical07/sessionsync/metrics/export/prometheus"
	"github.com/MrEthical07/sessionsync/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

type demoConfig struct {
	RedisAddr  string        `env:"REDIS_ADDR"`
	Prefix     string        `env:"SESSIONSYNC_PREFIX" envDefault:"ss"`
	DeviceID   string        `env:"SESSIONSYNC_DEVICE_ID" envDefault:"demo-device"`
	UserID     string        `env:"SESSIONSYNC_USER_ID" envDefault:"demo-user"`
	SigningKey string        `env:"SESSIONSYNC_SIGNING_KEY"`
	TokenTTL   time.Duration `env:"SESSIONSYNC_TOKEN_TTL" envDefault:"15m"`
	Step       time.Duration `env:"SESSIONSYNC_STEP" envDefault:"200ms"`
	HTTPAddr   string        `env:"SESSIONSYNC_HTTP_ADDR"`
	Debug      bool          `env:"SESSIONSYNC_DEBUG"`
}

func main() {
	var cfg demoConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "parse env: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "redis key and channel prefix")
	flag.StringVar(&cfg.DeviceID, "device", cfg.DeviceID, "device id whose session is synchronized")
	flag.StringVar(&cfg.UserID, "user", cfg.UserID, "user id to sign in")
	flag.DurationVar(&cfg.Step, "step", cfg.Step, "pause between scripted auth changes")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "if set, serve /session and /metrics here after the script until interrupted")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("demo failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg demoConfig, logger *slog.Logger) error {
	client, cleanup, err := openRedis(cfg.RedisAddr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("generate signing key: %w", err)
		}
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.TokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    key,
		Issuer:        "sessionsync-demo",
	})
	if err != nil {
		return fmt.Errorf("token manager: %w", err)
	}

	idp, err := provider.NewRedis(client, tokens, provider.RedisConfig{
		DeviceID: cfg.DeviceID,
		Prefix:   cfg.Prefix,
	}, nil)
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	rtt, err := idp.Ping(ctx)
	if err != nil {
		return err
	}
	logger.Info("identity provider ready",
		slog.String("channel", idp.Channel()),
		slog.Duration("ping", rtt),
		slog.Duration("token_ttl", tokens.AccessTTL()),
	)

	nav := sessionsync.NavigatorFunc(func(_ context.Context, route sessionsync.Route) error {
		fmt.Printf("-> navigate %s\n", route)
		return nil
	})

	synchronizer, err := sessionsync.New().
		WithProvider(idp).
		WithNavigator(nav).
		WithLogger(logger).
		WithAuditSink(sessionsync.NewSlogSink(logger)).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return fmt.Errorf("build synchronizer: %w", err)
	}
	defer synchronizer.Close()

	mount, err := synchronizer.Mount(ctx)
	if err != nil {
		return err
	}
	defer mount.Unmount()

	select {
	case <-mount.Resolved():
	case <-ctx.Done():
		return ctx.Err()
	}
	printState("resolved", mount.State())

	steps := []struct {
		name string
		do   func(context.Context) error
	}{
		{name: "sign in", do: func(ctx context.Context) error {
			_, err := idp.SignIn(ctx, cfg.UserID)
			return err
		}},
		{name: "refresh", do: func(ctx context.Context) error {
			_, err := idp.RefreshToken(ctx)
			return err
		}},
		{name: "sign out", do: idp.SignOut},
	}
	for _, step := range steps {
		if err := step.do(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		select {
		case <-time.After(cfg.Step):
		case <-ctx.Done():
			return ctx.Err()
		}
		printState(step.name, mount.State())
	}

	exporter := prometheus.NewPrometheusExporter(synchronizer)
	fmt.Print(exporter.Render())

	if cfg.HTTPAddr == "" {
		return nil
	}
	return serve(ctx, cfg.HTTPAddr, mount, exporter, synchronizer.Routes(), logger)
}

func openRedis(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info("using redis", slog.String("addr", addr))
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info("using miniredis", slog.String("addr", mr.Addr()))
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func serve(ctx context.Context, addr string, mount *sessionsync.Mount, exporter *prometheus.PrometheusExporter, routes sessionsync.Routes, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/session", httpstate.Handler(mount))
	mux.Handle("/metrics", exporter.Handler())
	mux.Handle(string(routes.AuthenticatedEntry), httpstate.RequireAuthenticated(mount, routes.SignInEntry)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := httpstate.SessionFromContext(r.Context())
			fmt.Fprintf(w, "signed in as %s\n", sess.UserID)
		}),
	))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func printState(label string, st sessionsync.State) {
	switch {
	case st.Loading:
		fmt.Printf("[%s] loading\n", label)
	case st.Session == nil:
		fmt.Printf("[%s] signed out\n", label)
	default:
		fmt.Printf("[%s] signed in user=%s session=%s\n", label, st.Session.UserID, st.Session.SessionID)
	}
}
