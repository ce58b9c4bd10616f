package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canaldelcongreso/portal/internal/config"
	"github.com/canaldelcongreso/portal/internal/database"
	"github.com/canaldelcongreso/portal/internal/errors"
	"github.com/canaldelcongreso/portal/internal/server"
	"github.com/canaldelcongreso/portal/pkg/auth"
)

func serveCmd() *cobra.Command {
	var (
		configDir string
		envFile   string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload server",
		Long: `Start the upload server.

Configuration is read from portal.json in the config directory and
overridden by PORTAL_* environment variables. A .env file, if present,
is loaded first.

Examples:
  portal serve
  portal serve --config /etc/portal --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configDir, "config", "c", ".", "Directory containing portal.json")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading config")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from portal.json)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	store, err := server.NewStore(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := server.Deps{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Registry: reg,
		Checks:   make(map[string]server.Check),
	}

	if cfg.Database.URL != "" {
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		deps.Checks["database"] = pool.Ping
		logger.Info("database pool ready", "max_conns", cfg.Database.MaxConns)
	}

	if cfg.Auth.Enabled {
		var opts []auth.VerifierOption
		if cfg.Auth.Issuer != "" {
			opts = append(opts, auth.WithIssuer(cfg.Auth.Issuer))
		}

		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()

			if err := rdb.Ping(ctx).Err(); err != nil {
				return errors.New("P141").WithDetail("redis.addr is " + cfg.Redis.Addr).Wrap(err)
			}
			opts = append(opts, auth.WithRevocations(
				auth.NewRedisRevocations(rdb, auth.WithRevocationPrefix(cfg.Redis.Prefix)),
			))
			deps.Checks["redis"] = func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}
		}

		v, err := auth.NewVerifier(cfg.Auth.Secret, opts...)
		if err != nil {
			return errors.New("P104").Wrap(err)
		}
		deps.Verifier = v
	} else {
		logger.Warn("upload endpoint is not authenticated", "hint", "set auth.enabled")
	}

	logger.Info("upload store ready", "backend", cfg.Storage.Backend)

	if err := server.New(deps).Run(ctx); err != nil {
		return errors.New("P161").Wrap(err)
	}
	return nil
}
