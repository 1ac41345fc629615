package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/2beens/exercisetracker/internal"
	"github.com/2beens/exercisetracker/internal/config"
	"github.com/2beens/exercisetracker/internal/logging"
	"github.com/2beens/exercisetracker/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var env, configPath string

	root := &cobra.Command{
		Use:           "exercisetracker",
		Short:         "Exercise tracker service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&env, "env", "development", "environment [prod | production | dev | development]")
	root.PersistentFlags().StringVar(&configPath, "config", "./config.toml", "path for the TOML config file")

	serve := newServeCmd(&env, &configPath)
	root.AddCommand(serve)
	root.AddCommand(newMigrateCmd(&env, &configPath))
	// no subcommand means serve
	root.RunE = serve.RunE
	return root
}

func loadConfig(env, configPath string) (*config.Config, error) {
	log.Warnf("---->> running in [%s] environment", env)

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return nil, err
	}

	logging.Setup(logging.LoggerSetupParams{
		LogsPath:         cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "exercise-tracker",
	})

	return cfg, nil
}

func newServeCmd(env, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the exercise tracker HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*env, *configPath)
			if err != nil {
				return err
			}

			log.Debugf("using port: %d", cfg.Port)
			log.Debugf("using store backend: [%s]", cfg.StoreBackend)

			if cfg.StaticDir != "" {
				exists, err := pkg.PathExists(cfg.StaticDir, true)
				if err != nil {
					return fmt.Errorf("check static dir: %w", err)
				}
				if !exists {
					log.Warnf("static dir [%s] not found, index page will 404", cfg.StaticDir)
				}
			}

			redisPassword := os.Getenv("TRACKER_REDIS_PASS")
			if redisPassword == "" && cfg.RedisAddr() != "" {
				log.Warnln("redis password not set. use TRACKER_REDIS_PASS")
			}

			honeycombEnabled := os.Getenv("HONEYCOMB_ENABLED") == "true"
			if honeycombEnabled {
				if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
					log.Warnln("HONEYCOMB_API_KEY env var not set")
				}
			} else {
				log.Debugln("honeycomb tracing disabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := internal.NewServer(ctx, internal.NewServerParams{
				Config:                  cfg,
				RedisPassword:           redisPassword,
				HoneycombTracingEnabled: honeycombEnabled,
			})
			if err != nil {
				return fmt.Errorf("new server: %w", err)
			}

			server.Serve(cfg.Host, cfg.Port)

			<-ctx.Done()
			log.Warnf("signal received, shutting down ...")

			return server.GracefulShutdown()
		},
	}
}

func newMigrateCmd(env, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema of the configured SQL store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*env, *configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// opening a SQL store applies the schema
			_, _, closeStore, err := internal.NewStore(ctx, cfg, false)
			if err != nil {
				return fmt.Errorf("migrate %s store: %w", cfg.StoreBackend, err)
			}
			closeStore()

			log.Infof("schema ready for store [%s]", cfg.StoreBackend)
			return nil
		},
	}
}
