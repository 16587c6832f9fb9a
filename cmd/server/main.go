// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/config"
	"github.com/Ahlecss/Gobeluno-server/internal/database"
	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/Ahlecss/Gobeluno-server/internal/handlers"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gobeluno-server",
		Short:   "Authoritative server for a shared-table Uno game over websockets.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cfg.RegisterFlags(cmd.Flags())
	config.BindEnv(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	session := game.NewSession(logger, cfg.HouseRules())

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		session.ActionLog = cache.NewPublisher(rdb, cfg.HistorianQueue)
		logger.Infof("publishing actions to Redis list %s", cfg.HistorianQueue)
	}

	var results handlers.ResultStore
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		store := database.NewStore(pool, logger)
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		results = store
		logger.Info("storing game results in Postgres")
	}

	opts := handlers.DefaultOptions()
	opts.AllowedOrigins = cfg.AllowedOrigins
	opts.RateLimit = rate.Limit(cfg.RateLimit)
	opts.RateBurst = cfg.RateBurst
	opts.ClientURL = cfg.ClientURL

	gs := handlers.NewGameServer(logger, session, results, opts)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(logger, gs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
