// cmd/historian/main.go drains the action queue into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/config"
	"github.com/Ahlecss/Gobeluno-server/internal/database"
	"github.com/Ahlecss/Gobeluno-server/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	cfg := &config.HistorianConfig{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.HistorianConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gobeluno-historian",
		Short: "Persists queued game actions to Postgres in batches.",
		Args:  cobra.ExactArgs(0),
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
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, cfg *config.HistorianConfig) error {
	logger := logrus.New()
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	store := database.NewStore(pool, logger)
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	hs := historian.New(logger, cache.NewConsumer(rdb, cfg.Queue), store, cfg.Options())
	hs.Run(ctx)
	logger.Info("historian shutdown complete")
	return nil
}
