// internal/config/historian.go
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/historian"
	"github.com/spf13/pflag"
)

// HistorianConfig holds the queue consumer settings.
type HistorianConfig struct {
	RedisAddr   string
	RedisDB     int
	Queue       string
	DatabaseURL string

	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration

	Verbose bool
}

func (c *HistorianConfig) RegisterFlags(fs *pflag.FlagSet) {
	def := historian.DefaultOptions()

	fs.StringVar(&c.RedisAddr, "redis-addr", "localhost:6379", "Redis address (env: GOBELUNO_REDIS_ADDR)")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number (env: GOBELUNO_REDIS_DB)")
	fs.StringVar(&c.Queue, "historian-queue", cache.DefaultQueueName, "Redis list to drain (env: GOBELUNO_HISTORIAN_QUEUE)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "Postgres URL (env: GOBELUNO_DATABASE_URL)")
	fs.IntVar(&c.BatchSize, "batch-size", def.BatchSize, "actions per transaction (env: GOBELUNO_BATCH_SIZE)")
	fs.DurationVar(&c.FlushInterval, "flush-interval", def.FlushInterval, "maximum time an action waits in the buffer (env: GOBELUNO_FLUSH_INTERVAL)")
	fs.DurationVar(&c.Inactivity, "inactivity", def.Inactivity, "idle time before a game is marked abandoned (env: GOBELUNO_INACTIVITY)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log at debug level (env: GOBELUNO_VERBOSE)")
}

func (c *HistorianConfig) Validate() error {
	if c.RedisAddr == "" {
		return errors.New("redis-addr is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("database-url is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1, got %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 || c.Inactivity <= 0 {
		return errors.New("flush-interval and inactivity must be positive")
	}
	return nil
}

// Options converts the flags into historian.Options.
func (c *HistorianConfig) Options() historian.Options {
	opts := historian.DefaultOptions()
	opts.BatchSize = c.BatchSize
	opts.FlushInterval = c.FlushInterval
	opts.Inactivity = c.Inactivity
	return opts
}
