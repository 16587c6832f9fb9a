// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/Ahlecss/Gobeluno-server/internal/game"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GOBELUNO_PORT.
const EnvPrefix = "GOBELUNO"

// Config holds the game server settings.
type Config struct {
	Bind           string
	Port           int
	AllowedOrigins []string
	ClientURL      string

	RedisAddr      string
	RedisDB        int
	HistorianQueue string
	DatabaseURL    string

	MaxPlayers  int
	TurnTimeout time.Duration

	RateLimit float64
	RateBurst int

	Verbose bool
}

// RegisterFlags declares every server flag on fs, writing into c.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	rules := game.DefaultHouseRules()

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: GOBELUNO_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 3000, "port to listen on (env: GOBELUNO_PORT)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", []string{"*"}, "websocket and CORS origin patterns (env: GOBELUNO_ALLOWED_ORIGINS)")
	fs.StringVar(&c.ClientURL, "client-url", "", "URL encoded by /qr, defaults to this server (env: GOBELUNO_CLIENT_URL)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the action log, empty to disable (env: GOBELUNO_REDIS_ADDR)")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number (env: GOBELUNO_REDIS_DB)")
	fs.StringVar(&c.HistorianQueue, "historian-queue", cache.DefaultQueueName, "Redis list for action records (env: GOBELUNO_HISTORIAN_QUEUE)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "Postgres URL for game results, empty to disable (env: GOBELUNO_DATABASE_URL)")
	fs.IntVar(&c.MaxPlayers, "max-players", rules.MaxPlayers, "seats at the table (env: GOBELUNO_MAX_PLAYERS)")
	fs.DurationVar(&c.TurnTimeout, "turn-timeout", rules.TurnTimeout, "time before a stalled turn is played automatically, 0 to disable (env: GOBELUNO_TURN_TIMEOUT)")
	fs.Float64Var(&c.RateLimit, "rate-limit", 10, "inbound messages per second per connection, 0 for unlimited (env: GOBELUNO_RATE_LIMIT)")
	fs.IntVar(&c.RateBurst, "rate-burst", 10, "inbound message burst per connection (env: GOBELUNO_RATE_BURST)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log at debug level (env: GOBELUNO_VERBOSE)")
}

// Validate checks ranges that flag parsing cannot.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if err := c.HouseRules().Validate(); err != nil {
		return err
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate-limit must be non-negative, got %v", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate-burst must be at least 1, got %d", c.RateBurst)
	}
	if len(c.AllowedOrigins) == 0 {
		return errors.New("allowed-origins must not be empty")
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

func (c *Config) HouseRules() game.HouseRules {
	return game.HouseRules{
		MaxPlayers:  c.MaxPlayers,
		TurnTimeout: c.TurnTimeout,
	}
}

// BindEnv lets GOBELUNO_* variables fill any flag not given on the command line.
// Call it after the flags are registered and before they are parsed.
func BindEnv(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
	return v
}
