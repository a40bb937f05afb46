package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// Gateway integration
	GatewaySalt    string // secret for X-Gateway-Token HMAC
	GatewayFeedURL string // websocket vote-event feed; empty disables the consumer
	GatewayAPIURL  string // announcement endpoint; empty falls back to log-only

	// Metadata lookup
	MetadataAPIURL string
	MetadataAPIKey string

	// Lifecycle timing
	DeadlineInterval time.Duration // deadline watcher tick
	PollInterval     time.Duration // selection poll watcher tick
	RatingWindow     time.Duration // rating poll voting window
}

// Defaults match the deployed bot: deadlines checked every 10 minutes,
// expired selection polls every minute, rating polls open for 6d23h.
// DefaultMetadataAPIURL is the public volumes endpoint root.
const DefaultMetadataAPIURL = "https://www.googleapis.com/books/v1"

const (
	DefaultDeadlineInterval = 10 * time.Minute
	DefaultPollInterval     = time.Minute
	DefaultRatingWindow     = 6*24*time.Hour + 23*time.Hour
)

// ParseFlags validates flags and sets port number
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("fable", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.GatewayFeedURL, "feed", "", "Gateway vote-event feed URL (ws://...)")
	fs.StringVar(&cfg.GatewayAPIURL, "gateway", "", "Gateway announcement API URL")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.GatewaySalt, "gateway-salt", "", "Gateway token salt (prefer env)")
	fs.StringVar(&cfg.MetadataAPIKey, "metadata-key", "", "Metadata API key (prefer env)")
	fs.StringVar(&cfg.MetadataAPIURL, "metadata-url", "", "Metadata API URL")

	fs.DurationVar(&cfg.DeadlineInterval, "deadline-interval", 0, "Deadline watcher interval")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", 0, "Selection poll watcher interval")
	fs.DurationVar(&cfg.RatingWindow, "rating-window", 0, "Rating poll voting window")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3326 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "postgres"
		}
	}
	if cfg.DatabaseType != "postgres" && cfg.DatabaseType != "sqlite" {
		return Config{}, errors.New("database type must be postgres or sqlite")
	}

	if cfg.GatewayFeedURL == "" {
		cfg.GatewayFeedURL = os.Getenv("GATEWAY_FEED_URL")
	}
	if cfg.GatewayAPIURL == "" {
		cfg.GatewayAPIURL = os.Getenv("GATEWAY_API_URL")
	}
	if cfg.MetadataAPIKey == "" {
		cfg.MetadataAPIKey = os.Getenv("METADATA_API_KEY")
	}
	if cfg.MetadataAPIURL == "" {
		cfg.MetadataAPIURL = os.Getenv("METADATA_API_URL")
	}
	if cfg.MetadataAPIURL == "" {
		cfg.MetadataAPIURL = DefaultMetadataAPIURL
	}

	// Secrets - MUST be provided
	if cfg.GatewaySalt == "" {
		cfg.GatewaySalt = os.Getenv("GATEWAY_TOKEN_SALT")
	}
	if cfg.GatewaySalt == "" {
		return Config{}, errors.New("GATEWAY_TOKEN_SALT required")
	}

	if cfg.DeadlineInterval == 0 {
		if d, err := envDuration("DEADLINE_INTERVAL"); err != nil {
			return Config{}, err
		} else if d > 0 {
			cfg.DeadlineInterval = d
		} else {
			cfg.DeadlineInterval = DefaultDeadlineInterval
		}
	}
	if cfg.PollInterval == 0 {
		if d, err := envDuration("POLL_INTERVAL"); err != nil {
			return Config{}, err
		} else if d > 0 {
			cfg.PollInterval = d
		} else {
			cfg.PollInterval = DefaultPollInterval
		}
	}
	if cfg.RatingWindow == 0 {
		if d, err := envDuration("RATING_WINDOW"); err != nil {
			return Config{}, err
		} else if d > 0 {
			cfg.RatingWindow = d
		} else {
			cfg.RatingWindow = DefaultRatingWindow
		}
	}

	return cfg, nil
}

func envDuration(key string) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key + " env variable")
	}
	return d, nil
}
