package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const minSessionSecretLength = 32

type Config struct {
	AppEnv        string        `env:"APP_ENV" default:"development"`
	Port          string        `env:"PORT" default:"8080"`
	AppURL        string        `env:"APP_URL" default:"http://localhost:8080"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	RedisURL      string        `env:"REDIS_URL"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"8760h"` // 1 year
	AdminToken    string        `env:"ADMIN_TOKEN"`
	LogLevel      string        `env:"LOG_LEVEL" default:"info"`
	LogFormat     string        `env:"LOG_FORMAT" default:"text"`

	TickInterval     time.Duration `env:"TICK_INTERVAL" default:"2s"`
	RotationDuration time.Duration `env:"ROTATION_DURATION" default:"120s"`
	MaxRemaining     time.Duration `env:"ROTATION_MAX_REMAINING" default:"300s"`
	RevealInterval   time.Duration `env:"REVEAL_INTERVAL" default:"20s"`
	SatelliteCount   int           `env:"SATELLITE_COUNT" default:"5"`

	UpvoteBonus     time.Duration `env:"UPVOTE_BONUS" default:"15s"`
	DownvotePenalty time.Duration `env:"DOWNVOTE_PENALTY" default:"20s"`
	ReactCooldown   time.Duration `env:"REACT_COOLDOWN" default:"10s"`
	SkipThreshold   int           `env:"SKIP_THRESHOLD" default:"3"`
	SkipScope       string        `env:"SKIP_SCOPE" default:"user"`

	PoolWeightFresh      float64 `env:"POOL_WEIGHT_FRESH" default:"0.6"`
	PoolWeightRerun      float64 `env:"POOL_WEIGHT_RERUN" default:"0.3"`
	PoolWeightWildcard   float64 `env:"POOL_WEIGHT_WILDCARD" default:"0.1"`
	FatigueLookback      int     `env:"FATIGUE_LOOKBACK" default:"20"`
	NominationScoreBoost float64 `env:"NOMINATION_SCORE_BOOST" default:"0.5"`

	RecentActionsSize int `env:"RECENT_ACTIONS_SIZE" default:"50"`
	StreamQueueSize   int `env:"STREAM_QUEUE_SIZE" default:"32"`
	MaxViewers        int `env:"MAX_VIEWERS" default:"10000"`
	OutboxSize        int `env:"OUTBOX_SIZE" default:"1024"`
	MaxStreamsPerIP   int `env:"MAX_STREAMS_PER_IP" default:"20"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"5"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL":   cfg.DatabaseURL,
		"SESSION_SECRET": cfg.SessionSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSessionSecretLength)
	}

	positive := map[string]time.Duration{
		"TICK_INTERVAL":     cfg.TickInterval,
		"ROTATION_DURATION": cfg.RotationDuration,
		"REVEAL_INTERVAL":   cfg.RevealInterval,
		"REACT_COOLDOWN":    cfg.ReactCooldown,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if cfg.MaxRemaining < cfg.RotationDuration {
		return fmt.Errorf("ROTATION_MAX_REMAINING (%s) must not be lower than ROTATION_DURATION (%s)", cfg.MaxRemaining, cfg.RotationDuration)
	}
	if cfg.UpvoteBonus < 0 || cfg.DownvotePenalty < 0 {
		return errors.New("UPVOTE_BONUS and DOWNVOTE_PENALTY must not be negative")
	}

	if cfg.SatelliteCount < 0 {
		return errors.New("SATELLITE_COUNT must not be negative")
	}
	if cfg.SkipThreshold < 1 {
		return errors.New("SKIP_THRESHOLD must be at least 1")
	}
	if cfg.SkipScope != "user" && cfg.SkipScope != "rotation" {
		return fmt.Errorf("SKIP_SCOPE must be \"user\" or \"rotation\", got %q", cfg.SkipScope)
	}

	if cfg.PoolWeightFresh < 0 || cfg.PoolWeightRerun < 0 || cfg.PoolWeightWildcard < 0 {
		return errors.New("pool weights must not be negative")
	}
	if cfg.PoolWeightFresh+cfg.PoolWeightRerun+cfg.PoolWeightWildcard == 0 {
		return errors.New("at least one pool weight must be positive")
	}
	if cfg.FatigueLookback < 0 {
		return errors.New("FATIGUE_LOOKBACK must not be negative")
	}

	sizes := map[string]int{
		"RECENT_ACTIONS_SIZE": cfg.RecentActionsSize,
		"STREAM_QUEUE_SIZE":   cfg.StreamQueueSize,
		"MAX_VIEWERS":         cfg.MaxViewers,
		"OUTBOX_SIZE":         cfg.OutboxSize,
		"MAX_STREAMS_PER_IP":  cfg.MaxStreamsPerIP,
	}
	for name, value := range sizes {
		if value < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
	}

	return nil
}
