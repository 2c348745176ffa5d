package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Presence fan-out modes.
const (
	FanoutLocal = "local"
	FanoutRedis = "redis"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port            int           `env:"PORT" envDefault:"7777"`
		Origin          string        `env:"ORIGIN" envDefault:"http://localhost:7780"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	// Store selects the graph store backend: redis, mongo or memory.
	Store string `env:"STORE_DRIVER" envDefault:"redis"`

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Mongo struct {
		URI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
		Database string `env:"MONGODB_DATABASE" envDefault:"friend_connect"`
	}

	Auth struct {
		Secret     string        `env:"JWT_SECRET,required,notEmpty"`
		TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"24h"`
		BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
	}

	Recommendation struct {
		DefaultLimit   int           `env:"RECOMMEND_DEFAULT_LIMIT" envDefault:"10"`
		MaxLimit       int           `env:"RECOMMEND_MAX_LIMIT" envDefault:"50"`
		MaxCandidates  int           `env:"RECOMMEND_MAX_CANDIDATES" envDefault:"1000"`
		InterestWeight float64       `env:"RECOMMEND_INTEREST_WEIGHT" envDefault:"0"`
		Timeout        time.Duration `env:"RECOMMEND_TIMEOUT" envDefault:"5s"`
	}

	Presence struct {
		Fanout     string `env:"PRESENCE_FANOUT" envDefault:"local"`
		SendBuffer int    `env:"PRESENCE_SEND_BUFFER" envDefault:"32"`
	}

	RateLimit struct {
		// Friend requests per minute allowed per user, 0 disables limiting.
		RequestsPerMinute int `env:"FRIEND_REQUESTS_PER_MINUTE" envDefault:"30"`
		Burst             int `env:"FRIEND_REQUESTS_BURST" envDefault:"10"`
	}
}

// Load reads .env (if present) and the process environment into Config.
func Load() (*Config, error) {
	// A missing .env is fine, production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreRedis, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.Store)
	}
	switch c.Presence.Fanout {
	case FanoutLocal, FanoutRedis:
	default:
		return fmt.Errorf("invalid PRESENCE_FANOUT %q", c.Presence.Fanout)
	}
	if c.Presence.Fanout == FanoutRedis && c.Store != StoreRedis {
		return fmt.Errorf("PRESENCE_FANOUT=redis requires STORE_DRIVER=redis")
	}
	if c.Recommendation.DefaultLimit <= 0 || c.Recommendation.MaxLimit < c.Recommendation.DefaultLimit {
		return fmt.Errorf("invalid recommendation limits: default=%d max=%d",
			c.Recommendation.DefaultLimit, c.Recommendation.MaxLimit)
	}
	if c.Recommendation.MaxCandidates <= 0 {
		return fmt.Errorf("RECOMMEND_MAX_CANDIDATES must be > 0")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.Recommendation.InterestWeight < 0 {
		return fmt.Errorf("RECOMMEND_INTEREST_WEIGHT must be >= 0")
	}
	return nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
