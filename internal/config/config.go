package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"

	"salereport/backend/internal/domain"
)

type Config struct {
	Port          string   `env:"PORT" envDefault:"8080"`
	AllowedOrigin string   `env:"ALLOWED_ORIGIN" envDefault:"*"`
	DatabaseURL   string   `env:"DATABASE_URL"`
	MongoURI      string   `env:"MONGO_URI"`
	MongoDB       string   `env:"MONGO_DB" envDefault:"salereport"`
	RedisAddr     string   `env:"REDIS_ADDR"`
	RedisPassword string   `env:"REDIS_PASSWORD"`
	RedisDB       int      `env:"REDIS_DB" envDefault:"0"`
	ShopList      []string `env:"SHOPS" envDefault:"lazada,shopee" envSeparator:","`
	LogLevel      string   `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string   `env:"APP_ENV" envDefault:"production"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must not be negative, got %d", cfg.RedisDB)
	}
	if len(cfg.Shops()) == 0 {
		return Config{}, fmt.Errorf("SHOPS must name at least one shop")
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Shops returns the normalised, de-duplicated shop set.
func (c Config) Shops() []string {
	shops := make([]string, 0, len(c.ShopList))
	for _, raw := range c.ShopList {
		shop := domain.NormalizeShop(raw)
		if shop == "" || slices.Contains(shops, shop) {
			continue
		}
		shops = append(shops, shop)
	}
	return shops
}

func (c Config) Development() bool {
	return strings.EqualFold(c.AppEnv, "development") || strings.EqualFold(c.AppEnv, "dev")
}
