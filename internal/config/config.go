package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains service configuration parameters.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel int    `env:"LOG_LEVEL" envDefault:"0"`
	MaxCars  int    `env:"MAX_CARS" envDefault:"5"`
	Mongo    Mongo  `envPrefix:"MONGO_"`
}

// Mongo contains document store connection parameters.
type Mongo struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"userfleet"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
