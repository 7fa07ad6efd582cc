// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server is the configuration of a metasocket server binary.
type Server struct {
	Addr            string        `env:"METASOCKET_ADDR" envDefault:"127.0.0.1:12345"`
	BufferSize      int           `env:"METASOCKET_BUFFER_SIZE" envDefault:"16"`
	MaxFrameSize    int           `env:"METASOCKET_MAX_FRAME_SIZE" envDefault:"1048576"`
	Heartbeat       time.Duration `env:"METASOCKET_HEARTBEAT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"METASOCKET_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses a Server configuration and checks its limits.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.MaxFrameSize <= 0 {
		return Server{}, fmt.Errorf("METASOCKET_MAX_FRAME_SIZE must be positive, got %d", cfg.MaxFrameSize)
	}
	return cfg, nil
}
