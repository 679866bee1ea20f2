// Package config loads process configuration from the environment.
//
// Every binary calls Load* exactly once at startup and passes the resulting
// struct down. Nothing below cmd/ reads os.Getenv.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ParseEnv loads configuration from environment variables into target,
// which must be a pointer to a struct with `env` tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// loadDotEnv reads an optional .env file. A missing file is not an error;
// variables already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}
