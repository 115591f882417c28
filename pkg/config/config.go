// Package config loads typed configuration structs from the environment.
//
// Each package owns its Config struct, tagged for caarlos0/env:
//
//	type Config struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
// A .env file in the working directory is read once before the first load.
// Variables already set in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
)

var dotenvOnce sync.Once

// Option adjusts how variables are resolved.
type Option func(*env.Options)

// WithPrefix prepends prefix to every variable name of the struct.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithVars resolves variables from vars instead of the process environment.
func WithVars(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// Load parses the environment into v.
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// Missing .env is fine, deployments set variables directly.
		_ = godotenv.Load()
	})

	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}

	if err := env.ParseWithOptions(v, o); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Use it for configuration
// the process cannot start without.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
