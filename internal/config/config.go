package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VOID_ENGINE_"

// PathEnv names the variable holding an optional YAML config file.
const PathEnv = EnvPrefix + "CONFIG"

var validate = validator.New()

// #region config
// Config holds everything the service needs at boot.
type Config struct {
	Capacity  int    `yaml:"capacity" env:"CAPACITY" validate:"gt=0,lte=1048576"`
	StatePath string `yaml:"state_path" env:"STATE_PATH" validate:"required"`
	// ArchivePath is the SQLite history database; empty disables the archive.
	ArchivePath string `yaml:"archive_path" env:"ARCHIVE_PATH"`
	// FlushEvery counts ticks between flushes; 0 only flushes on the interval.
	FlushEvery    int           `yaml:"flush_every" env:"FLUSH_EVERY" validate:"gte=0"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	GRPCAddr      string        `yaml:"grpc_addr" env:"GRPC_ADDR" validate:"required"`
	// HTTPAddr serves /metrics and the status API when set.
	HTTPAddr     string          `yaml:"http_addr" env:"HTTP_ADDR"`
	LogLevel     string          `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat    string          `yaml:"log_format" env:"LOG_FORMAT" validate:"oneof=text json"`
	OTelEndpoint string          `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
	Feedback     feedback.Config `yaml:"feedback" envPrefix:"FEEDBACK_"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Capacity:      memory.DefaultCapacity,
		StatePath:     "memoryfield.json",
		FlushEvery:    16,
		FlushInterval: 30 * time.Second,
		GRPCAddr:      "localhost:50061",
		LogLevel:      "info",
		LogFormat:     "text",
		Feedback:      feedback.DefaultConfig(),
	}
}

// #endregion config

// #region load
// Load layers defaults, the YAML file at path (if path is non-empty) and the
// environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv is Load with the file path taken from VOID_ENGINE_CONFIG.
func LoadFromEnv() (Config, error) {
	return Load(os.Getenv(PathEnv))
}

// #endregion load

// #region validate
// Validate reports the first invalid setting, wrapping memory.ErrConfiguration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s fails %q (got %v)", memory.ErrConfiguration, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", memory.ErrConfiguration, err)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("%w: flush_interval must not be negative, got %s", memory.ErrConfiguration, c.FlushInterval)
	}
	return c.Feedback.Validate()
}

// #endregion validate
