// Package config loads relaykv settings.
//
// Values are layered: Default, then an optional YAML file, then RELAYKV_*
// environment variables. The merged result is validated against an embedded
// CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relaykv/internal/identity"
	"github.com/roach88/relaykv/internal/kv"
	"github.com/roach88/relaykv/internal/transport"
)

//go:embed schema.cue
var schemaCUE string

// DefaultRelays are public relays used when nothing else is configured.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nostr-pub.wellorder.net",
	"wss://relay.snort.social",
}

// ErrNoRelays is returned when the relay list is empty.
var ErrNoRelays = errors.New("no relays configured")

// Config is the merged configuration.
type Config struct {
	Relays         []string      `yaml:"relays" env:"RELAYKV_RELAYS" envSeparator:","`
	KeyFile        string        `yaml:"key_file" env:"RELAYKV_KEY_FILE"`
	Decrypt        bool          `yaml:"decrypt" env:"RELAYKV_DECRYPT"`
	AggregateCount int           `yaml:"aggregate_count" env:"RELAYKV_AGGREGATE_COUNT"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout" env:"RELAYKV_FETCH_TIMEOUT"`
	ExitPolicy     string        `yaml:"exit_policy" env:"RELAYKV_EXIT_POLICY"`
	LogLevel       string        `yaml:"log_level" env:"RELAYKV_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Relays:         append([]string(nil), DefaultRelays...),
		KeyFile:        identity.DefaultKeyPath(),
		Decrypt:        true,
		AggregateCount: kv.DefaultAggregateCount,
		FetchTimeout:   DefaultFetchTimeout,
		ExitPolicy:     transport.ExitAll.String(),
		LogLevel:       "info",
	}
}

// Load merges Default, the YAML file at path (skipped when path is empty)
// and the environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ParseEnv overlays RELAYKV_* environment variables onto target. Unset
// variables leave fields unchanged.
func ParseEnv(target *Config) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration against the schema.
func (c Config) Validate() error {
	if len(c.Relays) == 0 {
		return ErrNoRelays
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(c.schemaView()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", firstCUEError(err))
	}
	return nil
}

// schemaView is the config as the schema names its fields.
func (c Config) schemaView() map[string]any {
	return map[string]any{
		"relays":           c.Relays,
		"key_file":         c.KeyFile,
		"decrypt":          c.Decrypt,
		"aggregate_count":  c.AggregateCount,
		"fetch_timeout_ms": c.FetchTimeout.Milliseconds(),
		"exit_policy":      strings.ToLower(c.ExitPolicy),
		"log_level":        strings.ToLower(c.LogLevel),
	}
}

func firstCUEError(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}

// QueryOptions returns the store read options.
func (c Config) QueryOptions() kv.QueryOptions {
	return kv.QueryOptions{Decrypt: c.Decrypt, AggregateCount: c.AggregateCount}
}

// FetchOptions returns the transport fetch options. ExitPolicy must have
// passed Validate.
func (c Config) FetchOptions() transport.FetchOptions {
	exit, _ := transport.ParseExitPolicy(c.ExitPolicy)
	return transport.FetchOptions{Timeout: c.FetchTimeout, Exit: exit}
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
