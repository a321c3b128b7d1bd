package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Initialize loads, defaults, resolves, and validates the configuration.
// This is the primary entry point.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Strict-decode the user YAML over them (unknown keys rejected)
//  3. Fill mode-dependent run bounds left unset
//  4. Merge built-in per-source defaults under each integration entry
//  5. Resolve credentials from the named environment variables
//  6. Validate everything
func Initialize(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	slog.Info("Configuration initialized",
		"mode", cfg.Run.Mode,
		"max_tasks", cfg.Run.MaxTasks,
		"max_time_minutes", cfg.Run.MaxTimeMinutes,
		"model", cfg.LLM.Model,
		"integrations", len(cfg.Integrations))
	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, NewLoadError(path, fmt.Errorf("%w: %s", ErrConfigNotFound, path))
			}
			return nil, NewLoadError(path, err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	applyModeDefaults(cfg)

	if err := applyIntegrationDefaults(cfg); err != nil {
		return nil, NewLoadError(path, err)
	}
	resolveCredentials(cfg)

	return cfg, nil
}

// decodeStrict parses YAML over the prefilled defaults. Keys present in the
// file always win, including explicit false and zero; keys the Config does
// not know are rejected.
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if strings.Contains(err.Error(), "not found in type") {
		return fmt.Errorf("%w: %v", ErrUnknownKey, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
}

// applyIntegrationDefaults merges built-in per-source settings under each
// user entry, so a one-line `enabled: true` picks up the source's key env
// and timeout.
func applyIntegrationDefaults(cfg *Config) error {
	builtin := builtinIntegrationDefaults()
	for id, ic := range cfg.Integrations {
		def, ok := builtin[id]
		if !ok {
			def = genericIntegrationDefaults()
		}
		if err := mergo.Merge(&ic, def); err != nil {
			return fmt.Errorf("merge defaults for integration %q: %w", id, err)
		}
		cfg.Integrations[id] = ic
	}
	return nil
}

// resolveCredentials reads every configured *_env variable. A missing
// credential is not an error here; the registry reports the source
// unavailable when it is first requested.
func resolveCredentials(cfg *Config) {
	if cfg.LLM.APIKeyEnv != "" {
		cfg.LLM.APIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	for id, ic := range cfg.Integrations {
		if ic.APIKeyEnv != "" {
			ic.APIKey = os.Getenv(ic.APIKeyEnv)
			cfg.Integrations[id] = ic
		}
	}
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return NewValidationError(sectionOf(first.Namespace()), first.Field(),
				fmt.Errorf("%w: failed %q constraint", ErrInvalidValue, first.Tag()))
		}
		return err
	}

	if cfg.FollowUp.MaxFollowUpsPerTask != nil && *cfg.FollowUp.MaxFollowUpsPerTask < 0 {
		return NewValidationError("follow_up", "max_follow_ups_per_task",
			fmt.Errorf("%w: must be >= 0 or null", ErrInvalidValue))
	}
	if cfg.LLM.APIKeyEnv == "" && cfg.LLM.APIKey == "" {
		return NewValidationError("llm", "api_key_env", ErrMissingRequiredField)
	}
	return nil
}

// sectionOf maps a validator namespace like "Config.Run.MaxTasks" to its
// YAML section name.
func sectionOf(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) < 2 {
		return strings.ToLower(namespace)
	}
	return strings.ToLower(parts[1])
}
