package llm

import (
	"fmt"
	"os"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPaths is searched, in order, by LoadFromDefaultPaths.
var DefaultConfigPaths = []string{
	"llm_providers.yaml",
	"config/llm_providers.yaml",
	".config/llm_providers.yaml",
}

// ProviderConfig is one entry in llm_providers.yaml.
type ProviderConfig struct {
	ProviderID    string         `yaml:"provider_id"`
	ProviderType  string         `yaml:"provider_type"`
	DisplayName   string         `yaml:"display_name"`
	APIKeyEnv     string         `yaml:"api_key_env"`
	DefaultModel  string         `yaml:"default_model,omitempty"`
	BaseURL       string         `yaml:"base_url,omitempty"`
	Enabled       bool           `yaml:"enabled"`
	Metadata      map[string]any `yaml:"metadata,omitempty"`
}

// ProvidersConfig is the top-level shape of llm_providers.yaml.
type ProvidersConfig struct {
	DefaultProviderID string           `yaml:"default_provider_id,omitempty"`
	Providers         []ProviderConfig `yaml:"providers"`
}

// ProviderMetadata is the typed shape of a ProviderConfig's free-form
// Metadata bag, decoded on demand via decodeMetadata. Unrecognized keys
// are ignored rather than rejected, since Metadata is also where callers
// stash adapter-specific values this type doesn't know about.
type ProviderMetadata struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ExtraHeaders   []string      `mapstructure:"extra_headers"`
	Organization   string        `mapstructure:"organization"`
}

// decodeMetadata decodes p.Metadata into a ProviderMetadata, applying the
// same string-to-duration and string-to-slice hooks the rest of the
// ecosystem uses for loosely typed YAML bags.
func (p ProviderConfig) decodeMetadata() (ProviderMetadata, error) {
	var meta ProviderMetadata
	if len(p.Metadata) == 0 {
		return meta, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return meta, fmt.Errorf("build metadata decoder: %w", err)
	}
	if err := decoder.Decode(p.Metadata); err != nil {
		return meta, fmt.Errorf("decode metadata for provider %s: %w", p.ProviderID, err)
	}
	return meta, nil
}

// LoadFile parses a YAML config file at path.
func LoadFile(path string) (*ProvidersConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg ProvidersConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDefaultPaths searches DefaultConfigPaths in order and returns
// the first one found, or nil if none exist.
func LoadFromDefaultPaths() (*ProvidersConfig, error) {
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := LoadFile(path)
		if err != nil {
			slog.Warn("failed to load provider config, skipping", "path", path, "error", err)
			continue
		}
		return cfg, nil
	}
	return nil, nil
}

// wellKnownEnvProviders is the fallback provider set the bootstrap path
// builds when no YAML config file is present.
var wellKnownEnvProviders = []struct {
	providerType string
	envVar       string
	defaultModel string
}{
	{"openai", "OPENAI_API_KEY", "gpt-4"},
	{"anthropic", "ANTHROPIC_API_KEY", "claude-3-5-sonnet-20241022"},
	{"gemini", "GEMINI_API_KEY", "gemini-pro"},
	{"grok", "GROK_API_KEY", "grok-beta"},
}

// DefaultConfigFromEnv builds a provider set straight from the four
// well-known env vars, for use when no YAML file is present.
func DefaultConfigFromEnv() *ProvidersConfig {
	var cfg ProvidersConfig
	for _, p := range wellKnownEnvProviders {
		if os.Getenv(p.envVar) == "" {
			continue
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			ProviderID:   p.providerType + "_default",
			ProviderType: p.providerType,
			DisplayName:  p.providerType + " (default)",
			APIKeyEnv:    p.envVar,
			DefaultModel: p.defaultModel,
			Enabled:      true,
		})
	}
	if len(cfg.Providers) > 0 {
		cfg.DefaultProviderID = cfg.Providers[0].ProviderID
	}
	return &cfg
}

// Build populates a Registry from cfg. API keys are resolved lazily from
// the environment; entries lacking a key are skipped with a warning;
// disabled entries are skipped silently.
func Build(cfg *ProvidersConfig) (*Registry, error) {
	reg := NewRegistry()

	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}

		apiKey := os.Getenv(p.APIKeyEnv)
		if apiKey == "" {
			slog.Warn("skipping provider: missing_api_key",
				"provider_id", p.ProviderID, "reason", errMissingAPIKey(p.ProviderID, p.APIKeyEnv))
			continue
		}

		adapter, err := NewAdapter(p.ProviderType, apiKey, p.DefaultModel, p.BaseURL)
		if err != nil {
			slog.Warn("skipping provider: unrecognized provider_type",
				"provider_id", p.ProviderID, "provider_type", p.ProviderType)
			continue
		}

		meta, err := p.decodeMetadata()
		if err != nil {
			slog.Warn("ignoring unparseable provider metadata", "provider_id", p.ProviderID, "error", err)
		} else if meta.RequestTimeout > 0 {
			if ts, ok := adapter.(interface{ SetTimeout(time.Duration) }); ok {
				ts.SetTimeout(meta.RequestTimeout)
			}
		}

		if err := reg.Add(p.ProviderID, adapter); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultProviderID != "" {
		if err := reg.SetDefault(cfg.DefaultProviderID); err != nil {
			slog.Warn("default_provider_id does not match any registered provider",
				"default_provider_id", cfg.DefaultProviderID)
		}
	}

	return reg, nil
}

// LoadOrDefault loads .env (if present), then llm_providers.yaml from
// DefaultConfigPaths, falling back to DefaultConfigFromEnv when no file
// is found. This is the one-call bootstrap path for cmd/reasonctl and
// tests.
func LoadOrDefault() (*Registry, error) {
	_ = godotenv.Load() // optional local .env; absence is not an error

	cfg, err := LoadFromDefaultPaths()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		slog.Info("no provider config file found, building default configuration from environment")
		cfg = DefaultConfigFromEnv()
	}

	return Build(cfg)
}
