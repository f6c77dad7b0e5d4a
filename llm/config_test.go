package llm

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llm_providers.yaml")
	content := `
default_provider_id: openai_main
providers:
  - provider_id: openai_main
    provider_type: openai
    display_name: OpenAI
    api_key_env: TEST_OPENAI_KEY
    default_model: gpt-4
    enabled: true
  - provider_id: disabled_one
    provider_type: anthropic
    api_key_env: TEST_ANTHROPIC_KEY
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "openai_main", cfg.DefaultProviderID)
	assert.Len(t, cfg.Providers, 2)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestBuildSkipsMissingAPIKey(t *testing.T) {
	os.Unsetenv("TEST_MISSING_KEY_VAR")
	cfg := &ProvidersConfig{
		Providers: []ProviderConfig{
			{ProviderID: "p1", ProviderType: "openai", APIKeyEnv: "TEST_MISSING_KEY_VAR", Enabled: true},
		},
	}
	reg, err := Build(cfg)
	require.NoError(t, err)

	_, err = reg.Get("p1")
	assert.Error(t, err, "expected p1 to be skipped for missing api key")
}

func TestBuildSkipsDisabledEntry(t *testing.T) {
	t.Setenv("TEST_DISABLED_KEY_VAR", "some-key")
	cfg := &ProvidersConfig{
		Providers: []ProviderConfig{
			{ProviderID: "p2", ProviderType: "openai", APIKeyEnv: "TEST_DISABLED_KEY_VAR", Enabled: false},
		},
	}
	reg, err := Build(cfg)
	require.NoError(t, err)

	_, err = reg.Get("p2")
	assert.Error(t, err, "expected disabled entry to be skipped")
}

func TestBuildRegistersEnabledProviderWithKey(t *testing.T) {
	t.Setenv("TEST_ENABLED_KEY_VAR", "some-key")
	cfg := &ProvidersConfig{
		DefaultProviderID: "p3",
		Providers: []ProviderConfig{
			{ProviderID: "p3", ProviderType: "anthropic", APIKeyEnv: "TEST_ENABLED_KEY_VAR", DefaultModel: "claude-3-5-sonnet-20241022", Enabled: true},
		},
	}
	reg, err := Build(cfg)
	require.NoError(t, err)

	a, err := reg.Get("p3")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", a.ProviderName())

	def, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", def.ProviderName())
}

func TestBuildUnrecognizedProviderTypeSkipped(t *testing.T) {
	t.Setenv("TEST_UNKNOWN_TYPE_KEY", "some-key")
	cfg := &ProvidersConfig{
		Providers: []ProviderConfig{
			{ProviderID: "p4", ProviderType: "not-a-real-provider", APIKeyEnv: "TEST_UNKNOWN_TYPE_KEY", Enabled: true},
		},
	}
	reg, err := Build(cfg)
	require.NoError(t, err)

	_, err = reg.Get("p4")
	assert.Error(t, err, "expected unrecognized provider type to be skipped")
}

func TestDecodeMetadataAppliesRequestTimeout(t *testing.T) {
	p := ProviderConfig{
		ProviderID: "p5",
		Metadata: map[string]any{
			"request_timeout": "15s",
			"extra_headers":   "X-One,X-Two",
			"organization":    "acme",
		},
	}
	meta, err := p.decodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, meta.RequestTimeout)
	assert.Equal(t, []string{"X-One", "X-Two"}, meta.ExtraHeaders)
	assert.Equal(t, "acme", meta.Organization)
}

func TestDecodeMetadataEmptyIsZeroValue(t *testing.T) {
	p := ProviderConfig{ProviderID: "p6"}
	meta, err := p.decodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, ProviderMetadata{}, meta)
}

func TestBuildAppliesDecodedRequestTimeoutToAdapter(t *testing.T) {
	t.Setenv("TEST_TIMEOUT_KEY_VAR", "some-key")
	cfg := &ProvidersConfig{
		Providers: []ProviderConfig{
			{
				ProviderID:   "p7",
				ProviderType: "openai",
				APIKeyEnv:    "TEST_TIMEOUT_KEY_VAR",
				Enabled:      true,
				Metadata:     map[string]any{"request_timeout": "2s"},
			},
		},
	}
	reg, err := Build(cfg)
	require.NoError(t, err)

	a, err := reg.Get("p7")
	require.NoError(t, err)
	openaiAdapter, ok := a.(*OpenAIAdapter)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, openaiAdapter.timeout)
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "k")
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")
	os.Unsetenv("GROK_API_KEY")

	cfg := DefaultConfigFromEnv()
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "openai", cfg.Providers[0].ProviderType)
	assert.Equal(t, cfg.Providers[0].ProviderID, cfg.DefaultProviderID)
}
