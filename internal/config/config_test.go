package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "dummy", cfg.LLM.Provider)
	assert.Equal(t, 300*time.Millisecond, cfg.SpeakDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.StubDelay())
}

func TestDurationGetters(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout())

	cfg.Search.Timeout = "3s"
	cfg.LLM.Timeout = "bogus"
	assert.Equal(t, 3*time.Second, cfg.SearchTimeout())
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saathi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
speech:
  enabled: true
  delay: 0s
server:
  addr: 127.0.0.1:9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.True(t, cfg.Speech.Enabled)
	assert.Equal(t, "silent", cfg.Speech.Backend)
	assert.Negative(t, int64(cfg.SpeakDelay()))
	assert.Equal(t, "stub", cfg.Search.Backend)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SAATHI_PROVIDER", "gemini")
	t.Setenv("SAATHI_ADDR", ":9999")
	t.Setenv("SAATHI_AUDIT_BACKEND", "postgres")
	t.Setenv("SAATHI_AUDIT_DSN", "postgres://localhost/saathi")
	t.Setenv("SAATHI_SPEECH", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Audit.Backend)
	assert.True(t, cfg.Speech.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"provider":      func(c *Config) { c.LLM.Provider = "bard" },
		"search":        func(c *Config) { c.Search.Backend = "bing" },
		"audit":         func(c *Config) { c.Audit.Backend = "sqlite" },
		"level":         func(c *Config) { c.Logging.Level = "trace" },
		"timeout":       func(c *Config) { c.LLM.Timeout = "-1s" },
		"bad duration":  func(c *Config) { c.Search.Timeout = "soon" },
		"speech delay":  func(c *Config) { c.Speech.Delay = "later" },
		"postgres dsn":  func(c *Config) { c.Audit.Backend = "postgres" },
		"openai player": func(c *Config) { c.Speech.Enabled = true; c.Speech.Backend = "openai" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "saathi.yaml")
	cfg := Default()
	cfg.Language.Fallback = "hi"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hi", loaded.Language.Fallback)
}
