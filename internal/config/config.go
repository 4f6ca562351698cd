// Package config loads the saathi configuration file and applies environment
// overrides on top of it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Language LanguageConfig `yaml:"language"`
	Search   SearchConfig   `yaml:"search"`
	Speech   SpeechConfig   `yaml:"speech"`
	Audio    AudioConfig    `yaml:"audio"`
	Audit    AuditConfig    `yaml:"audit"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LLMConfig selects the generative model.
type LLMConfig struct {
	Provider           string `yaml:"provider"` // dummy, gemini, openai, anthropic, ollama
	Model              string `yaml:"model"`
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	TranscriptionModel string `yaml:"transcription_model"`
	Timeout            string `yaml:"timeout"`
	CacheSize          int    `yaml:"cache_size"`
	CacheTTL           string `yaml:"cache_ttl"`
}

// LanguageConfig controls language handling and the assistant persona.
type LanguageConfig struct {
	Fallback string `yaml:"fallback"`
	Persona  string `yaml:"persona"`
}

// SearchConfig selects the search tool backend.
type SearchConfig struct {
	Backend    string `yaml:"backend"` // stub, web
	Endpoint   string `yaml:"endpoint"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
	StubDelay  string `yaml:"stub_delay"`
}

// SpeechConfig selects speech output.
type SpeechConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Backend       string   `yaml:"backend"` // silent, openai
	Model         string   `yaml:"model"`
	Voice         string   `yaml:"voice"`
	PlayerCommand string   `yaml:"player_command"`
	PlayerArgs    []string `yaml:"player_args"`
	Delay         string   `yaml:"delay"`
}

// AudioConfig describes the capture command used for live recording.
type AudioConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	MIME    string   `yaml:"mime"`
}

// AuditConfig selects where exchanges are recorded.
type AuditConfig struct {
	Backend    string `yaml:"backend"` // none, memory, postgres, mongo
	DSN        string `yaml:"dsn"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	// Redact masks emails and phone numbers before entries are stored.
	Redact bool `yaml:"redact"`
}

// ServerConfig configures the HTTP presentation boundary.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns a configuration that runs offline.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "dummy",
			Model:    "gemini-2.5-flash",
			Timeout:  "60s",
			CacheTTL: "5m",
		},
		Language: LanguageConfig{Fallback: "en"},
		Search: SearchConfig{
			Backend:    "stub",
			MaxResults: 3,
			Timeout:    "10s",
			StubDelay:  "500ms",
		},
		Speech: SpeechConfig{
			Backend: "silent",
			Model:   "tts-1",
			Voice:   "nova",
			Delay:   "300ms",
		},
		Audio:   AudioConfig{MIME: "audio/webm"},
		Audit:   AuditConfig{Backend: "memory", Database: "saathi", Collection: "exchange_audit", Redact: true},
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: "10s"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SAATHI_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("SAATHI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SAATHI_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SAATHI_SEARCH_BACKEND"); v != "" {
		c.Search.Backend = v
	}
	if v := os.Getenv("SAATHI_AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("SAATHI_AUDIT_DSN"); v != "" {
		c.Audit.DSN = v
	}
	if v := os.Getenv("SAATHI_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SAATHI_SPEECH"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Speech.Enabled = on
		}
	}
}

// Known values for the enumerated settings.
var (
	ValidProviders      = []string{"dummy", "gemini", "google", "openai", "anthropic", "claude", "ollama"}
	ValidSearchBackends = []string{"stub", "web"}
	ValidSpeechBackends = []string{"silent", "openai"}
	ValidAuditBackends  = []string{"none", "memory", "postgres", "mongo"}
	ValidLogLevels      = []string{"debug", "info", "warn", "error"}
)

// Validate rejects unknown enumerations and unusable durations.
func (c *Config) Validate() error {
	checks := []struct {
		name, value string
		valid       []string
	}{
		{"llm.provider", c.LLM.Provider, ValidProviders},
		{"search.backend", c.Search.Backend, ValidSearchBackends},
		{"speech.backend", c.Speech.Backend, ValidSpeechBackends},
		{"audit.backend", c.Audit.Backend, ValidAuditBackends},
		{"logging.level", c.Logging.Level, ValidLogLevels},
	}
	for _, ch := range checks {
		if !contains(ch.valid, ch.value) {
			return fmt.Errorf("invalid %s: %q (valid: %v)", ch.name, ch.value, ch.valid)
		}
	}
	durations := map[string]string{
		"llm.timeout":             c.LLM.Timeout,
		"llm.cache_ttl":           c.LLM.CacheTTL,
		"search.timeout":          c.Search.Timeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for name, raw := range durations {
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s: must be positive", name)
		}
	}
	for name, raw := range map[string]string{"speech.delay": c.Speech.Delay, "search.stub_delay": c.Search.StubDelay} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if (c.Audit.Backend == "postgres" || c.Audit.Backend == "mongo") && c.Audit.DSN == "" {
		return fmt.Errorf("audit.dsn is required for the %s backend", c.Audit.Backend)
	}
	if c.Speech.Enabled && c.Speech.Backend == "openai" && c.Speech.PlayerCommand == "" {
		return fmt.Errorf("speech.player_command is required for the openai backend")
	}
	return nil
}

// LLMTimeout returns the per-generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

// CacheTTL returns the model response cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.LLM.CacheTTL, 5*time.Minute)
}

// SearchTimeout returns the web search request timeout.
func (c *Config) SearchTimeout() time.Duration {
	return parseDuration(c.Search.Timeout, 10*time.Second)
}

// StubDelay returns the simulated stub search latency. Negative disables it.
func (c *Config) StubDelay() time.Duration {
	return parseSigned(c.Search.StubDelay, 500*time.Millisecond)
}

// SpeakDelay returns the delay before an answer is spoken. Negative speaks at once.
func (c *Config) SpeakDelay() time.Duration {
	return parseSigned(c.Speech.Delay, 300*time.Millisecond)
}

// ShutdownTimeout bounds graceful server shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseSigned(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	if d == 0 {
		return -1
	}
	return d
}

func contains(list []string, v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
