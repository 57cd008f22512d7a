package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when project2article.yml leaves a field unset.
const (
	DefaultMaxUploadBytes = 20 << 20
	DefaultMaxExcerpt     = 4000
	DefaultCallTimeout    = 60 * time.Second
	DefaultRetries        = 1
	DefaultRunTimeout     = 10 * time.Minute
	DefaultAddr           = ":8080"
	DefaultMaxRuns        = 4
	DefaultArtifactDir    = "artifacts"
	DefaultHistoryDSN     = "project2article.db"
)

// Config holds settings loaded from project2article.yml, .env and the
// process environment.
type Config struct {
	Upload    UploadConfig    `yaml:"upload,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Artifacts ArtifactConfig  `yaml:"artifacts,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	CodeIndex CodeIndexConfig `yaml:"codeIndex,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Verbose   bool            `yaml:"verbose,omitempty"`
}

// UploadConfig bounds what the archive extractor accepts.
type UploadConfig struct {
	MaxBytes   int64 `yaml:"maxBytes,omitempty"`
	MaxExcerpt int   `yaml:"maxExcerpt,omitempty"`
}

// LLMConfig tunes the provider gateway.
type LLMConfig struct {
	CallTimeout time.Duration     `yaml:"callTimeout,omitempty"`
	Retries     *int              `yaml:"retries,omitempty"`
	RunTimeout  time.Duration     `yaml:"runTimeout,omitempty"`
	Models      map[string]string `yaml:"models,omitempty"`
	Temperature float64           `yaml:"temperature,omitempty"`
	MaxTokens   int               `yaml:"maxTokens,omitempty"`
}

// ArtifactConfig selects where generated articles are stored.
type ArtifactConfig struct {
	Backend string   `yaml:"backend,omitempty"` // "disk" or "s3"
	Dir     string   `yaml:"dir,omitempty"`
	S3      S3Config `yaml:"s3,omitempty"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
}

// HistoryConfig points at the run history database. A DSN starting with
// postgres:// or postgresql:// selects PostgreSQL; anything else is a SQLite
// file path.
type HistoryConfig struct {
	DSN      string `yaml:"dsn,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// CodeIndexConfig selects the symbol index backend ("memory" or "kuzu").
type CodeIndexConfig struct {
	Backend string `yaml:"backend,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr    string `yaml:"addr,omitempty"`
	MaxRuns int    `yaml:"maxRuns,omitempty"`
}

// credentialEnv maps provider ids to the environment variable holding their key.
var credentialEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
}

// Load reads project2article.yml or project2article.yaml from dir, loads
// dir/.env into the process environment without overriding variables that
// are already set, then applies environment overrides and defaults. A
// missing config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	for _, name := range []string{"project2article.yml", "project2article.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		break
	}

	_ = godotenv.Load(filepath.Join(dir, ".env"))

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with every default applied and no file or
// environment input.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("P2A_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: P2A_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Upload.MaxBytes = n
	}
	if v := os.Getenv("P2A_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: P2A_CALL_TIMEOUT: %w", err)
		}
		c.LLM.CallTimeout = d
	}
	if v := os.Getenv("P2A_HISTORY_DSN"); v != "" {
		c.History.DSN = v
	}
	if v := os.Getenv("P2A_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("P2A_S3_ACCESS_KEY"); v != "" {
		c.Artifacts.S3.AccessKey = v
	}
	if v := os.Getenv("P2A_S3_SECRET_KEY"); v != "" {
		c.Artifacts.S3.SecretKey = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Upload.MaxExcerpt <= 0 {
		c.Upload.MaxExcerpt = DefaultMaxExcerpt
	}
	if c.LLM.CallTimeout <= 0 {
		c.LLM.CallTimeout = DefaultCallTimeout
	}
	if c.LLM.Retries == nil {
		r := DefaultRetries
		c.LLM.Retries = &r
	}
	if c.LLM.RunTimeout <= 0 {
		c.LLM.RunTimeout = DefaultRunTimeout
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = "disk"
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = DefaultArtifactDir
	}
	if c.History.DSN == "" {
		c.History.DSN = DefaultHistoryDSN
	}
	if c.CodeIndex.Backend == "" {
		c.CodeIndex.Backend = "memory"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MaxRuns <= 0 {
		c.Server.MaxRuns = DefaultMaxRuns
	}
}

// RetryCount returns the configured number of retries after a failed call.
func (c *Config) RetryCount() int {
	if c.LLM.Retries == nil {
		return DefaultRetries
	}
	return *c.LLM.Retries
}

// Credential resolves the API key for provider: a non-empty direct value
// wins, otherwise the provider's environment variable is read.
func (c *Config) Credential(provider, direct string) string {
	if k := strings.TrimSpace(direct); k != "" {
		return k
	}
	if env, ok := credentialEnv[provider]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// CredentialEnv returns the environment variable consulted for provider.
func CredentialEnv(provider string) string {
	return credentialEnv[provider]
}

// Model returns the configured model override for provider, or "".
func (c *Config) Model(provider string) string {
	return c.LLM.Models[provider]
}
