package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config" toml:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases" toml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis" toml:"redis"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`
	LLM         LLMConfig                 `json:"llm" yaml:"llm" toml:"llm"`
	Storage     StorageConfig             `json:"storage" yaml:"storage" toml:"storage"`
	Logging     LoggingConfig             `json:"logging" yaml:"logging" toml:"logging"`
	CORS        CORSConfig                `json:"cors" yaml:"cors" toml:"cors"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address" toml:"server_address"`
	// TestUserID stands in for an authenticated user until real auth exists.
	TestUserID        string `json:"test_user_id" yaml:"test_user_id" toml:"test_user_id"`
	StreamTimeout     int    `json:"stream_timeout_seconds" yaml:"stream_timeout_seconds" toml:"stream_timeout_seconds"`
	TitleTimeout      int    `json:"title_timeout_seconds" yaml:"title_timeout_seconds" toml:"title_timeout_seconds"`
	LockConversations *bool  `json:"lock_conversations" yaml:"lock_conversations" toml:"lock_conversations"`
	MinWorkers        int    `json:"min_workers" yaml:"min_workers" toml:"min_workers"`
	MaxWorkers        int    `json:"max_workers" yaml:"max_workers" toml:"max_workers"`
	QueueSize         int    `json:"queue_size" yaml:"queue_size" toml:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout_seconds" yaml:"worker_idle_timeout_seconds" toml:"worker_idle_timeout_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn" toml:"dsn"`
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DBName   string `json:"dbname" yaml:"dbname" toml:"dbname"`
	Params   string `json:"params" yaml:"params" toml:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Host     string `json:"host" yaml:"host" toml:"host"`
	Port     int    `json:"port" yaml:"port" toml:"port"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
	DB       int    `json:"db" yaml:"db" toml:"db"`
}

type ProviderConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url" toml:"base_url"`
	Model     string `json:"model" yaml:"model" toml:"model"`
	APIKey    string `json:"api_key" yaml:"api_key" toml:"api_key"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
}

// LLMConfig picks the completion backend ("eino", "langchain" or "static") and the provider it talks to.
type LLMConfig struct {
	Backend  string `json:"backend" yaml:"backend" toml:"backend"`
	Provider string `json:"provider" yaml:"provider" toml:"provider"`
}

// StorageConfig selects where rendered documents live.
type StorageConfig struct {
	Backend         string `json:"backend" yaml:"backend" toml:"backend"`
	DocumentsDir    string `json:"documents_dir" yaml:"documents_dir" toml:"documents_dir"`
	Bucket          string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Prefix          string `json:"prefix" yaml:"prefix" toml:"prefix"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" toml:"credentials_file"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	File  string `json:"file" yaml:"file" toml:"file"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

const (
	DefaultServerAddress = ":3001"
	DefaultTestUserID    = "test-user-id-12345"
	DefaultDocumentsDir  = "./uploads/documents"
	DefaultProvider      = "claude"
	DefaultClaudeModel   = "claude-sonnet-4-20250514"
	DefaultMaxTokens     = 8192
)

var providerKeyEnv = map[string]string{
	"claude":    "ANTHROPIC_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// Load reads configuration from the provided path (defaults to config.json).
// The format follows the file extension: .json, .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	raw = []byte(expandEnvVars(string(raw)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &cfg)
	case ".toml":
		_, err = toml.Decode(string(raw), &cfg)
	default:
		err = json.NewDecoder(bytes.NewReader(raw)).Decode(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.resolvePaths(filepath.Dir(absPath))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration usable without a config file: sqlite in ./data, local documents, claude via eino.
func Default() *Config {
	cfg := &Config{
		Databases: map[string]DatabaseConfig{
			"sqlite3": {DSN: "file:./data/agentdocs.db?_foreign_keys=on"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = DefaultServerAddress
	}
	if b.TestUserID == "" {
		b.TestUserID = DefaultTestUserID
	}
	if b.StreamTimeout <= 0 {
		b.StreamTimeout = 120
	}
	if b.TitleTimeout <= 0 {
		b.TitleTimeout = 5
	}
	if b.LockConversations == nil {
		on := true
		b.LockConversations = &on
	}
	if b.MinWorkers <= 0 {
		b.MinWorkers = 1
	}
	if b.MaxWorkers < b.MinWorkers {
		b.MaxWorkers = 4
		if b.MaxWorkers < b.MinWorkers {
			b.MaxWorkers = b.MinWorkers
		}
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 64
	}
	if b.WorkerIdleTimeout <= 0 {
		b.WorkerIdleTimeout = 30
	}

	if c.LLM.Backend == "" {
		c.LLM.Backend = "eino"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if _, ok := c.Providers[DefaultProvider]; !ok {
		c.Providers[DefaultProvider] = ProviderConfig{Model: DefaultClaudeModel, MaxTokens: DefaultMaxTokens}
	}
	for name, p := range c.Providers {
		if p.APIKey == "" {
			if env, ok := providerKeyEnv[name]; ok {
				p.APIKey = os.Getenv(env)
			}
		}
		if p.MaxTokens <= 0 {
			p.MaxTokens = DefaultMaxTokens
		}
		c.Providers[name] = p
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = DefaultDocumentsDir
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports configuration errors that would only surface at request time otherwise.
func (c *Config) Validate() error {
	switch c.LLM.Backend {
	case "eino", "langchain", "static":
	default:
		return fmt.Errorf("llm.backend must be one of eino, langchain, static (got %q)", c.LLM.Backend)
	}
	switch c.Storage.Backend {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be configured for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs (got %q)", c.Storage.Backend)
	}
	if c.Redis.Enabled && c.Redis.Port < 0 {
		return fmt.Errorf("redis.port must not be negative")
	}
	return nil
}

// StreamTimeout bounds a single provider stream.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.BasicConfig.StreamTimeout) * time.Second
}

// TitleTimeout bounds the best-effort title update.
func (c *Config) TitleTimeout() time.Duration {
	return time.Duration(c.BasicConfig.TitleTimeout) * time.Second
}

func (c *Config) WorkerIdleTimeout() time.Duration {
	return time.Duration(c.BasicConfig.WorkerIdleTimeout) * time.Second
}

func (c *Config) resolvePaths(base string) {
	if d := c.Storage.DocumentsDir; d != "" && !filepath.IsAbs(d) {
		c.Storage.DocumentsDir = filepath.Join(base, d)
	}
	if f := c.Storage.CredentialsFile; f != "" && !filepath.IsAbs(f) {
		c.Storage.CredentialsFile = filepath.Join(base, f)
	}
	if f := c.Logging.File; f != "" && !filepath.IsAbs(f) {
		c.Logging.File = filepath.Join(base, f)
	}
	for _, name := range []string{"sqlite", "sqlite3"} {
		if db, ok := c.Databases[name]; ok {
			db.DSN = resolveSQLiteDSN(base, db.DSN)
			c.Databases[name] = db
		}
	}
}

// resolveSQLiteDSN anchors a relative database file to base, keeping the file: prefix and query.
func resolveSQLiteDSN(base, dsn string) string {
	if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	prefix, rest := "", dsn
	if strings.HasPrefix(rest, "file:") {
		prefix, rest = "file:", strings.TrimPrefix(rest, "file:")
	}
	path, query, hasQuery := strings.Cut(rest, "?")
	if path == "" || filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return dsn
	}
	out := prefix + filepath.Join(base, path)
	if hasQuery {
		out += "?" + query
	}
	return out
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} with the environment value; unset variables expand to "".
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}
