package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the jobrag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Matching   MatchingConfig   `yaml:"matching"`
	Generation GenerationConfig `yaml:"generation"`
	Sources    SourcesConfig    `yaml:"sources"`
	Notify     NotifyConfig     `yaml:"notify"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds snapshot store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	Vectorizer  string                      `yaml:"vectorizer"` // key into Vectorizers; optional with one entry
	BatchSize   int                         `yaml:"batch_size"`
	TimeoutSec  int                         `yaml:"timeout_sec"`
	Cache       bool                        `yaml:"cache"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Kind    string       `yaml:"kind"` // openai (default), gemini
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// ChunkingConfig holds text splitter settings.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// CorpusConfig bounds a single rebuild.
type CorpusConfig struct {
	MaxChunks        int `yaml:"max_chunks"`
	MaxRecords       int `yaml:"max_records"`
	MaxDocumentBytes int `yaml:"max_document_bytes"`
}

// RetrievalConfig holds per-corpus k settings.
type RetrievalConfig struct {
	DefaultKJobs    int `yaml:"default_k_jobs"`
	DefaultKResumes int `yaml:"default_k_resumes"`
	MaxK            int `yaml:"max_k"`
}

// MatchingConfig holds match engine settings.
type MatchingConfig struct {
	Threshold float64 `yaml:"threshold"`
	Workers   int     `yaml:"workers"`
}

// GenerationConfig holds the answering model settings.
type GenerationConfig struct {
	Provider     string `yaml:"provider"` // openai, gemini
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	SystemPrompt string `yaml:"system_prompt"`
	TimeoutSec   int    `yaml:"timeout_sec"`
}

// SourcesConfig holds resume fetch settings.
type SourcesConfig struct {
	HTTPTimeoutSec int      `yaml:"http_timeout_sec"`
	MaxBytes       int64    `yaml:"max_bytes"`
	S3             S3Config `yaml:"s3"`
}

// S3Config holds object storage settings. Empty region and endpoint disable s3:// sources.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// NotifyConfig selects and configures the notification driver.
type NotifyConfig struct {
	Driver string     `yaml:"driver"` // log (default), amqp, smtp
	AMQP   AMQPConfig `yaml:"amqp"`
	SMTP   SMTPConfig `yaml:"smtp"`
}

// AMQPConfig holds broker settings.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// Vectorizer returns the selected vectorizer and its provider.
func (c *Config) Vectorizer() (string, VectorizerConfig, ProviderConfig) {
	name := c.Embedding.Vectorizer
	if name == "" {
		for n := range c.Embedding.Vectorizers {
			name = n
			break
		}
	}
	vc := c.Embedding.Vectorizers[name]
	return vc.Provider, vc, c.Embedding.Providers[vc.Provider]
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 32 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 800
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = 150
		}
	}
	if c.Corpus.MaxChunks <= 0 {
		c.Corpus.MaxChunks = 20000
	}
	if c.Corpus.MaxRecords <= 0 {
		c.Corpus.MaxRecords = 5000
	}
	if c.Corpus.MaxDocumentBytes <= 0 {
		c.Corpus.MaxDocumentBytes = 10 << 20
	}
	if c.Retrieval.DefaultKJobs <= 0 {
		c.Retrieval.DefaultKJobs = 5
	}
	if c.Retrieval.DefaultKResumes <= 0 {
		c.Retrieval.DefaultKResumes = 5
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 100
	}
	if c.Matching.Threshold == 0 {
		c.Matching.Threshold = 0.6
	}
	if c.Generation.Provider == "" {
		c.Generation.Provider = "openai"
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if c.Sources.HTTPTimeoutSec <= 0 {
		c.Sources.HTTPTimeoutSec = 30
	}
	if c.Sources.MaxBytes <= 0 {
		c.Sources.MaxBytes = int64(c.Corpus.MaxDocumentBytes)
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = "log"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case "redis", "valkey":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be redis, valkey or memory, got %q", c.Database.Driver)
	}

	for name, p := range c.Embedding.Providers {
		switch p.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
		switch p.Kind {
		case "", "openai", "gemini":
		default:
			return fmt.Errorf("embedding.providers.%s.kind must be openai or gemini, got %q", name, p.Kind)
		}
	}
	if c.Embedding.Vectorizer != "" {
		if _, ok := c.Embedding.Vectorizers[c.Embedding.Vectorizer]; !ok {
			return fmt.Errorf("embedding.vectorizer %q is not defined", c.Embedding.Vectorizer)
		}
	}
	for name, v := range c.Embedding.Vectorizers {
		if _, ok := c.Embedding.Providers[v.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined", name, v.Provider)
		}
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be within [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Matching.Threshold < 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold must be within [0, 1], got %v", c.Matching.Threshold)
	}
	if c.Retrieval.DefaultKJobs > c.Retrieval.MaxK || c.Retrieval.DefaultKResumes > c.Retrieval.MaxK {
		return fmt.Errorf("retrieval default k must not exceed max_k %d", c.Retrieval.MaxK)
	}

	switch c.Generation.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("generation.provider must be openai or gemini, got %q", c.Generation.Provider)
	}

	switch c.Notify.Driver {
	case "log":
	case "amqp":
		if c.Notify.AMQP.URL == "" {
			return fmt.Errorf("notify.amqp.url is required for the amqp driver")
		}
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" {
			return fmt.Errorf("notify.smtp.host and notify.smtp.from are required for the smtp driver")
		}
	default:
		return fmt.Errorf("notify.driver must be log, amqp or smtp, got %q", c.Notify.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
