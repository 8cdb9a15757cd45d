package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
// Values come from environment variables with sensible defaults.
//
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (required)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 500)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
// - LLM_TIMEOUT: Request timeout in seconds (default: 30)
// - LLM_SITE_URL: Site URL for HTTP referer header (optional)
// - LLM_APP_NAME: Application name for X-Title header (optional)
//
// Reader Configuration:
// - READER_DB_PATH: SQLite path for the durable store (default: ./data/reader.db)
// - READER_DATA_DIR: directory with the web shell and bundled JSON (default: ./web)
// - READER_PAGE_SIZE: sentence page size for lazy loading (default: 20)
//
// Asset Proxy Configuration:
// - ASSET_CACHE_PATH: SQLite path for the asset cache (default: ./data/assets.db)
// - ASSET_CACHE_NAME: active cache name, bump to roll the cache (default: tr-v1)
//
// Task Dispatch Configuration:
// - AI_ENDPOINT: remote AI task endpoint (default: http://localhost:8080/api/ai)
// - PROBE_URL: URL probed to derive the connectivity signal (default: AI_ENDPOINT)
// - PROBE_CRON: cron schedule for connectivity probes (default: every minute)
//
// Server Configuration:
// - HTTP_ADDR: listen address (default: :8080)
// - LOG_LEVEL: debug|info|warn|error (default: info)
// - LOG_FILE: optional log file path (default: stdout)
type Config struct {
	LLM    LLMConfig    `json:"llm"`
	Reader ReaderConfig `json:"reader"`
	Assets AssetConfig  `json:"assets"`
	Tasks  TaskConfig   `json:"tasks"`
	Server ServerConfig `json:"server"`
}

// LLMConfig holds the configuration for the LLM client.
// Supports any OpenAI-compatible provider.
type LLMConfig struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// ReaderConfig holds the durable store and bundled data configuration.
type ReaderConfig struct {
	DBPath   string `json:"db_path"`
	DataDir  string `json:"data_dir"`
	PageSize int    `json:"page_size"`
}

// AssetConfig holds the cache-first asset proxy configuration.
type AssetConfig struct {
	CachePath string `json:"cache_path"`
	CacheName string `json:"cache_name"`
}

// TaskConfig holds the AI task dispatch configuration.
type TaskConfig struct {
	Endpoint  string `json:"endpoint"`
	ProbeURL  string `json:"probe_url"`
	ProbeCron string `json:"probe_cron"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Addr     string `json:"addr"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	endpoint := getEnvString("AI_ENDPOINT", "http://localhost:8080/api/ai")
	config := &Config{
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://api.openai.com/v1"),
			Model:       getEnvString("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 500),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 30),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", ""),
		},
		Reader: ReaderConfig{
			DBPath:   getEnvString("READER_DB_PATH", "./data/reader.db"),
			DataDir:  getEnvString("READER_DATA_DIR", "./web"),
			PageSize: getEnvInt("READER_PAGE_SIZE", 20),
		},
		Assets: AssetConfig{
			CachePath: getEnvString("ASSET_CACHE_PATH", "./data/assets.db"),
			CacheName: getEnvString("ASSET_CACHE_NAME", "tr-v1"),
		},
		Tasks: TaskConfig{
			Endpoint:  endpoint,
			ProbeURL:  getEnvString("PROBE_URL", endpoint),
			ProbeCron: getEnvString("PROBE_CRON", "* * * * *"),
		},
		Server: ServerConfig{
			Addr:     getEnvString("HTTP_ADDR", ":8080"),
			LogLevel: getEnvString("LOG_LEVEL", "info"),
			LogFile:  getEnvString("LOG_FILE", ""),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	if c.Reader.PageSize <= 0 {
		return fmt.Errorf("READER_PAGE_SIZE must be positive")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
