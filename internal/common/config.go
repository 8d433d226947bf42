package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Ingest      IngestConfig    `toml:"ingest"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Chat        ChatConfig      `toml:"chat"`
	Scraper     ScraperConfig   `toml:"scraper"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Index  IndexConfig  `toml:"index"`
}

// BadgerConfig represents BadgerDB-specific configuration (session store)
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// IndexConfig locates the vector index snapshot file
type IndexConfig struct {
	Path string `toml:"path" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// IngestConfig controls chunking and ingestion limits
type IngestConfig struct {
	ChunkSize        int    `toml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int    `toml:"chunk_overlap" validate:"gte=0"`
	MinChunkLength   int    `toml:"min_chunk_length" validate:"gte=0"`
	MaxDocumentBytes int64  `toml:"max_document_bytes" validate:"gt=0"`
	FileTimeout      string `toml:"file_timeout"`   // e.g. "60s" - upload ingestion deadline
	ScrapeTimeout    string `toml:"scrape_timeout"` // e.g. "300s" - URL/deep-scrape deadline
}

// RetrievalConfig controls similarity search behavior
type RetrievalConfig struct {
	TopK             int     `toml:"top_k" validate:"gt=0"`
	MinSimilarity    float64 `toml:"min_similarity" validate:"gte=0,lte=1"`
	SourceScoreFloor float64 `toml:"source_score_floor" validate:"gte=0,lte=1"` // hide citations below this best score
}

// ChatConfig controls prompt assembly
type ChatConfig struct {
	HistoryLimit int    `toml:"history_limit" validate:"gt=0"`
	SystemPrompt string `toml:"system_prompt"` // base persona, overridable per request
}

// ScraperConfig controls URL ingestion
type ScraperConfig struct {
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RequestDelay   time.Duration `toml:"request_delay"` // minimum delay between requests to the same domain
	MaxPages       int           `toml:"max_pages" validate:"gt=0"`
	MaxBodySize    int64         `toml:"max_body_size"`
	UseBrowser     bool          `toml:"use_browser"` // render JavaScript pages with headless Chrome
}

// RateLimitConfig controls per-client request throttling
type RateLimitConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	Burst             int     `toml:"burst" validate:"gt=0"`
}

// GeminiConfig represents Google Gemini API configuration (chat + embeddings)
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	EmbedModel     string  `toml:"embed_model"`
	EmbedDimension int     `toml:"embed_dimension" validate:"gt=0"`
	Temperature    float32 `toml:"temperature"`
	Timeout        string  `toml:"timeout"`
}

// ClaudeConfig represents Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
}

// LLMConfig selects the default completion provider
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider" validate:"oneof=gemini claude"`
}

// NewDefaultConfig returns a config with sensible development defaults.
// The chunking and retrieval thresholds are deliberately configurable; the
// defaults match the values the service was tuned with.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 5000,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/sessions"},
			Index:  IndexConfig{Path: "./data/index.json"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Ingest: IngestConfig{
			ChunkSize:        500,
			ChunkOverlap:     50,
			MinChunkLength:   10,
			MaxDocumentBytes: 10 * 1024 * 1024,
			FileTimeout:      "60s",
			ScrapeTimeout:    "300s",
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			MinSimilarity:    0.45,
			SourceScoreFloor: 0.6,
		},
		Chat: ChatConfig{
			HistoryLimit: 10,
		},
		Scraper: ScraperConfig{
			UserAgent:      "Responsa/1.0 (+https://github.com/ternarybob/responsa)",
			RequestTimeout: 30 * time.Second,
			RequestDelay:   500 * time.Millisecond,
			MaxPages:       25,
			MaxBodySize:    10 * 1024 * 1024,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Temperature:    0.7,
			Timeout:        "120s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   8192,
			Timeout:     "120s",
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
		},
	}
}

// LoadConfig loads configuration with the precedence:
// defaults -> config files (in order) -> environment variables.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier files)
	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// Apply environment variables (overrides all file configs)
	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Cross-field constraint the tag validator cannot express: an overlap
	// at or above the chunk size would stall the chunker.
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("invalid configuration: chunk_overlap (%d) must be less than chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RESPONSA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("RESPONSA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RESPONSA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("RESPONSA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if indexPath := os.Getenv("RESPONSA_INDEX_PATH"); indexPath != "" {
		config.Storage.Index.Path = indexPath
	}

	if level := os.Getenv("RESPONSA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("RESPONSA_GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if key := os.Getenv("RESPONSA_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	if provider := os.Getenv("RESPONSA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}

	if topK := os.Getenv("RESPONSA_RETRIEVAL_TOP_K"); topK != "" {
		if k, err := strconv.Atoi(topK); err == nil {
			config.Retrieval.TopK = k
		}
	}
	if minSim := os.Getenv("RESPONSA_RETRIEVAL_MIN_SIMILARITY"); minSim != "" {
		if v, err := strconv.ParseFloat(minSim, 64); err == nil {
			config.Retrieval.MinSimilarity = v
		}
	}
	if historyLimit := os.Getenv("RESPONSA_CHAT_HISTORY_LIMIT"); historyLimit != "" {
		if v, err := strconv.Atoi(historyLimit); err == nil {
			config.Chat.HistoryLimit = v
		}
	}
}
