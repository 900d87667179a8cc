package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Catalog      CatalogConfig
	Vision       VisionConfig
	Store        StoreConfig
	Cache        CacheConfig
	Matching     MatchingConfig
	PreFilter    PreFilterConfig
	Orchestrator OrchestratorConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CatalogConfig holds catalog search service configuration
type CatalogConfig struct {
	APIKey     string  `mapstructure:"api_key"`
	BaseURL    string  `mapstructure:"base_url"`
	PageSize   int     `mapstructure:"page_size"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	StoreHint  string  `mapstructure:"store_hint"` // optional retailer hint
}

// VisionConfig holds visual comparison service configuration
type VisionConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	// Mode selects the call shape: "compare" issues one binary comparison per
	// candidate, "select" issues one multi-candidate selection call.
	Mode string `mapstructure:"mode"`
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds search-result cache configuration
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds consolidation configuration
type MatchingConfig struct {
	// SelectorConfidenceThreshold applies to the "select" call shape: below it
	// the selection downgrades to manual review.
	SelectorConfidenceThreshold float64 `mapstructure:"selector_confidence_threshold"`
	EnableDebugLogging          bool    `mapstructure:"enable_debug_logging"`
}

// PreFilterConfig holds pre-filter scoring configuration
type PreFilterConfig struct {
	SimilarityFloor     float64 `mapstructure:"similarity_floor"`
	SafetyCap           int     `mapstructure:"safety_cap"`
	SizeConfidenceFloor float64 `mapstructure:"size_confidence_floor"`
	EnableDebugLogging  bool    `mapstructure:"enable_debug_logging"`
}

// OrchestratorConfig holds batch orchestration configuration
type OrchestratorConfig struct {
	Window           int           `mapstructure:"window"`
	MaxWindow        int           `mapstructure:"max_window"`
	SubBatchSize     int           `mapstructure:"sub_batch_size"`
	SubBatchInterval time.Duration `mapstructure:"sub_batch_interval"`
	ItemBudget       time.Duration `mapstructure:"item_budget"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfmatch/")

	// Environment variable settings: SHELFMATCH_CATALOG_API_KEY maps to
	// catalog.api_key, and so on.
	v.SetEnvPrefix("SHELFMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Catalog defaults. The api_key default registers the key so the env
	// override is picked up; there is no usable default value.
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.base_url", "https://catalog.example.com/api")
	v.SetDefault("catalog.page_size", 10)
	v.SetDefault("catalog.rate_per_sec", 5.0)
	v.SetDefault("catalog.store_hint", "")

	// Vision defaults
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "https://vision.example.com/api")
	v.SetDefault("vision.mode", "compare")

	// Store defaults
	v.SetDefault("store.path", "shelfmatch.db")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")

	// Matching defaults
	v.SetDefault("matching.selector_confidence_threshold", 0.6)

	// Pre-filter defaults
	v.SetDefault("prefilter.similarity_floor", 35.0)
	v.SetDefault("prefilter.safety_cap", 5)
	v.SetDefault("prefilter.size_confidence_floor", 0.5)

	// Orchestrator defaults
	v.SetDefault("orchestrator.window", 25)
	v.SetDefault("orchestrator.max_window", 200)
	v.SetDefault("orchestrator.sub_batch_size", 10)
	v.SetDefault("orchestrator.sub_batch_interval", "1s")
	v.SetDefault("orchestrator.item_budget", "120s")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Catalog.APIKey == "" {
		return fmt.Errorf("catalog API key is required (set SHELFMATCH_CATALOG_API_KEY)")
	}

	if config.Vision.Mode != "compare" && config.Vision.Mode != "select" {
		return fmt.Errorf("vision mode must be 'compare' or 'select', got: %s", config.Vision.Mode)
	}

	if config.Orchestrator.Window < 1 {
		return fmt.Errorf("orchestrator window must be at least 1, got: %d", config.Orchestrator.Window)
	}

	if config.Orchestrator.Window > config.Orchestrator.MaxWindow {
		return fmt.Errorf("orchestrator window %d exceeds max_window %d",
			config.Orchestrator.Window, config.Orchestrator.MaxWindow)
	}

	if config.Orchestrator.SubBatchSize < 1 {
		return fmt.Errorf("orchestrator sub_batch_size must be at least 1, got: %d", config.Orchestrator.SubBatchSize)
	}

	if config.Matching.SelectorConfidenceThreshold < 0 || config.Matching.SelectorConfidenceThreshold > 1 {
		return fmt.Errorf("selector confidence threshold must be in [0,1], got: %f",
			config.Matching.SelectorConfidenceThreshold)
	}

	return nil
}
