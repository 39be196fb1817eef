package models

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Log config
	Log LogConfig `yaml:"log"`

	// Field registry override (optional JSON file; built-in registry otherwise)
	RegistryPath string `yaml:"registry_path"`

	// AI enrichment config
	AI AIConfig `yaml:"ai"`
}

// LogConfig controls structured logging output
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// AIConfig represents AI provider configuration for LLM enrichment
type AIConfig struct {
	// OpenAI
	OpenAI OpenAIConfig `yaml:"openai"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "openai" or "gemini"

	// Hard timeout for a single enrichment call, in seconds
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// OpenAIConfig for OpenAI/Azure OpenAI
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`              // Default: "gpt-4o"
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-pro"
}
