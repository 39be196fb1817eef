package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zugfix/invoice-canon-service/api"
	"github.com/zugfix/invoice-canon-service/internal/ai"
	"github.com/zugfix/invoice-canon-service/internal/auth"
	"github.com/zugfix/invoice-canon-service/internal/db"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/pipeline"
	"github.com/zugfix/invoice-canon-service/internal/registry"
	"github.com/zugfix/invoice-canon-service/internal/rules"
	"github.com/zugfix/invoice-canon-service/internal/storage"
)

func main() {
	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize JWT
	auth.Init(logger)
	logger.Info("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(logger); err != nil {
		logger.Warn("database not available, runs will not be persisted", zap.Error(err))
	} else {
		defer db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.EnsureSchema(ctx); err != nil {
			logger.Warn("failed to ensure database schema", zap.Error(err))
		}
		cancel()
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		logger.Warn("object storage not available, source documents will not be archived", zap.Error(err))
	} else {
		logger.Info("object storage initialized")
	}

	// Field registry: built-in EN16931 table, optionally overridden from disk
	reg := registry.Default()
	if config.RegistryPath != "" {
		reg, err = registry.Load(config.RegistryPath)
		if err != nil {
			logger.Fatal("failed to load field registry", zap.String("path", config.RegistryPath), zap.Error(err))
		}
	}

	// LLM enrichment provider (optional)
	provider, err := ai.NewProvider(config.AI)
	if err != nil {
		logger.Fatal("failed to create AI provider", zap.Error(err))
	}
	if provider == nil {
		logger.Info("LLM enrichment disabled")
	} else {
		logger.Info("LLM enrichment enabled", zap.String("provider", provider.Name()))
	}
	enricher := ai.NewEnricher(provider, time.Duration(config.AI.TimeoutSeconds)*time.Second, logger)

	engine := rules.NewEngine(rules.WithLogger(logger))
	p := pipeline.New(reg, engine, provider, enricher, logger)

	// Create API handler
	handler := api.NewHandler(config, p, logger)
	router := handler.SetupRoutes()

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	logger.Info("starting invoice canonicalization service",
		zap.String("addr", addr),
		zap.String("version", api.Version),
		zap.String("ai_provider", config.AI.DefaultProvider),
		zap.Bool("database", db.Pool != nil),
		zap.Bool("storage", storage.Client != nil))

	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func buildLogger(cfg models.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}
	if registryPath := os.Getenv("REGISTRY_PATH"); registryPath != "" {
		config.RegistryPath = registryPath
	}

	return &config, nil
}
