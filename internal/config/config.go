package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every section of the service configuration.
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Database DatabaseConfig
	Game     GameConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	gameCfg, err := loadGameConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		AI:       ai,
		Database: DatabaseConfig{DSN: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Game:     gameCfg,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// DatabaseConfig carries the Postgres connection string. Empty means the
// service falls back to the in-memory store.
type DatabaseConfig struct {
	DSN string
}

// AIConfig describes the Ark chat-model credentials.
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials missing: provide ARK_API_KEY + ARK_MODEL or AK/SK pair")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	return AIConfig{
		APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// GameConfig carries the stage duration budgets, in seconds.
type GameConfig struct {
	LearningSeconds     int
	GroupPlaySeconds    int
	PrivateRoundSeconds int
	MindGameSeconds     int
	MindGameCount       int
	ReactSeconds        int
	VotingSeconds       int

	// KnowledgeThreshold gates cross-session knowledge appends: reflections
	// below this confidence are recorded but not generalized.
	KnowledgeThreshold float64
}

func loadGameConfig() (GameConfig, error) {
	cfg := GameConfig{
		LearningSeconds:     180,
		GroupPlaySeconds:    300,
		PrivateRoundSeconds: 120,
		MindGameSeconds:     45,
		MindGameCount:       3,
		ReactSeconds:        90,
		VotingSeconds:       60,
		KnowledgeThreshold:  0.6,
	}

	overrides := map[string]*int{
		"GAME_LEARNING_SECONDS":      &cfg.LearningSeconds,
		"GAME_GROUP_PLAY_SECONDS":    &cfg.GroupPlaySeconds,
		"GAME_PRIVATE_ROUND_SECONDS": &cfg.PrivateRoundSeconds,
		"GAME_MIND_GAME_SECONDS":     &cfg.MindGameSeconds,
		"GAME_MIND_GAME_COUNT":       &cfg.MindGameCount,
		"GAME_REACT_SECONDS":         &cfg.ReactSeconds,
		"GAME_VOTING_SECONDS":        &cfg.VotingSeconds,
	}
	for key, target := range overrides {
		value, err := parseOptionalIntEnv(key)
		if err != nil {
			return GameConfig{}, err
		}
		if value != nil {
			*target = *value
		}
	}

	if threshold, err := parseOptionalFloatEnv("GAME_KNOWLEDGE_THRESHOLD"); err != nil {
		return GameConfig{}, err
	} else if threshold != nil {
		cfg.KnowledgeThreshold = *threshold
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
