package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Assistant  AssistantConfig
	Cloud      CloudConfig
	Local      LocalConfig
	Generation GenerationConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AssistantConfig carries the assistant-level knobs: which backend answers,
// how many knowledge articles a prompt may carry, and how long analysis
// responses stay cached.
type AssistantConfig struct {
	Enabled            bool
	Provider           string
	SystemPrompt       string
	MaxSuggestions     int
	RelevanceThreshold float64
	CacheTTLSec        int
	HistoryLimit       int
	RateLimitAnalyze   int
	RateLimitChat      int
}

type CloudConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	TimeoutSec int
}

type LocalConfig struct {
	Host       string
	Model      string
	TimeoutSec int
}

type GenerationConfig struct {
	Temperature     float32
	TopK            int
	TopP            float32
	MaxOutputTokens int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ticketmind")

	viper.SetEnvPrefix("TICKETMIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/ticketmind.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("assistant.enabled", true)
	viper.SetDefault("assistant.provider", "cloud")
	viper.SetDefault("assistant.systemPrompt",
		"You are a technical support assistant for an IT service desk. "+
			"Your goal is to help technicians resolve tickets quickly and efficiently. "+
			"Always give technical, objective answers grounded in ITIL good practice. "+
			"Reference knowledge base articles whenever possible.")
	viper.SetDefault("assistant.maxSuggestions", 5)
	viper.SetDefault("assistant.relevanceThreshold", 12.0)
	viper.SetDefault("assistant.cacheTTLSec", 3600)
	viper.SetDefault("assistant.historyLimit", 10)
	viper.SetDefault("assistant.rateLimitAnalyze", 10)
	viper.SetDefault("assistant.rateLimitChat", 20)

	viper.SetDefault("cloud.baseURL", "")
	viper.SetDefault("cloud.model", "gpt-4o-mini")
	viper.SetDefault("cloud.timeoutSec", 30)

	viper.SetDefault("local.host", "http://localhost:11434")
	viper.SetDefault("local.model", "llama3")
	viper.SetDefault("local.timeoutSec", 60)

	viper.SetDefault("generation.temperature", 0.7)
	viper.SetDefault("generation.topK", 40)
	viper.SetDefault("generation.topP", 0.95)
	viper.SetDefault("generation.maxOutputTokens", 2048)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
