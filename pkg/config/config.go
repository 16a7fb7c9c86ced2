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
	LLM        LLMConfig
	Classifier ClassifierConfig
	Analysis   AnalysisConfig
	Enrich     EnrichConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Environment  string
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

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type ClassifierConfig struct {
	Enabled       bool
	BatchSize     int
	SchemaVersion int
	CacheTTLHours int
}

type AnalysisConfig struct {
	ArticleCountThreshold int
	TopN                  int
	DiscoverLimit         int
}

type EnrichConfig struct {
	Enabled    bool
	TimeoutSec int
	UserAgent  string
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
	viper.AddConfigPath("/etc/contentpulse")

	viper.SetEnvPrefix("CONTENTPULSE")
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
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 60)
	// CSV exports from search consoles run large; allow 25 MiB uploads.
	viper.SetDefault("server.bodyLimit", 26214400)
	viper.SetDefault("server.environment", "development")

	viper.SetDefault("sqlite.path", "./data/contentpulse.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 4096)
	viper.SetDefault("llm.timeoutSec", 120)

	viper.SetDefault("classifier.enabled", true)
	viper.SetDefault("classifier.batchSize", 10)
	viper.SetDefault("classifier.schemaVersion", 3)
	viper.SetDefault("classifier.cacheTTLHours", 720)

	viper.SetDefault("analysis.articleCountThreshold", 2)
	viper.SetDefault("analysis.topN", 5)
	viper.SetDefault("analysis.discoverLimit", 100)

	viper.SetDefault("enrich.enabled", false)
	viper.SetDefault("enrich.timeoutSec", 10)
	viper.SetDefault("enrich.userAgent", "contentpulse-bot/1.0")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
