package config

import (
	"strings"

	"github.com/telerag/telerag/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

var envBindings = map[string]string{
	"llm.openai_api_key":    "TELERAG_OPENAI_API_KEY",
	"llm.anthropic_api_key": "TELERAG_ANTHROPIC_API_KEY",
	"llm.google_api_key":    "TELERAG_GOOGLE_API_KEY",
	"telegram.token":        "TELERAG_TELEGRAM_TOKEN",
	"store.postgres.dsn":    "TELERAG_STORE_POSTGRES_DSN",
	"auth.secret":           "TELERAG_AUTH_SECRET",
}

// LoadConfig loads the config file and ENV variables into a Config struct
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("TELERAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	for key, envVar := range envBindings {
		if err := viper.BindEnv(key, envVar); err != nil {
			log.Fatalf("Error binding environment variable: %s", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("llm.service", "openai")
	viper.SetDefault("llm.model", "gpt-3.5-turbo")
	viper.SetDefault("embeddings.service", "openai")
	viper.SetDefault("embeddings.dimensions", 1024)
	viper.SetDefault("store.type", "postgres")
	viper.SetDefault("retrieval.namespace", "legal_docs")
	viper.SetDefault("retrieval.top_k", 3)
	viper.SetDefault("retrieval.min_score", 0.3)
	viper.SetDefault("ingest.docs_dir", "docs")
	viper.SetDefault("ingest.chunk_size", 1000)
	viper.SetDefault("ingest.min_chunk_length", 50)
	viper.SetDefault("ingest.batch_size", 50)
	viper.SetDefault("ingest.batch_delay", 500)
	viper.SetDefault("memory.history_window", 10)
	viper.SetDefault("telegram.poll_timeout", 30)
	viper.SetDefault("server.port", 10000)
	viper.SetDefault("log.level", "info")
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Warn(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
}
