package config

// Config holds the configuration of the application
// Use config.LoadConfig to create a new instance
type Config struct {
	LLM        LLM              `mapstructure:"llm"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Store      StoreConfig      `mapstructure:"store"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

type LLM struct {
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// API keys are loaded from ENV not config file.
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GoogleAPIKey    string `mapstructure:"google_api_key"`
	OpenAIEndpoint  string `mapstructure:"openai_endpoint"`
}

type EmbeddingsConfig struct {
	Service    string `mapstructure:"service"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

type StoreConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RetrievalConfig struct {
	Namespace string  `mapstructure:"namespace"`
	TopK      int     `mapstructure:"top_k"`
	MinScore  float64 `mapstructure:"min_score"`
}

type IngestConfig struct {
	DocsDir        string `mapstructure:"docs_dir"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	MinChunkLength int    `mapstructure:"min_chunk_length"`
	BatchSize      int    `mapstructure:"batch_size"`
	// BatchDelay is the pause between upsert batches, in milliseconds
	BatchDelay int `mapstructure:"batch_delay"`
}

type MemoryConfig struct {
	// HistoryWindow caps the number of rolling history entries per session
	HistoryWindow int `mapstructure:"history_window"`
}

type TelegramConfig struct {
	// Token is loaded from ENV not config file.
	Token string `mapstructure:"token"`
	// PollTimeout is the getUpdates long-poll timeout in seconds
	PollTimeout int    `mapstructure:"poll_timeout"`
	DocsURL     string `mapstructure:"docs_url"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}
