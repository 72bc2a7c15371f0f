package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Milvus    MilvusConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Ingestion IngestionConfig
	Retrieval RetrievalConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
	CORSOrigins  string
}

type SQLiteConfig struct {
	Path string
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type RedisConfig struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TTLMinutes int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
}

type IngestionConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	DeleteBatchSize  int
	MaxDeleteBatches int
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
	HistoryLimit        int
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
	viper.AddConfigPath("/etc/docuchat")

	viper.SetEnvPrefix("DOCUCHAT")
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
	viper.SetDefault("server.bodyLimit", 26214400)
	viper.SetDefault("server.rateLimit", 60)
	viper.SetDefault("server.corsOrigins", "http://localhost:5173")

	viper.SetDefault("sqlite.path", "./data/docuchat.db")

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "document_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlMinutes", 1440)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.maxTokens", 1024)

	viper.SetDefault("ingestion.chunkSize", 512)
	viper.SetDefault("ingestion.chunkOverlap", 50)
	viper.SetDefault("ingestion.deleteBatchSize", 1000)
	viper.SetDefault("ingestion.maxDeleteBatches", 100)

	viper.SetDefault("retrieval.topK", 10)
	viper.SetDefault("retrieval.similarityThreshold", 0.7)
	viper.SetDefault("retrieval.historyLimit", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
