package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	StorePath    string `yaml:"store_path"`
	Collection   string `yaml:"collection"`
}

type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	SessionDB string `yaml:"session_db"`
	DataDir   string `yaml:"data_dir"`
	Debug     bool   `yaml:"debug"`
}

type Config struct {
	ChatLLM   LLMConfig    `yaml:"chat_llm"`
	VisionLLM LLMConfig    `yaml:"vision_llm"`
	EmbedLLM  LLMConfig    `yaml:"embed_llm"`
	RAG       RAGConfig    `yaml:"rag"`
	Fetch     FetchConfig  `yaml:"fetch"`
	Server    ServerConfig `yaml:"server"`
}

const (
	defaultChunkSize      = 1000
	defaultChunkOverlap   = 100
	defaultTopK           = 5
	defaultFetchTimeout   = 10
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultStorePath      = "./knowledge_base"
	defaultCollectionName = "cogniquery"
	defaultAddr           = ":8080"
	defaultSessionDB      = "./cogniquery.db"
	defaultDataDir        = "./data"
)

func LoadConfig(path string) (*Config, error) {
	// API keys may live in a .env file next to the binary.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values so a sparse config file still works.
func (c *Config) ApplyDefaults() {
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = defaultChunkSize
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = defaultChunkOverlap
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = defaultTopK
	}
	if c.RAG.StorePath == "" {
		c.RAG.StorePath = defaultStorePath
	}
	if c.RAG.Collection == "" {
		c.RAG.Collection = defaultCollectionName
	}
	if c.Fetch.TimeoutSeconds == 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeout
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.SessionDB == "" {
		c.Server.SessionDB = defaultSessionDB
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = defaultDataDir
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		if c.ChatLLM.Key == "" {
			c.ChatLLM.Key = key
		}
		if c.VisionLLM.Key == "" {
			c.VisionLLM.Key = key
		}
		if c.EmbedLLM.Key == "" {
			c.EmbedLLM.Key = key
		}
	}
}
