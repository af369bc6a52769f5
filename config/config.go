// Package config loads the YAML configuration that selects backends and
// tunes the engine. All fields have working defaults; a missing file is not
// an error when the caller opts into defaults explicitly.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLM selects and tunes the generation backend.
type LLM struct {
	// Provider is "anthropic" or "openai".
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// Embedding selects and tunes the embedding backend.
type Embedding struct {
	// Provider is "openai" or "mock".
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheBytes int64  `yaml:"cache_bytes"`
}

// Assembler tunes context assembly.
type Assembler struct {
	TokenBudget          int     `yaml:"token_budget"`
	MemoryShare          float64 `yaml:"memory_share"`
	RetrievalShare       float64 `yaml:"retrieval_share"`
	MemoryTopK           int     `yaml:"memory_top_k"`
	RetrievalTopK        int     `yaml:"retrieval_top_k"`
	SearchTimeoutSeconds int     `yaml:"search_timeout_seconds"`
}

// Compression tunes the memory lifecycle.
type Compression struct {
	Threshold          int  `yaml:"threshold"`
	BatchSize          int  `yaml:"batch_size"`
	DeleteAfterSummary bool `yaml:"delete_after_summary"`
}

// Storage locates the embedded databases.
type Storage struct {
	MemoryPath       string `yaml:"memory_path"`
	ConversationPath string `yaml:"conversation_path"`
}

// Ingest tunes document chunking.
type Ingest struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Config is the root configuration.
type Config struct {
	LLM          LLM         `yaml:"llm"`
	Embedding    Embedding   `yaml:"embedding"`
	Assembler    Assembler   `yaml:"assembler"`
	Compression  Compression `yaml:"compression"`
	Storage      Storage     `yaml:"storage"`
	Ingest       Ingest      `yaml:"ingest"`
	HistoryLimit int         `yaml:"history_limit"`
}

// Default returns the configuration the system ships with.
func Default() Config {
	return Config{
		LLM: LLM{
			Provider:    "anthropic",
			Temperature: 0.7,
		},
		Embedding: Embedding{
			Provider:   "mock",
			Dimensions: 384,
			CacheBytes: 64 << 20,
		},
		Assembler: Assembler{
			TokenBudget:          8000,
			MemoryShare:          0.15,
			RetrievalShare:       0.35,
			MemoryTopK:           5,
			RetrievalTopK:        10,
			SearchTimeoutSeconds: 10,
		},
		Compression: Compression{
			Threshold: 100,
			BatchSize: 50,
		},
		Storage: Storage{
			MemoryPath:       "data/memories.db",
			ConversationPath: "data/conversations.db",
		},
		Ingest: Ingest{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		HistoryLimit: 10,
	}
}

// Load reads a YAML file over the defaults, so partial files only override
// what they name.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
