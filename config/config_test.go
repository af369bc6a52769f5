package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/recallhq/recall-go-sdk/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	if cfg.Assembler.TokenBudget != 8000 {
		t.Errorf("default token budget = %d", cfg.Assembler.TokenBudget)
	}
	if cfg.Compression.Threshold != 100 || cfg.Compression.BatchSize != 50 {
		t.Errorf("default compression = %+v", cfg.Compression)
	}
	if cfg.Compression.DeleteAfterSummary {
		t.Error("retention delete must default to off")
	}
	if cfg.Assembler.MemoryShare+cfg.Assembler.RetrievalShare >= 1 {
		t.Errorf("shares must leave room for recent turns: %+v", cfg.Assembler)
	}
	if cfg.Assembler.SearchTimeoutSeconds != 10 {
		t.Errorf("default search timeout = %d", cfg.Assembler.SearchTimeoutSeconds)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
llm:
  provider: openai
  model: gpt-4o-mini
assembler:
  token_budget: 4000
compression:
  delete_after_summary: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm override lost: %+v", cfg.LLM)
	}
	if cfg.Assembler.TokenBudget != 4000 {
		t.Errorf("token budget override lost: %d", cfg.Assembler.TokenBudget)
	}
	if !cfg.Compression.DeleteAfterSummary {
		t.Error("compression override lost")
	}
	// Unnamed fields keep their defaults.
	if cfg.Compression.Threshold != 100 {
		t.Errorf("unset threshold should stay default, got %d", cfg.Compression.Threshold)
	}
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("unset chunk size should stay default, got %d", cfg.Ingest.ChunkSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("loading a missing file should error")
	}
}
