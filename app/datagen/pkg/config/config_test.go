package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	t.Setenv("AIME_TEST_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
llm:
  base_url: https://llm.example.com/api/v1
  api_key: ${AIME_TEST_KEY}
judge:
  temperature: 0
concurrency:
  workers: 4
generation:
  batch:
    models:
      - name: deepseek-v3
        model: turing/deepseek-v3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "qwen-max-latest", cfg.Judge.Model)
	assert.Equal(t, 2, cfg.Judge.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 4, cfg.Concurrency.Workers)
	assert.Equal(t, 20, cfg.Generation.SelfPlay.Rounds)
	assert.Equal(t, filepath.Join("outputs", "judged"), cfg.Paths.Judged)

	ep := cfg.Endpoint(cfg.Generation.Batch.Models[0])
	assert.Equal(t, "turing/deepseek-v3", ep.Model)
	assert.Equal(t, "https://llm.example.com/api/v1", ep.BaseURL)
	assert.Equal(t, "sk-test", ep.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bad temperature", "judge:\n  temperature: 3\n"},
		{"bad min score", "export:\n  min_score: 11\n"},
		{"bad timeout", "server:\n  timeout: soon\n"},
		{"model without name", "generation:\n  batch:\n    models:\n      - model: x\n"},
		{"not yaml", "llm: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "Qwen", cfg.Generation.CandidateA.Name)
	assert.Equal(t, "DeepSeek", cfg.Generation.CandidateB.Name)
}

func TestLoadConfig_Example(t *testing.T) {
	t.Setenv("AIME_API_KEY", "sk-example")
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-example", cfg.LLM.APIKey)
	assert.Len(t, cfg.Generation.Batch.Models, 2)
	assert.Equal(t, "data_scheme_A.jsonl", cfg.Generation.SelfPlay.Output)
	assert.Empty(t, cfg.DB.Host)
}
