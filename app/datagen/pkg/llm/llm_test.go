package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
)

func TestNewChatModel(t *testing.T) {
	_, err := NewChatModel(context.Background(), config.LLMConfig{Model: "qwen-max-latest"})
	assert.ErrorContains(t, err, "api key")

	_, err = NewChatModel(context.Background(), config.LLMConfig{APIKey: "sk-test"})
	assert.ErrorContains(t, err, "model")

	cm, err := NewChatModel(context.Background(), config.LLMConfig{
		BaseURL:        "http://127.0.0.1:1/v1",
		APIKey:         "sk-test",
		Model:          "qwen-max-latest",
		TimeoutSeconds: 5,
		MaxTokens:      512,
	})
	require.NoError(t, err)
	assert.NotNil(t, cm)
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(config.ConcurrencyConfig{RPM: 120, QPS: 3})
	assert.Equal(t, rate.Limit(2), l.Limit())
	assert.Equal(t, 3, l.Burst())

	unlimited := NewLimiter(config.ConcurrencyConfig{})
	assert.Equal(t, rate.Inf, unlimited.Limit())

	l = NewLimiter(config.ConcurrencyConfig{RPM: 60})
	assert.Equal(t, 1, l.Burst())
}
