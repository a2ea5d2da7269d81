package judge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge/judgetest"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/retry"
)

func newClient(cm *judgetest.Model, attempts int) *Client {
	return New(cm, Options{Retry: retry.Policy{Attempts: attempts}, DefaultModel: "qwen-max-latest"})
}

func TestStructured_Success(t *testing.T) {
	fake := judgetest.Static("```json\n{\"score\": 9, \"analysis\": \"共情到位\"}\n```")
	c := newClient(fake, 2)

	v, err := Structured[dm.Verdict](context.Background(), c, Request{
		System:      "You are a critical dialogue quality evaluator.",
		Prompt:      "打分",
		Temperature: 0,
		MaxTokens:   256,
	})
	require.NoError(t, err)
	assert.Equal(t, dm.Verdict{Score: 9, Analysis: "共情到位"}, v)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "qwen-max-latest", calls[0].Model)
	assert.Equal(t, "You are a critical dialogue quality evaluator.", calls[0].System())
	assert.Equal(t, "打分", calls[0].Prompt())
	assert.Equal(t, 256, calls[0].MaxTokens)
}

func TestStructured_RetriesInvalidOutput(t *testing.T) {
	fake := judgetest.Sequence(`{"score": 42, "analysis": "越界"}`, `{"score": 6, "analysis": "合格"}`)
	c := newClient(fake, 2)

	v, err := Structured[dm.Verdict](context.Background(), c, Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 6, v.Score)
	assert.Len(t, fake.Calls(), 2)
}

func TestStructured_ValidationExhausted(t *testing.T) {
	fake := judgetest.Static("我觉得还行")
	c := newClient(fake, 2)

	_, err := Structured[dm.Verdict](context.Background(), c, Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, fake.Calls(), 2)
}

func TestStructured_TransportError(t *testing.T) {
	boom := errors.New("429 too many requests")
	fake := judgetest.Failing(boom)
	c := newClient(fake, 3)

	_, err := Structured[dm.Verdict](context.Background(), c, Request{Prompt: "p"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, fake.Calls(), 3)
}

func TestStructured_FallbackDecode(t *testing.T) {
	fake := judgetest.Static("CoT: 先接住情绪\nAnswer: 你是不是有点害怕呀？")
	c := newClient(fake, 1)

	v, err := Structured[dm.CoTAnswer](context.Background(), c, Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "先接住情绪", v.CoT)
	assert.Equal(t, "你是不是有点害怕呀？", v.Answer)
}

func TestChat_HistoryAndModelOverride(t *testing.T) {
	fake := judgetest.Static("我不要！")
	c := newClient(fake, 1)

	history := []*schema.Message{
		schema.UserMessage("【User】: 我不想睡觉"),
		schema.AssistantMessage("哼", nil),
	}
	out, err := c.Chat(context.Background(), Request{
		System:      "你是一个5岁的小男孩",
		Prompt:      "AiMe 说：我们来讲故事吧",
		History:     history,
		Model:       "turing/deepseek-v3.1",
		Temperature: 0.8,
	})
	require.NoError(t, err)
	assert.Equal(t, "我不要！", out)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Messages, 4)
	assert.Equal(t, "turing/deepseek-v3.1", calls[0].Model)
	assert.InDelta(t, 0.8, calls[0].Temperature, 1e-6)
}

func TestChat_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(judgetest.Static("x"), 1).Chat(ctx, Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	v, err := Decode[dm.PairVerdict](`{"winner": " Model_A ", "reason": "更温柔"}`)
	require.NoError(t, err)
	assert.Equal(t, dm.WinnerA, v.Winner)

	_, err = Decode[dm.PairVerdict](`{"winner": "both"}`)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = Decode[map[string]any](`not json`)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.JudgeConfig{MaxRetries: 2, RetryDelayMS: 500, Multiplier: 2})
	assert.Equal(t, retry.Policy{Attempts: 2, Delay: 500 * time.Millisecond, Multiplier: 2}, p)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	fake := judgetest.Static(`{"score": 5, "analysis": "平庸"}`)
	c := NewFromConfig(fake, cfg)

	v, err := Structured[dm.Verdict](context.Background(), c, Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 5, v.Score)
	assert.Equal(t, cfg.Judge.Model, fake.Calls()[0].Model)
}
