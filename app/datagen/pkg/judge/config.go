package judge

import (
	"github.com/cloudwego/eino/components/model"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/llm"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/retry"
)

// RetryPolicy 由裁判配置得到的重试策略
func RetryPolicy(cfg config.JudgeConfig) retry.Policy {
	return retry.Policy{
		Attempts:   cfg.MaxRetries,
		Delay:      cfg.RetryDelay(),
		Multiplier: cfg.Multiplier,
	}
}

// NewFromConfig 按配置创建客户端：RPM 限流、统一重试策略、单次调用超时
func NewFromConfig(cm model.BaseChatModel, cfg *config.Config) *Client {
	return New(cm, Options{
		Limiter:      llm.NewLimiter(cfg.Concurrency),
		Retry:        RetryPolicy(cfg.Judge),
		Timeout:      cfg.LLM.Timeout(),
		DefaultModel: cfg.Judge.Model,
		Metrics:      metrics.DefaultMetrics,
	})
}
