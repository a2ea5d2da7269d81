// Package judge 对 eino 对话模型的一层封装：限流、超时、重试以及结构化输出的解析与校验。
//
// 所有远程调用都经过同一个 Client，共享限流器与重试策略。
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/retry"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

var (
	// ErrValidation 模型输出无法解析或不符合约束
	ErrValidation = errors.New("judge output failed validation")
	// ErrEmptyResponse 模型返回了空消息
	ErrEmptyResponse = errors.New("empty response from model")
)

// Validator 结构化输出的自校验
type Validator interface {
	Validate() error
}

// DecodeFallback JSON 解析失败时的兜底解析
type DecodeFallback interface {
	DecodeFallback(raw string) error
}

// Options 客户端选项
type Options struct {
	Limiter      *rate.Limiter
	Retry        retry.Policy
	Timeout      time.Duration
	DefaultModel string
	Metrics      *metrics.Metrics
}

// Request 一次调用的参数
type Request struct {
	System      string
	Prompt      string
	History     []*schema.Message
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client 裁判/生成模型客户端
type Client struct {
	cm   model.BaseChatModel
	opts Options
}

// New 创建客户端
func New(cm model.BaseChatModel, opts Options) *Client {
	return &Client{cm: cm, opts: opts}
}

// Chat 纯文本调用，按重试策略重试
func (c *Client) Chat(ctx context.Context, req Request) (string, error) {
	return retry.Value(ctx, c.opts.Retry, func(ctx context.Context) (string, error) {
		return c.generate(ctx, req)
	}, c.notify(req))
}

// Structured 调用模型并把输出解析为 T，解析或校验失败同样会重试。
// 返回的值一定通过了校验
func Structured[T any](ctx context.Context, c *Client, req Request) (T, error) {
	return retry.Value(ctx, c.opts.Retry, func(ctx context.Context) (T, error) {
		raw, err := c.generate(ctx, req)
		if err != nil {
			var zero T
			return zero, err
		}
		v, err := Decode[T](raw)
		if err != nil {
			c.observe(metrics.OutcomeInvalid)
			return v, err
		}
		return v, nil
	}, c.notify(req))
}

// Decode 去掉代码块标记后按 JSON 解析，失败时尝试 DecodeFallback，最后执行 Validate
func Decode[T any](raw string) (T, error) {
	var v T
	err := json.Unmarshal([]byte(textutil.StripCodeFence(raw)), &v)
	if err != nil {
		fb, ok := any(&v).(DecodeFallback)
		if !ok {
			return v, fmt.Errorf("%w: json unmarshal: %v", ErrValidation, err)
		}
		if ferr := fb.DecodeFallback(raw); ferr != nil {
			return v, fmt.Errorf("%w: json unmarshal: %v; fallback: %v", ErrValidation, err, ferr)
		}
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return v, nil
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx); err != nil {
			return "", retry.Permanent(err)
		}
	}
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, schema.SystemMessage(req.System))
	}
	messages = append(messages, req.History...)
	messages = append(messages, schema.UserMessage(req.Prompt))

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if name := c.modelName(req); name != "" {
		opts = append(opts, model.WithModel(name))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.cm.Generate(ctx, messages, opts...)
	if c.opts.Metrics != nil {
		c.opts.Metrics.JudgeLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.observe(metrics.OutcomeError)
		return "", err
	}
	if resp == nil {
		c.observe(metrics.OutcomeError)
		return "", ErrEmptyResponse
	}
	c.observe(metrics.OutcomeOK)
	return resp.Content, nil
}

func (c *Client) modelName(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.opts.DefaultModel
}

func (c *Client) observe(outcome string) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.JudgeCalls.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) notify(req Request) retry.NotifyFunc {
	return func(attempt int, err error, wait time.Duration) {
		logger.Log.Warnf("模型调用失败 [%s] 第 %d 次，%v 后重试: %v", c.modelName(req), attempt, wait, err)
	}
}
