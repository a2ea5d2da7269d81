// Package judgetest 测试用的假对话模型
package judgetest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Call 一次调用的记录
type Call struct {
	Messages    []*schema.Message
	Model       string
	Temperature float32
	MaxTokens   int
}

// System 系统提示词，没有则为空
func (c Call) System() string {
	if len(c.Messages) > 0 && c.Messages[0].Role == schema.System {
		return c.Messages[0].Content
	}
	return ""
}

// Prompt 最后一条用户消息
func (c Call) Prompt() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[len(c.Messages)-1].Content
}

// Model 按 Respond 返回内容的假模型，并记录每次调用
type Model struct {
	Respond func(call Call) (string, error)

	mu    sync.Mutex
	calls []Call
}

var _ model.BaseChatModel = (*Model)(nil)

// Static 每次都返回相同内容
func Static(content string) *Model {
	return &Model{Respond: func(Call) (string, error) { return content, nil }}
}

// Failing 每次都返回错误
func Failing(err error) *Model {
	return &Model{Respond: func(Call) (string, error) { return "", err }}
}

// Sequence 依次返回 replies，用完后重复最后一个
func Sequence(replies ...string) *Model {
	var mu sync.Mutex
	i := 0
	return &Model{Respond: func(Call) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		r := replies[i]
		if i < len(replies)-1 {
			i++
		}
		return r, nil
	}}
}

// Generate 实现 model.BaseChatModel
func (m *Model) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := model.GetCommonOptions(&model.Options{}, opts...)
	call := Call{Messages: input}
	if o.Model != nil {
		call.Model = *o.Model
	}
	if o.Temperature != nil {
		call.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		call.MaxTokens = *o.MaxTokens
	}

	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	content, err := m.Respond(call)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 不支持
func (m *Model) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

// Calls 返回全部调用记录的副本
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
