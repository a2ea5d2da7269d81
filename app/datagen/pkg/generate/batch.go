package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/segment"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// SchemeBatch 批量生成数据的 scheme_type
const SchemeBatch = "batch"

// ParseMessages 解析模型返回的对话，兼容 {"messages": [...]}、消息数组以及单条消息三种写法
func ParseMessages(content string) ([]dm.ChatMessage, error) {
	content = strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(content))

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	if strings.HasPrefix(content, "[") {
		var msgs []dm.ChatMessage
		if err := json.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("decode message list: %w", err)
		}
		return msgs, nil
	}

	var wrapped struct {
		Messages []dm.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Messages != nil {
		return wrapped.Messages, nil
	}

	var single dm.ChatMessage
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return []dm.ChatMessage{single}, nil
}

// RenderMessages 把消息渲染为【User】/【AiMe】对话文本，user 以外的角色都视为 AiMe
func RenderMessages(seg *segment.Segmenter, msgs []dm.ChatMessage) string {
	var sb strings.Builder
	for _, m := range msgs {
		role := seg.CompanionRole()
		if m.Role == "user" {
			role = seg.UserRole()
		}
		seg.WriteLine(&sb, role, m.Content)
	}
	return sb.String()
}

// Batch 多个模型各自一次性生成整段对话
type Batch struct {
	cfg config.BatchGenConfig
	seg *segment.Segmenter
}

// NewBatch 创建批量生成器
func NewBatch(cfg config.BatchGenConfig) *Batch {
	return &Batch{cfg: cfg, seg: segment.Default()}
}

// Run 用一个模型端点对全部问题生成 generations 轮，失败的条目只记录日志
func (b *Batch) Run(ctx context.Context, c *judge.Client, endpoint config.ModelEndpoint, questions []string) []dm.DialogueRecord {
	logger.Log.Infof("开始测试模型: %s (%s)", endpoint.Name, endpoint.Model)

	var records []dm.DialogueRecord
	for round := 1; round <= b.cfg.Generations; round++ {
		logger.Log.Infof("[%s] 第 %d/%d 轮生成", endpoint.Name, round, b.cfg.Generations)
		for _, q := range questions {
			if ctx.Err() != nil {
				logger.Log.Warnf("任务已取消: %v", ctx.Err())
				return records
			}
			msgs, err := b.generate(ctx, c, endpoint, q)
			if err != nil {
				logger.Log.Errorf("[%s] 生成失败 [%s]: %v", endpoint.Name, textutil.Preview(q, 25), err)
				continue
			}
			records = append(records, dm.DialogueRecord{
				Question:        q,
				Model:           endpoint.Name,
				GenerationRound: round,
				SchemeType:      SchemeBatch,
				DialogueContent: RenderMessages(b.seg, msgs),
			})
			metrics.DefaultMetrics.RecordsGenerated.WithLabelValues(SchemeBatch).Inc()
		}
	}
	logger.Log.Infof("[%s] 生成完成 (共 %d 条)", endpoint.Name, len(records))
	return records
}

func (b *Batch) generate(ctx context.Context, c *judge.Client, endpoint config.ModelEndpoint, question string) ([]dm.ChatMessage, error) {
	content, err := c.Chat(ctx, judge.Request{
		Prompt:      BatchPrompt(b.cfg.Prompt, question),
		Model:       endpoint.Model,
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	msgs, err := ParseMessages(content)
	if err != nil {
		return nil, fmt.Errorf("%w, preview: %s", err, textutil.Preview(content, 80))
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages in response")
	}
	return msgs, nil
}

// OutputFile data_<name>.jsonl
func OutputFile(name string) string {
	return "data_" + name + ".jsonl"
}
