// Package generate 合成对话数据：自博弈、多模型批量生成、带思维链的结构化生成以及点评后重写
package generate

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/segment"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// SchemeSelfPlay 自博弈数据的 scheme_type
const SchemeSelfPlay = "self_play"

// Agent 带记忆的对话角色，自己的输出会作为下一次调用的历史
type Agent struct {
	Name        string
	Model       string
	System      string
	Temperature float32
	MaxTokens   int

	client  *judge.Client
	history []*schema.Message
}

// NewAgent 创建角色
func NewAgent(c *judge.Client, name, modelName, system string, temperature float32, maxTokens int) *Agent {
	return &Agent{
		Name:        name,
		Model:       modelName,
		System:      system,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		client:      c,
	}
}

// Reply 发送消息并获取回复。失败时返回占位符，且不写入历史
func (a *Agent) Reply(ctx context.Context, message string) string {
	content, err := a.client.Chat(ctx, judge.Request{
		System:      a.System,
		Prompt:      message,
		History:     a.history,
		Model:       a.Model,
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	})
	if err != nil {
		logger.Log.Errorf("[%s] 调用失败: %v", a.Name, err)
		return FailedReply
	}
	a.history = append(a.history, schema.UserMessage(message), schema.AssistantMessage(content, nil))
	return content
}

// Reset 清空记忆
func (a *Agent) Reset() {
	a.history = nil
}

// History 当前记忆的条数
func (a *Agent) History() int {
	return len(a.history)
}

// SelfPlay 两个模型互相对话：一个扮演孩子，一个扮演 AiMe
type SelfPlay struct {
	user      *Agent
	companion *Agent
	rounds    int
	seg       *segment.Segmenter
}

// NewSelfPlay 按配置创建自博弈生成器，两个角色共用一个客户端
func NewSelfPlay(c *judge.Client, cfg config.SelfPlayConfig) *SelfPlay {
	userPrompt, companionPrompt := cfg.UserPrompt, cfg.CompanionPrompt
	if userPrompt == "" {
		userPrompt = DefaultUserPrompt
	}
	if companionPrompt == "" {
		companionPrompt = DefaultCompanionPrompt
	}
	return &SelfPlay{
		user:      NewAgent(c, segment.DefaultUserRole, cfg.UserModel, userPrompt, cfg.Temperature, cfg.MaxTokens),
		companion: NewAgent(c, segment.DefaultCompanionRole, cfg.CompanionModel, companionPrompt, cfg.Temperature, cfg.MaxTokens),
		rounds:    cfg.Rounds,
		seg:       segment.Default(),
	}
}

// Dialogue 以 question 为孩子的第一句话生成一段对话
func (s *SelfPlay) Dialogue(ctx context.Context, question string) string {
	s.user.Reset()
	s.companion.Reset()

	var sb strings.Builder
	current := question
	s.seg.WriteLine(&sb, s.seg.UserRole(), current)
	for i := 0; i < s.rounds; i++ {
		if ctx.Err() != nil {
			break
		}
		reply := s.companion.Reply(ctx, current)
		s.seg.WriteLine(&sb, s.seg.CompanionRole(), reply)
		logger.Log.Debugf("  AiMe: %s", textutil.Preview(reply, 20))

		current = s.user.Reply(ctx, reply)
		s.seg.WriteLine(&sb, s.seg.UserRole(), current)
		logger.Log.Debugf("  User: %s", textutil.Preview(current, 20))
	}
	return sb.String()
}

// Run 逐个问题生成对话
func (s *SelfPlay) Run(ctx context.Context, questions []string) []dm.DialogueRecord {
	records := make([]dm.DialogueRecord, 0, len(questions))
	for i, q := range questions {
		if ctx.Err() != nil {
			logger.Log.Warnf("任务已取消: %v", ctx.Err())
			break
		}
		logger.Log.Infof("[%d/%d] 正在生成: %s", i+1, len(questions), q)
		records = append(records, dm.DialogueRecord{
			Question:        q,
			SchemeType:      SchemeSelfPlay,
			DialogueContent: s.Dialogue(ctx, q),
		})
		metrics.DefaultMetrics.RecordsGenerated.WithLabelValues(SchemeSelfPlay).Inc()
	}
	return records
}
