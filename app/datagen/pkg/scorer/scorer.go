// Package scorer 调用裁判模型给对话打分
package scorer

import (
	"context"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// ErrorPrefix 调用失败时评语的前缀
const ErrorPrefix = "API Call Error: "

// Options 裁判调用参数
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Failed 远程调用失败时的兜底结果：0 分加错误描述
func Failed(err error) dm.Verdict {
	return dm.Verdict{Score: 0, Analysis: ErrorPrefix + err.Error()}
}

// TurnScorer 单轮打分
type TurnScorer struct {
	client *judge.Client
	opts   Options
}

// NewTurnScorer 创建单轮打分器
func NewTurnScorer(c *judge.Client, opts Options) *TurnScorer {
	return &TurnScorer{client: c, opts: opts}
}

// ScoreTurn 给一轮对话打分，失败时返回 0 分而不是错误
func (s *TurnScorer) ScoreTurn(ctx context.Context, history, user, companion string) dm.Verdict {
	v, err := judge.Structured[dm.Verdict](ctx, s.client, judge.Request{
		System:      TurnSystem,
		Prompt:      TurnPrompt(history, user, companion),
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		logger.Log.Errorf("打分出错 [%s]: %v", textutil.Preview(user, 15), err)
		return Failed(err)
	}
	return v
}

// HolisticScorer 整段对话打分
type HolisticScorer struct {
	client *judge.Client
	opts   Options
}

// NewHolisticScorer 创建整体打分器
func NewHolisticScorer(c *judge.Client, opts Options) *HolisticScorer {
	return &HolisticScorer{client: c, opts: opts}
}

// ScoreDialogue 整段对话一次打分，失败时返回 0 分
func (s *HolisticScorer) ScoreDialogue(ctx context.Context, transcript string) dm.Verdict {
	v, err := judge.Structured[dm.Verdict](ctx, s.client, judge.Request{
		System:      HolisticSystem,
		Prompt:      HolisticPrompt(transcript),
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		logger.Log.Errorf("整体打分出错: %v", err)
		return Failed(err)
	}
	return v
}
