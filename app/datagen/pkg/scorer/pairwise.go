package scorer

import (
	"context"
	"fmt"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// PairJudge 两两对比与单项点评
type PairJudge struct {
	client *judge.Client
	opts   Options
}

// NewPairJudge 创建对比裁判
func NewPairJudge(c *judge.Client, opts Options) *PairJudge {
	return &PairJudge{client: c, opts: opts}
}

// Compare 比较 A、B 两个输出，返回胜者
func (j *PairJudge) Compare(ctx context.Context, question, outputA, outputB string) (dm.PairVerdict, error) {
	return j.call(ctx, PairSystem, j.opts.Temperature, PairPrompt(question, outputA, outputB))
}

// Critique 没有对比项时对单个输出做严格点评
func (j *PairJudge) Critique(ctx context.Context, question, output string, temperature float32) (dm.PairVerdict, error) {
	return j.call(ctx, CritiqueSystem, temperature, PairPrompt(question, output, NoCompetitor))
}

func (j *PairJudge) call(ctx context.Context, system string, temperature float32, prompt string) (dm.PairVerdict, error) {
	return judge.Structured[dm.PairVerdict](ctx, j.client, judge.Request{
		System:      system,
		Prompt:      prompt,
		Model:       j.opts.Model,
		Temperature: temperature,
		MaxTokens:   j.opts.MaxTokens,
	})
}

// Feedback 把点评整理成给生成模型的修改意见
func Feedback(v dm.PairVerdict) string {
	return fmt.Sprintf("共情不足点：%s\n引导改进点：%s", v.EmpathyAnalysis, v.GuidanceAnalysis)
}
