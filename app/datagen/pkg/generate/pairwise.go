package generate

import (
	"context"
	"fmt"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
)

// 生成阶段的温度
const (
	draftTemperature    float32 = 0.7
	critiqueTemperature float32 = 0.3
	refineTemperature   float32 = 0.8
)

// Candidate 参与对比的一个生成模型
type Candidate struct {
	Name   string
	Model  string
	Client *judge.Client
}

func (c Candidate) answer(ctx context.Context, system, prompt string, temperature float32) (dm.CoTAnswer, error) {
	return judge.Structured[dm.CoTAnswer](ctx, c.Client, judge.Request{
		System:      system,
		Prompt:      prompt,
		Model:       c.Model,
		Temperature: temperature,
	})
}

// Structured 两个候选模型针对同一问题各给出带思维链的回复
type Structured struct {
	a, b Candidate
}

// NewStructured 创建结构化生成器
func NewStructured(a, b Candidate) *Structured {
	return &Structured{a: a, b: b}
}

// Generate 单个候选模型的失败以错误文本记录，不影响另一个
func (s *Structured) Generate(ctx context.Context, question string) dm.PairwiseRecord {
	return dm.PairwiseRecord{
		Question:   question,
		CandidateA: s.call(ctx, s.a, question),
		CandidateB: s.call(ctx, s.b, question),
	}
}

func (s *Structured) call(ctx context.Context, c Candidate, question string) *dm.CandidateResult {
	v, err := c.answer(ctx, structuredSystem, GenerationPrompt(question), draftTemperature)
	if err != nil {
		logger.Log.Errorf("[%s] 结构化生成失败: %v", c.Name, err)
		return &dm.CandidateResult{Name: c.Name, Error: scorer.ErrorPrefix + err.Error()}
	}
	return &dm.CandidateResult{Name: c.Name, CoT: v.CoT, Answer: v.Answer}
}

// Run 逐个问题生成
func (s *Structured) Run(ctx context.Context, questions []string) []dm.PairwiseRecord {
	records := make([]dm.PairwiseRecord, 0, len(questions))
	for i, q := range questions {
		if ctx.Err() != nil {
			break
		}
		logger.Log.Infof("[%d/%d] Processing: %s", i+1, len(questions), q)
		records = append(records, s.Generate(ctx, q))
		metrics.DefaultMetrics.RecordsGenerated.WithLabelValues("structured").Inc()
	}
	return records
}

// Optimizer 生成初稿、请裁判挑刺、再按意见重写
type Optimizer struct {
	a, b  Candidate
	judge *scorer.PairJudge
}

// NewOptimizer 创建优化器
func NewOptimizer(a, b Candidate, j *scorer.PairJudge) *Optimizer {
	return &Optimizer{a: a, b: b, judge: j}
}

// FormatDraft 交给裁判点评的初稿格式
func FormatDraft(v dm.CoTAnswer) string {
	return fmt.Sprintf("【思维链】%s\n【回答】%s", v.CoT, v.Answer)
}

// Optimize 单个候选模型的完整流程。初稿或点评失败返回错误；重写失败时保留初稿并记录原因
func (o *Optimizer) Optimize(ctx context.Context, c Candidate, question string) (*dm.OptimizedCandidate, error) {
	v1, err := c.answer(ctx, draftSystem, GenerationPrompt(question), draftTemperature)
	if err != nil {
		return nil, fmt.Errorf("%s V1 生成失败: %w", c.Name, err)
	}

	critique, err := o.judge.Critique(ctx, question, FormatDraft(v1), critiqueTemperature)
	if err != nil {
		return nil, fmt.Errorf("裁判点评失败: %w", err)
	}
	feedback := scorer.Feedback(critique)

	out := &dm.OptimizedCandidate{
		ModelName: c.Name,
		V1Initial: v1,
		Critique:  feedback,
	}
	v2, err := c.answer(ctx, refineSystem, RefinePrompt(question, feedback), refineTemperature)
	if err != nil {
		logger.Log.Errorf("[%s] V2 修正失败: %v", c.Name, err)
		out.V2Error = err.Error()
		return out, nil
	}
	out.V2Optimized = &v2
	return out, nil
}

// Run 两个候选模型都完成时才保留该问题
func (o *Optimizer) Run(ctx context.Context, questions []string) []dm.OptimizedRecord {
	var records []dm.OptimizedRecord
	for i, q := range questions {
		if ctx.Err() != nil {
			break
		}
		logger.Log.Infof("[%d/%d] 处理问题: %s", i+1, len(questions), q)

		ra, errA := o.Optimize(ctx, o.a, q)
		if errA != nil {
			logger.Log.Errorf("%v", errA)
		}
		rb, errB := o.Optimize(ctx, o.b, q)
		if errB != nil {
			logger.Log.Errorf("%v", errB)
		}
		if errA != nil || errB != nil {
			continue
		}
		records = append(records, dm.OptimizedRecord{Question: q, CandidateA: ra, CandidateB: rb})
		metrics.DefaultMetrics.RecordsGenerated.WithLabelValues("optimized").Inc()
		logger.Log.Info("本题双模型优化完成")
	}
	return records
}
