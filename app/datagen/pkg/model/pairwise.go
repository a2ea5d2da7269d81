package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// CoTAnswer 带思维链的单条回复
type CoTAnswer struct {
	CoT    string `json:"CoT"`
	Answer string `json:"Answer"`
}

// Validate 回复不能为空
func (c *CoTAnswer) Validate() error {
	if strings.TrimSpace(c.Answer) == "" {
		return errors.New("answer is empty")
	}
	return nil
}

// DecodeFallback 模型没有按 JSON 输出时，从 "CoT: ... Answer: ..." 纯文本中提取
func (c *CoTAnswer) DecodeFallback(raw string) error {
	c.CoT, c.Answer = textutil.ExtractCoTAnswer(raw)
	if c.Answer == "" {
		return errors.New("no Answer section found")
	}
	return nil
}

// CandidateResult 某个候选模型针对一个问题的生成结果
type CandidateResult struct {
	Name   string `json:"name"`
	CoT    string `json:"CoT,omitempty"`
	Answer string `json:"Answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// OK 是否成功生成
func (c *CandidateResult) OK() bool {
	return c != nil && c.Error == "" && c.Answer != ""
}

// PairwiseRecord 两个候选模型对同一问题的结果
type PairwiseRecord struct {
	Question   string           `json:"question"`
	CandidateA *CandidateResult `json:"candidate_a"`
	CandidateB *CandidateResult `json:"candidate_b"`
}

// ComparisonPair 交给裁判做两两对比的数据
type ComparisonPair struct {
	Question     string `json:"question"`
	ModelAName   string `json:"model_a_name"`
	ModelACoT    string `json:"model_a_cot,omitempty"`
	ModelAAnswer string `json:"model_a_answer,omitempty"`
	ModelBName   string `json:"model_b_name"`
	ModelBCoT    string `json:"model_b_cot,omitempty"`
	ModelBAnswer string `json:"model_b_answer,omitempty"`
	OutputA      string `json:"output_a"`
	OutputB      string `json:"output_b"`
}

// 两两对比的胜者取值
const (
	WinnerA   = "model_a"
	WinnerB   = "model_b"
	WinnerTie = "tie"
)

// PairVerdict 儿童陪伴场景下的两两对比评审结果
type PairVerdict struct {
	EmpathyAnalysis  string `json:"accuracy_analysis"`
	GuidanceAnalysis string `json:"reasoning_analysis"`
	Reason           string `json:"reason"`
	Winner           string `json:"winner"`
}

// Validate 胜者只能是 model_a / model_b / tie
func (v *PairVerdict) Validate() error {
	v.Winner = strings.ToLower(strings.TrimSpace(v.Winner))
	switch v.Winner {
	case WinnerA, WinnerB, WinnerTie:
		return nil
	default:
		return fmt.Errorf("invalid winner %q", v.Winner)
	}
}

// JudgedPair 带裁判结论的对比数据
type JudgedPair struct {
	ComparisonPair
	Verdict PairVerdict `json:"verdict"`
}

// OptimizedCandidate 一个候选模型“生成-点评-重写”的完整记录
type OptimizedCandidate struct {
	ModelName   string     `json:"model_name"`
	V1Initial   CoTAnswer  `json:"v1_initial"`
	Critique    string     `json:"critique"`
	V2Optimized *CoTAnswer `json:"v2_optimized,omitempty"`
	V2Error     string     `json:"v2_error,omitempty"`
}

// OptimizedRecord 双模型自我优化结果
type OptimizedRecord struct {
	Question   string              `json:"question"`
	CandidateA *OptimizedCandidate `json:"candidate_a"`
	CandidateB *OptimizedCandidate `json:"candidate_b"`
}

// BattlePair 两种生成方案在同一问题上的对话
type BattlePair struct {
	Question   string `json:"question"`
	OutputA    string `json:"output_a"`
	OutputB    string `json:"output_b"`
	ModelAName string `json:"model_a_name"`
	ModelBName string `json:"model_b_name"`
}

// TrainingSample 最终导出的单轮训练样本
type TrainingSample struct {
	Question    string      `json:"question"`
	CoT         string      `json:"cot"`
	Answer      string      `json:"answer"`
	SourceModel string      `json:"source_model"`
	Verdict     PairVerdict `json:"score"`
}

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSample 多轮训练样本
type ChatSample struct {
	Question string        `json:"question,omitempty"`
	Score    float64       `json:"score"`
	Source   string        `json:"source,omitempty"`
	Messages []ChatMessage `json:"messages"`
}
