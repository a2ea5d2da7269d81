package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// 单轮分数的取值范围
const (
	MinScore = 0
	MaxScore = 10
)

// ScoreMode 打分方式
type ScoreMode string

const (
	// ModeTurns 逐轮打分后取平均
	ModeTurns ScoreMode = "turns"
	// ModeHolistic 整段对话一次打分
	ModeHolistic ScoreMode = "holistic"
)

// ParseScoreMode 解析命令行传入的打分方式
func ParseScoreMode(s string) (ScoreMode, error) {
	switch ScoreMode(s) {
	case ModeTurns, ModeHolistic:
		return ScoreMode(s), nil
	default:
		return "", fmt.Errorf("unknown score mode: %q", s)
	}
}

// Turn 一轮对话：孩子说的话与陪伴机器人的回复
type Turn struct {
	Index     int    `json:"turn_index"`
	User      string `json:"user"`
	Companion string `json:"aime"`
}

// Verdict 裁判给出的分数与评语
type Verdict struct {
	Score    int    `json:"score"`
	Analysis string `json:"analysis"`
}

// Validate 分数必须落在 [0, 10]
func (v *Verdict) Validate() error {
	if v.Score < MinScore || v.Score > MaxScore {
		return fmt.Errorf("score %d out of range [%d, %d]", v.Score, MinScore, MaxScore)
	}
	return nil
}

// DecodeFallback 兼容 "8.0"、"8" 这类写法，带小数部分的分数不接受
func (v *Verdict) DecodeFallback(raw string) error {
	var loose struct {
		Score    json.Number `json:"score"`
		Analysis string      `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(textutil.StripCodeFence(raw)), &loose); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(loose.Score.String()), 64)
	if err != nil {
		return fmt.Errorf("parse score %q: %w", loose.Score, err)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("score %v is not an integer", f)
	}
	v.Score = int(f)
	v.Analysis = loose.Analysis
	return nil
}

// ScoredTurn 打过分的一轮对话
type ScoredTurn struct {
	Turn
	Verdict
}

// DialogueRecord 生成阶段产出的一条对话
type DialogueRecord struct {
	Question        string `json:"question"`
	Model           string `json:"model,omitempty"`
	GenerationRound int    `json:"generation_round,omitempty"`
	SchemeType      string `json:"scheme_type,omitempty"`
	DialogueContent string `json:"dialogue_content"`
}

// ScoredDialogue 打分后的对话。逐轮模式填 AvgScore/TurnDetails，整体模式填 Holistic*
type ScoredDialogue struct {
	DialogueRecord
	AvgScore         *float64     `json:"avg_score,omitempty"`
	TurnDetails      []ScoredTurn `json:"turn_details,omitempty"`
	HolisticScore    *int         `json:"holistic_score,omitempty"`
	HolisticAnalysis string       `json:"holistic_analysis,omitempty"`
}

// Mode 根据填充的字段判断打分方式
func (d *ScoredDialogue) Mode() ScoreMode {
	if d.HolisticScore != nil {
		return ModeHolistic
	}
	return ModeTurns
}

// Score 对话的最终得分
func (d *ScoredDialogue) Score() float64 {
	switch {
	case d.HolisticScore != nil:
		return float64(*d.HolisticScore)
	case d.AvgScore != nil:
		return *d.AvgScore
	default:
		return 0
	}
}

// GroupStats 单个语料组的统计
type GroupStats struct {
	Group     string  `json:"group"`
	Total     int     `json:"total"`
	Scored    int     `json:"scored"`
	Skipped   int     `json:"skipped"`
	Aggregate float64 `json:"aggregate"`
}

// GroupScore 排名中的一项
type GroupScore struct {
	Group string  `json:"group"`
	Score float64 `json:"score"`
}

// CorpusSummary 全部语料组的汇总
type CorpusSummary struct {
	Mode       ScoreMode          `json:"mode,omitempty"`
	Aggregates map[string]float64 `json:"aggregates"`
	Ranking    []GroupScore       `json:"ranking"`
	Best       string             `json:"best,omitempty"`
	Groups     []GroupStats       `json:"groups,omitempty"`
}

// NewCorpusSummary 按得分从高到低排名，同分按组名升序
func NewCorpusSummary(aggregates map[string]float64) *CorpusSummary {
	s := &CorpusSummary{
		Aggregates: make(map[string]float64, len(aggregates)),
		Ranking:    make([]GroupScore, 0, len(aggregates)),
	}
	for g, v := range aggregates {
		s.Aggregates[g] = v
		s.Ranking = append(s.Ranking, GroupScore{Group: g, Score: v})
	}
	sort.Slice(s.Ranking, func(i, j int) bool {
		if s.Ranking[i].Score != s.Ranking[j].Score {
			return s.Ranking[i].Score > s.Ranking[j].Score
		}
		return s.Ranking[i].Group < s.Ranking[j].Group
	})
	if len(s.Ranking) > 0 {
		s.Best = s.Ranking[0].Group
	}
	return s
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Mean 算术平均并保留两位小数，空切片返回 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Round2(sum / float64(len(values)))
}
