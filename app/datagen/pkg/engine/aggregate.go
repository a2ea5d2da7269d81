// Package engine 对话打分的编排：单条对话的聚合、批量处理以及多个语料组的汇总
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// MinDialogueRunes 少于这个长度的对话不打分
const MinDialogueRunes = 10

// 跳过原因。打分本身的失败不会走到这里，而是 0 分兜底
var (
	ErrTooShort    = errors.New("dialogue is empty or too short")
	ErrUnparseable = errors.New("dialogue could not be segmented into turns")
)

func checkLength(text string) error {
	if strings.TrimSpace(text) == "" || utf8.RuneCountInString(text) < MinDialogueRunes {
		return ErrTooShort
	}
	return nil
}

// ScoreDialogue 逐轮打分。上下文来自原始对话文本，按顺序逐轮累积
func (e *Engine) ScoreDialogue(ctx context.Context, rec dm.DialogueRecord) (dm.ScoredDialogue, error) {
	if err := checkLength(rec.DialogueContent); err != nil {
		return dm.ScoredDialogue{}, err
	}
	turns := e.seg.Segment(rec.DialogueContent)
	if len(turns) == 0 {
		return dm.ScoredDialogue{}, fmt.Errorf("%w, preview: %s", ErrUnparseable, textutil.Preview(rec.DialogueContent, 50))
	}

	details := make([]dm.ScoredTurn, 0, len(turns))
	scores := make([]float64, 0, len(turns))
	for i, t := range turns {
		v := e.turns.ScoreTurn(ctx, e.seg.Context(turns, i), t.User, t.Companion)
		// 中断后的兜底分不是真实结果，整段对话作废
		if err := ctx.Err(); err != nil {
			return dm.ScoredDialogue{}, err
		}
		logger.Log.Debugf("  - 第 %d 轮得分: %d | 评语: %s", t.Index, v.Score, textutil.Preview(v.Analysis, 15))
		details = append(details, dm.ScoredTurn{Turn: t, Verdict: v})
		scores = append(scores, float64(v.Score))
		if e.metrics != nil {
			e.metrics.TurnsScored.Inc()
		}
	}

	avg := dm.Mean(scores)
	return dm.ScoredDialogue{
		DialogueRecord: rec,
		AvgScore:       &avg,
		TurnDetails:    details,
	}, nil
}

// ScoreDialogueHolistic 整段对话一次打分
func (e *Engine) ScoreDialogueHolistic(ctx context.Context, rec dm.DialogueRecord) (dm.ScoredDialogue, error) {
	if err := checkLength(rec.DialogueContent); err != nil {
		return dm.ScoredDialogue{}, err
	}
	v := e.holistic.ScoreDialogue(ctx, rec.DialogueContent)
	if err := ctx.Err(); err != nil {
		return dm.ScoredDialogue{}, err
	}
	score := v.Score
	return dm.ScoredDialogue{
		DialogueRecord:   rec,
		HolisticScore:    &score,
		HolisticAnalysis: v.Analysis,
	}, nil
}

func (e *Engine) scoreOne(ctx context.Context, rec dm.DialogueRecord, mode dm.ScoreMode) (dm.ScoredDialogue, error) {
	if mode == dm.ModeHolistic {
		return e.ScoreDialogueHolistic(ctx, rec)
	}
	return e.ScoreDialogue(ctx, rec)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrTooShort):
		return "too_short"
	case errors.Is(err, ErrUnparseable):
		return "unparseable"
	default:
		return "other"
	}
}
