package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// outcome 单条对话的处理结果
type outcome struct {
	scored dm.ScoredDialogue
	err    error
	done   bool
}

// ScoreRecords 给一组对话打分。被跳过的对话不出现在结果中，结果顺序与输入一致。
// workers 大于 1 时用协程池并发处理不同对话，单条对话内部始终串行
func (e *Engine) ScoreRecords(ctx context.Context, records []dm.DialogueRecord, mode dm.ScoreMode) ([]dm.ScoredDialogue, dm.GroupStats) {
	results := make([]outcome, len(records))
	if e.workers > 1 && len(records) > 1 {
		if err := e.scoreParallel(ctx, records, mode, results); err != nil {
			logger.Log.Errorf("协程池创建失败，改为串行处理: %v", err)
			e.scoreSequential(ctx, records, mode, results)
		}
	} else {
		e.scoreSequential(ctx, records, mode, results)
	}

	stats := dm.GroupStats{Total: len(records)}
	out := make([]dm.ScoredDialogue, 0, len(records))
	scores := make([]float64, 0, len(records))
	for _, r := range results {
		if !r.done || r.err != nil {
			stats.Skipped++
			continue
		}
		out = append(out, r.scored)
		scores = append(scores, r.scored.Score())
	}
	stats.Scored = len(out)
	stats.Aggregate = dm.Mean(scores)
	return out, stats
}

func (e *Engine) scoreSequential(ctx context.Context, records []dm.DialogueRecord, mode dm.ScoreMode, results []outcome) {
	for i := range records {
		if err := ctx.Err(); err != nil {
			logger.Log.Warnf("任务已取消，剩余 %d 条对话未处理: %v", len(records)-i, err)
			return
		}
		results[i] = e.process(ctx, i, len(records), records[i], mode)
	}
}

func (e *Engine) scoreParallel(ctx context.Context, records []dm.DialogueRecord, mode dm.ScoreMode, results []outcome) error {
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(e.workers, func(arg any) {
		defer wg.Done()
		i := arg.(int)
		if ctx.Err() != nil {
			return
		}
		results[i] = e.process(ctx, i, len(records), records[i], mode)
	}, ants.WithPanicHandler(func(p any) {
		logger.Log.Errorf("打分任务 panic: %v", p)
	}))
	if err != nil {
		return fmt.Errorf("create scoring pool: %w", err)
	}
	defer pool.Release()

	for i := range records {
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			logger.Log.Errorf("提交打分任务失败 [%d]: %v", i+1, err)
		}
	}
	wg.Wait()
	return nil
}

func (e *Engine) process(ctx context.Context, i, total int, rec dm.DialogueRecord, mode dm.ScoreMode) outcome {
	logger.Log.Infof("[%d/%d] 正在评估对话: %s", i+1, total, textutil.Preview(rec.Question, 10))

	scored, err := e.scoreOne(ctx, rec, mode)
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Log.Warnf("[%d/%d] 任务已取消，结果丢弃: %v", i+1, total, ctxErr)
		return outcome{err: ctxErr}
	}
	if err != nil {
		logger.Log.Warnf("[%d/%d] 跳过: %v", i+1, total, err)
		if e.metrics != nil {
			e.metrics.DialoguesSkipped.WithLabelValues(skipReason(err)).Inc()
		}
		return outcome{err: err, done: true}
	}

	logger.Log.Infof("[%d/%d] 得分: %.2f", i+1, total, scored.Score())
	if e.metrics != nil {
		e.metrics.DialoguesScored.WithLabelValues(string(mode)).Inc()
	}
	return outcome{scored: scored, done: true}
}
