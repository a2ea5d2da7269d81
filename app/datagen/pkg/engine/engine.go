package engine

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/metrics"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/segment"
)

// RunStore 打分结果的持久化，可选
type RunStore interface {
	SaveRun(ctx context.Context, summary *dm.CorpusSummary, groups map[string][]dm.ScoredDialogue) error
}

// Engine 核心打分引擎
type Engine struct {
	seg      *segment.Segmenter
	turns    *scorer.TurnScorer
	holistic *scorer.HolisticScorer
	workers  int
	store    RunStore
	metrics  *metrics.Metrics
}

// Options 引擎选项
type Options struct {
	Segmenter *segment.Segmenter
	Workers   int
	Store     RunStore
	Metrics   *metrics.Metrics
}

// New 创建引擎
func New(turns *scorer.TurnScorer, holistic *scorer.HolisticScorer, opts Options) *Engine {
	seg := opts.Segmenter
	if seg == nil {
		seg = segment.Default()
	}
	return &Engine{
		seg:      seg,
		turns:    turns,
		holistic: holistic,
		workers:  opts.Workers,
		store:    opts.Store,
		metrics:  opts.Metrics,
	}
}

// NewEngine 按配置创建引擎，所有裁判调用共享一个客户端
func NewEngine(cfg *config.Config, cm model.BaseChatModel, store RunStore) *Engine {
	client := judge.NewFromConfig(cm, cfg)
	opts := scorer.Options{
		Model:       cfg.Judge.Model,
		Temperature: cfg.Judge.Temperature,
	}
	return New(scorer.NewTurnScorer(client, opts), scorer.NewHolisticScorer(client, opts), Options{
		Workers: cfg.Concurrency.Workers,
		Store:   store,
		Metrics: metrics.DefaultMetrics,
	})
}
