package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/dataset"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/generate"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
)

func genSelfPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-selfplay",
		Short: "两个模型分别扮演孩子和 AiMe 互相对话",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			questions, err := loadQuestions(cfg.Paths.Questions)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			c, err := newClient(ctx, cfg, config.ModelEndpoint{})
			if err != nil {
				return err
			}

			sp := generate.NewSelfPlay(c, cfg.Generation.SelfPlay)
			records := sp.Run(ctx, questions)
			return jsonl.Write(filepath.Join(cfg.Paths.Raw, cfg.Generation.SelfPlay.Output), records)
		},
	}
}

func genBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-batch",
		Short: "多个模型一次性生成整段对话",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if len(cfg.Generation.Batch.Models) == 0 {
				logger.Log.Warn("未配置 generation.batch.models，没有需要生成的模型")
				return nil
			}
			questions, err := loadQuestions(cfg.Paths.Questions)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			b := generate.NewBatch(cfg.Generation.Batch)
			for _, ep := range cfg.Generation.Batch.Models {
				c, err := newClient(ctx, cfg, ep)
				if err != nil {
					logger.Log.Errorf("[%s] 客户端初始化失败: %v", ep.Name, err)
					continue
				}
				records := b.Run(ctx, c, ep, questions)
				if err := jsonl.Write(filepath.Join(cfg.Paths.Raw, generate.OutputFile(ep.Name)), records); err != nil {
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		},
	}
}

// candidates 按配置创建两个候选模型
func candidates(cmd *cobra.Command, cfg *config.Config) (a, b generate.Candidate, err error) {
	build := func(ep config.ModelEndpoint) (generate.Candidate, error) {
		c, err := newClient(cmd.Context(), cfg, ep)
		if err != nil {
			return generate.Candidate{}, err
		}
		return generate.Candidate{Name: ep.Name, Model: cfg.Endpoint(ep).Model, Client: c}, nil
	}
	if a, err = build(cfg.Generation.CandidateA); err != nil {
		return
	}
	b, err = build(cfg.Generation.CandidateB)
	return
}

func genStructuredCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-structured",
		Short: "两个候选模型针对每个问题生成带思维链的回复",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			questions, err := loadQuestions(cfg.Paths.Questions)
			if err != nil {
				return err
			}
			a, b, err := candidates(cmd, cfg)
			if err != nil {
				return err
			}

			records := generate.NewStructured(a, b).Run(cmd.Context(), questions)
			return jsonl.Write(filepath.Join(cfg.Paths.Raw, dataset.RawFile), records)
		},
	}
}

func optimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "生成初稿，裁判点评后重写",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			questions, err := loadQuestions(cfg.Paths.Questions)
			if err != nil {
				return err
			}
			a, b, err := candidates(cmd, cfg)
			if err != nil {
				return err
			}
			jc, err := judgeClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			pj := scorer.NewPairJudge(jc, scorer.Options{Model: cfg.Judge.Model, Temperature: cfg.Judge.Temperature})
			records := generate.NewOptimizer(a, b, pj).Run(cmd.Context(), questions)
			return jsonl.Write(filepath.Join(cfg.Paths.Raw, dataset.OptimizedFile), records)
		},
	}
}
