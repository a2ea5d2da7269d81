package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/dataset"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/engine"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/segment"
)

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "保留两个候选模型都有结果的记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			in := filepath.Join(cfg.Paths.Raw, dataset.RawFile)
			records, err := jsonl.Read[dm.PairwiseRecord](in)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				logger.Log.Errorf("未找到原始数据: %s，请先运行 gen-structured", in)
				return nil
			}
			out := dataset.Clean(records)
			logger.Log.Infof("有效数据: %d/%d 条", len(out), len(records))
			return jsonl.Write(filepath.Join(cfg.Paths.Clean, dataset.CleanFile), out)
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "把清洗后的数据整理为裁判对比项",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			in := filepath.Join(cfg.Paths.Clean, dataset.CleanFile)
			records, err := jsonl.Read[dm.PairwiseRecord](in)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				logger.Log.Errorf("未找到清洗后的数据: %s，请先运行 clean", in)
				return nil
			}
			return jsonl.Write(filepath.Join(cfg.Paths.Extracted, dataset.ExtractedFile), dataset.Extract(records))
		},
	}
}

func mergeBattleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-battle",
		Short: "按问题配对自博弈与批量生成的对话",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			pairs, err := dataset.MergeBattleFiles(
				filepath.Join(cfg.Paths.Raw, dataset.SchemeAFile),
				filepath.Join(cfg.Paths.Raw, dataset.SchemeBFile),
			)
			if err != nil {
				logger.Log.Errorf("找不到输入文件，请先运行 gen-selfplay 和 gen-batch: %v", err)
				return nil
			}
			if len(pairs) == 0 {
				logger.Log.Error("没有匹配到任何相同的问题，请检查两份数据的问题列表是否一致")
				return nil
			}
			logger.Log.Infof("共生成 %d 组对决数据", len(pairs))
			return jsonl.Write(filepath.Join(cfg.Paths.Extracted, dataset.BattleFile), pairs)
		},
	}
}

func judgeBattleCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "judge-battle",
		Short: "裁判逐条判定 A、B 的胜负",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if input == "" {
				input = filepath.Join(cfg.Paths.Extracted, dataset.ExtractedFile)
			}
			pairs, err := jsonl.Read[dm.ComparisonPair](input)
			if err != nil {
				return err
			}
			if len(pairs) == 0 {
				logger.Log.Errorf("没有可判定的数据: %s", input)
				return nil
			}
			jc, err := judgeClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			pj := scorer.NewPairJudge(jc, scorer.Options{Model: cfg.Judge.Model, Temperature: cfg.Judge.Temperature})
			judged := dataset.Judge(cmd.Context(), pj, pairs)
			return jsonl.Write(filepath.Join(cfg.Paths.Judged, dataset.JudgedFile), judged)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "对比数据文件，默认 extracted_data.jsonl")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "导出胜者的回复作为训练数据",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			judged, err := jsonl.Read[dm.JudgedPair](filepath.Join(cfg.Paths.Judged, dataset.JudgedFile))
			if err != nil {
				return err
			}
			return jsonl.Write(filepath.Join(cfg.Paths.Final, dataset.TrainFile), dataset.Winners(judged))
		},
	}
}

func exportTopCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "export-top",
		Short: "导出高分多轮对话",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			m, err := dm.ParseScoreMode(mode)
			if err != nil {
				return err
			}
			groups, err := engine.LoadScored(cfg.Paths.Judged, m)
			if err != nil {
				return err
			}

			var all []dm.ScoredDialogue
			for _, g := range engine.Summarize(m, groups).Groups {
				all = append(all, groups[g.Group]...)
			}
			samples := dataset.TopDialogues(all, dataset.TopOptions{
				MinScore:  cfg.Export.MinScore,
				TopK:      cfg.Export.TopK,
				Segmenter: segment.Default(),
			})
			logger.Log.Infof("得分不低于 %.1f 的对话: %d/%d 条", cfg.Export.MinScore, len(samples), len(all))
			return jsonl.Write(filepath.Join(cfg.Paths.Final, dataset.DialoguesFile), samples)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(dm.ModeTurns), "turns | holistic")
	return cmd
}

func viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [path]",
		Short: "缩进打印 jsonl 文件",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.Extracted, dataset.ExtractedFile)
			if len(args) == 1 {
				path = args[0]
			}
			return dataset.View(os.Stdout, path)
		},
	}
}
