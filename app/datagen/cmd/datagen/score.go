package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/engine"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/llm"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/server"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/storage"
)

func scoreCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "给 raw 目录下每个 data_*.jsonl 语料组打分并汇总排名",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			m, err := dm.ParseScoreMode(mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			cm, err := llm.NewChatModel(ctx, cfg.Endpoint(config.ModelEndpoint{Model: cfg.Judge.Model}))
			if err != nil {
				return err
			}

			// 配置了数据库才落库，连接失败只影响归档
			var store engine.RunStore
			if cfg.DB.Host != "" {
				s, err := storage.NewStorage(cfg.DB)
				if err != nil {
					logger.Log.Errorf("无法连接数据库: %v，仅输出文件", err)
				} else {
					defer s.Close()
					store = s
					logger.Log.Info("已成功连接到数据库")
				}
			} else {
				logger.Log.Info("未配置数据库信息，跳过数据库连接")
			}

			eng := engine.NewEngine(cfg, cm, store)
			_, err = eng.RunGroups(ctx, engine.RunGroupsOptions{
				RawDir: cfg.Paths.Raw,
				OutDir: cfg.Paths.Judged,
				Mode:   m,
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(dm.ModeTurns), "turns | holistic")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动打分结果展示服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			app := server.NewApp(cfg.Server, cfg.Paths.Judged, prometheus.DefaultGatherer, logger.NewKratosLogger())
			logger.Log.Infof("展示服务监听 %s，数据目录 %s", cfg.Server.Addr, cfg.Paths.Judged)
			return app.Run()
		},
	}
}
