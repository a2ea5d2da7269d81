package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/llm"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
)

// go build -ldflags "-X main.Version=x.y.z"
var Version = "dev"

// cfgPath 配置文件路径
var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "datagen",
		Short:         "AiMe 儿童陪伴对话数据的生成、打分与导出",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "app/datagen/configs/config.yaml", "config path")

	root.AddCommand(
		genSelfPlayCmd(),
		genBatchCmd(),
		genStructuredCmd(),
		optimizeCmd(),
		cleanCmd(),
		extractCmd(),
		mergeBattleCmd(),
		judgeBattleCmd(),
		scoreCmd(),
		exportCmd(),
		exportTopCmd(),
		viewCmd(),
		serveCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志
func setup() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("无法加载配置文件: %w", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("无法初始化日志: %w", err)
	}
	return cfg, nil
}

// newClient 为某个端点创建带限流与重试的客户端
func newClient(ctx context.Context, cfg *config.Config, endpoint config.ModelEndpoint) (*judge.Client, error) {
	cm, err := llm.NewChatModel(ctx, cfg.Endpoint(endpoint))
	if err != nil {
		return nil, err
	}
	return judge.NewFromConfig(cm, cfg), nil
}

// judgeClient 裁判使用默认 llm 段与 judge.model
func judgeClient(ctx context.Context, cfg *config.Config) (*judge.Client, error) {
	return newClient(ctx, cfg, config.ModelEndpoint{Model: cfg.Judge.Model})
}

// loadQuestions 没有问题时返回错误
func loadQuestions(path string) ([]string, error) {
	questions, err := jsonl.LoadQuestions(path)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("没有读取到任何问题: %s", path)
	}
	logger.Log.Infof("共加载 %d 个问题", len(questions))
	return questions, nil
}
