package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// ErrNoGroups 原始数据目录下没有任何语料组
var ErrNoGroups = errors.New("no data_*.jsonl groups found")

const (
	groupPrefix = "data_"
	groupSuffix = ".jsonl"
)

// RunGroupsOptions 批量打分选项
type RunGroupsOptions struct {
	RawDir string
	OutDir string
	Mode   dm.ScoreMode
	// Stdout 汇总表输出位置，为空时输出到 os.Stdout
	Stdout io.Writer
}

// DiscoverGroups 按文件名排序列出 dir 下所有 data_*.jsonl
func DiscoverGroups(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, groupPrefix+"*"+groupSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// GroupName data_<name>.jsonl -> <name>
func GroupName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimPrefix(base, groupPrefix), groupSuffix)
}

// OutputFile 逐轮模式 score_<name>.jsonl，整体模式 holistic_score_<name>.jsonl
func OutputFile(mode dm.ScoreMode, group string) string {
	if mode == dm.ModeHolistic {
		return "holistic_score_" + group + groupSuffix
	}
	return "score_" + group + groupSuffix
}

// SummaryFile 汇总 JSON 文件名
func SummaryFile(mode dm.ScoreMode) string {
	return fmt.Sprintf("summary_%s.json", mode)
}

// ReportFile HTML 报告文件名
func ReportFile(mode dm.ScoreMode) string {
	return fmt.Sprintf("report_%s.html", mode)
}

// RunGroups 依次处理每个语料组，各组互不影响，最后汇总排名
func (e *Engine) RunGroups(ctx context.Context, opts RunGroupsOptions) (*dm.CorpusSummary, error) {
	files, err := DiscoverGroups(opts.RawDir)
	if err != nil {
		return nil, fmt.Errorf("discover groups in %s: %w", opts.RawDir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoGroups, opts.RawDir)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %q: %w", opts.OutDir, err)
	}

	logger.Log.Infof("找到 %d 个文件待处理 (模式: %s)", len(files), opts.Mode)

	aggregates := make(map[string]float64, len(files))
	scored := make(map[string][]dm.ScoredDialogue, len(files))
	var stats []dm.GroupStats
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		group := GroupName(f)
		logger.Log.Infof(">>> 正在评估文件: %s", f)

		records, err := jsonl.Read[dm.DialogueRecord](f)
		if err != nil {
			logger.Log.Errorf("读取失败 [%s]: %v", f, err)
			continue
		}
		if len(records) == 0 {
			logger.Log.Warnf("文件为空，跳过: %s", f)
			continue
		}

		out, st := e.ScoreRecords(ctx, records, opts.Mode)
		// 中断时不覆盖已有结果，也不生成汇总
		if err := ctx.Err(); err != nil {
			logger.Log.Warnf("任务已取消，组 %s 的结果未写入: %v", group, err)
			return nil, err
		}
		st.Group = group
		if err := jsonl.Write(filepath.Join(opts.OutDir, OutputFile(opts.Mode, group)), out); err != nil {
			logger.Log.Errorf("写入结果失败 [%s]: %v", group, err)
			continue
		}
		logger.Log.Infof("文件 %s 处理完成: 共 %d 条，打分 %d 条，跳过 %d 条，平均分 %.2f",
			filepath.Base(f), st.Total, st.Scored, st.Skipped, st.Aggregate)

		aggregates[group] = st.Aggregate
		scored[group] = out
		stats = append(stats, st)
	}

	summary := dm.NewCorpusSummary(aggregates)
	summary.Mode = opts.Mode
	summary.Groups = stats

	w := opts.Stdout
	if w == nil {
		w = os.Stdout
	}
	PrintSummary(w, summary)

	if err := WriteSummary(filepath.Join(opts.OutDir, SummaryFile(opts.Mode)), summary); err != nil {
		return summary, err
	}
	if err := WriteReport(filepath.Join(opts.OutDir, ReportFile(opts.Mode)), summary); err != nil {
		return summary, err
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, summary, scored); err != nil {
			logger.Log.Errorf("保存运行记录失败: %v", err)
		}
	}
	return summary, nil
}

// PrintSummary 打印排名与最高分
func PrintSummary(w io.Writer, s *dm.CorpusSummary) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "所有文件评估结果汇总")
	fmt.Fprintln(w, line)
	for _, g := range s.Ranking {
		fmt.Fprintf(w, "  %s: %.2f 分\n", g.Group, g.Score)
	}
	fmt.Fprintln(w, line)
	if s.Best != "" {
		fmt.Fprintf(w, "最高分: %s (%.2f 分)\n", s.Best, s.Aggregates[s.Best])
	}
}

// WriteSummary 以缩进 JSON 保存汇总
func WriteSummary(path string, s *dm.CorpusSummary) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}

// ReadSummary 读取 WriteSummary 保存的汇总
func ReadSummary(path string) (*dm.CorpusSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s dm.CorpusSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return &s, nil
}

// ScoredGroup 打分结果文件名中的组名，不是结果文件时返回 false
func ScoredGroup(mode dm.ScoreMode, path string) (string, bool) {
	prefix := strings.TrimSuffix(OutputFile(mode, ""), groupSuffix)
	base := filepath.Base(path)
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, groupSuffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, prefix), groupSuffix), true
}

// LoadScored 读取 dir 下某种模式的全部打分结果，按组名归类
func LoadScored(dir string, mode dm.ScoreMode) (map[string][]dm.ScoredDialogue, error) {
	files, err := filepath.Glob(filepath.Join(dir, OutputFile(mode, "*")))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	groups := make(map[string][]dm.ScoredDialogue, len(files))
	for _, f := range files {
		group, ok := ScoredGroup(mode, f)
		if !ok {
			continue
		}
		items, err := jsonl.Read[dm.ScoredDialogue](f)
		if err != nil {
			return nil, err
		}
		groups[group] = items
	}
	return groups, nil
}

// Summarize 根据已有的打分结果重新计算汇总
func Summarize(mode dm.ScoreMode, groups map[string][]dm.ScoredDialogue) *dm.CorpusSummary {
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	sort.Strings(names)

	aggregates := make(map[string]float64, len(groups))
	stats := make([]dm.GroupStats, 0, len(groups))
	for _, g := range names {
		scores := make([]float64, 0, len(groups[g]))
		for i := range groups[g] {
			scores = append(scores, groups[g][i].Score())
		}
		st := dm.GroupStats{Group: g, Total: len(scores), Scored: len(scores), Aggregate: dm.Mean(scores)}
		aggregates[g] = st.Aggregate
		stats = append(stats, st)
	}

	s := dm.NewCorpusSummary(aggregates)
	s.Mode = mode
	s.Groups = stats
	return s
}
