// Package dataset 生成之后的数据整理：清洗、抽取对比项、组装对决、裁判、导出训练数据
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/segment"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/textutil"
)

// 默认文件名
const (
	RawFile       = "raw_data.jsonl"
	OptimizedFile = "dual_optimized_data.jsonl"
	CleanFile     = "clean_data.jsonl"
	ExtractedFile = "extracted_data.jsonl"
	BattleFile    = "battle_data.jsonl"
	JudgedFile    = "judged_data.jsonl"
	TrainFile     = "train_ready.jsonl"
	DialoguesFile = "train_dialogues.jsonl"
	SchemeAFile   = "data_scheme_A.jsonl"
	SchemeBFile   = "data_scheme_B.jsonl"
)

// 对决双方的展示名
const (
	SchemeAName = "Scheme A (Self-Play)"
	SchemeBName = "Scheme B (Batch)"
)

const (
	missingCoT    = "无 CoT"
	missingAnswer = "无答案"
	roleUser      = "user"
	roleAssistant = "assistant"
	previewRunes  = 15
)

// Clean 只保留两个候选模型都有结果的记录，并清理文本中的控制字符
func Clean(records []dm.PairwiseRecord) []dm.PairwiseRecord {
	out := make([]dm.PairwiseRecord, 0, len(records))
	for i, r := range records {
		if !r.CandidateA.OK() || !r.CandidateB.OK() {
			logger.Log.Warnf("第 %d 条数据缺失结果，已跳过", i+1)
			continue
		}
		out = append(out, dm.PairwiseRecord{
			Question:   textutil.CleanText(r.Question),
			CandidateA: cleanCandidate(r.CandidateA),
			CandidateB: cleanCandidate(r.CandidateB),
		})
	}
	return out
}

func cleanCandidate(c *dm.CandidateResult) *dm.CandidateResult {
	return &dm.CandidateResult{
		Name:   c.Name,
		CoT:    textutil.CleanText(c.CoT),
		Answer: textutil.CleanText(c.Answer),
	}
}

// FormatOutput 交给裁判对比的文本
func FormatOutput(cot, answer string) string {
	return fmt.Sprintf("【思维链 CoT】\n%s\n\n【最终答案 Answer】\n%s", cot, answer)
}

// Extract 把清洗后的记录整理为对比项
func Extract(records []dm.PairwiseRecord) []dm.ComparisonPair {
	out := make([]dm.ComparisonPair, 0, len(records))
	for _, r := range records {
		aName, aCoT, aAns := candidateFields(r.CandidateA)
		bName, bCoT, bAns := candidateFields(r.CandidateB)
		out = append(out, dm.ComparisonPair{
			Question:     r.Question,
			ModelAName:   aName,
			ModelACoT:    aCoT,
			ModelAAnswer: aAns,
			ModelBName:   bName,
			ModelBCoT:    bCoT,
			ModelBAnswer: bAns,
			OutputA:      FormatOutput(aCoT, aAns),
			OutputB:      FormatOutput(bCoT, bAns),
		})
	}
	return out
}

func candidateFields(c *dm.CandidateResult) (name, cot, answer string) {
	cot, answer = missingCoT, missingAnswer
	if c == nil {
		return "", cot, answer
	}
	if c.CoT != "" {
		cot = c.CoT
	}
	if c.Answer != "" {
		answer = c.Answer
	}
	return c.Name, cot, answer
}

// ErrMissingInput 对决所需的输入文件不存在
var ErrMissingInput = errors.New("missing input file")

// MergeBattleFiles 读取两种方案的生成结果并组装对决数据
func MergeBattleFiles(pathA, pathB string) ([]dm.BattlePair, error) {
	var missing []string
	for _, p := range []string{pathA, pathB} {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}

	a, err := jsonl.Read[dm.DialogueRecord](pathA)
	if err != nil {
		return nil, err
	}
	b, err := jsonl.Read[dm.DialogueRecord](pathB)
	if err != nil {
		return nil, err
	}
	logger.Log.Infof("方案 A 数据量: %d 条，方案 B 数据量: %d 条", len(a), len(b))
	return MergeBattle(a, b), nil
}

// MergeBattle 以方案 A 为基准按问题配对，同一问题出现多次时以最后一次为准
func MergeBattle(a, b []dm.DialogueRecord) []dm.BattlePair {
	byQuestion := func(records []dm.DialogueRecord) ([]string, map[string]string) {
		var order []string
		m := make(map[string]string, len(records))
		for _, r := range records {
			q := strings.TrimSpace(r.Question)
			if _, ok := m[q]; !ok {
				order = append(order, q)
			}
			m[q] = r.DialogueContent
		}
		return order, m
	}
	orderA, dictA := byQuestion(a)
	_, dictB := byQuestion(b)

	var out []dm.BattlePair
	for _, q := range orderA {
		contentB, ok := dictB[q]
		if !ok {
			logger.Log.Warnf("未匹配: 问题 '%s...' 在方案 B 中找不到对应结果", textutil.Preview(q, previewRunes))
			continue
		}
		out = append(out, dm.BattlePair{
			Question:   q,
			OutputA:    dictA[q],
			OutputB:    contentB,
			ModelAName: SchemeAName,
			ModelBName: SchemeBName,
		})
	}
	return out
}

// Judge 对每个对比项请裁判判定胜负，失败的项被丢弃
func Judge(ctx context.Context, j *scorer.PairJudge, pairs []dm.ComparisonPair) []dm.JudgedPair {
	out := make([]dm.JudgedPair, 0, len(pairs))
	for i, p := range pairs {
		if ctx.Err() != nil {
			logger.Log.Warnf("任务已取消，剩余 %d 条未判定", len(pairs)-i)
			break
		}
		v, err := j.Compare(ctx, p.Question, p.OutputA, p.OutputB)
		if err != nil {
			logger.Log.Errorf("[%d/%d] 裁判失败 [%s]: %v", i+1, len(pairs), textutil.Preview(p.Question, previewRunes), err)
			continue
		}
		logger.Log.Infof("[%d/%d] 胜者: %s", i+1, len(pairs), v.Winner)
		out = append(out, dm.JudgedPair{ComparisonPair: p, Verdict: v})
	}
	return out
}

// Winners 取胜者的思维链和回答，平局不导出
func Winners(judged []dm.JudgedPair) []dm.TrainingSample {
	var out []dm.TrainingSample
	for _, p := range judged {
		var name, cot, answer string
		switch p.Verdict.Winner {
		case dm.WinnerA:
			name, cot, answer = p.ModelAName, p.ModelACoT, firstNonEmpty(p.ModelAAnswer, p.OutputA)
		case dm.WinnerB:
			name, cot, answer = p.ModelBName, p.ModelBCoT, firstNonEmpty(p.ModelBAnswer, p.OutputB)
		default:
			continue
		}
		out = append(out, dm.TrainingSample{
			Question:    p.Question,
			CoT:         cot,
			Answer:      answer,
			SourceModel: name,
			Verdict:     p.Verdict,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// TopOptions 高分对话导出条件
type TopOptions struct {
	MinScore float64
	// TopK 大于 0 时只保留分数最高的前 K 条
	TopK      int
	Segmenter *segment.Segmenter
}

// TopDialogues 把得分不低于 MinScore 的对话转换为多轮训练样本，按分数从高到低排列
func TopDialogues(dialogues []dm.ScoredDialogue, opts TopOptions) []dm.ChatSample {
	seg := opts.Segmenter
	if seg == nil {
		seg = segment.Default()
	}

	var out []dm.ChatSample
	for i := range dialogues {
		d := &dialogues[i]
		if d.Score() < opts.MinScore {
			continue
		}
		turns := seg.Segment(d.DialogueContent)
		if len(turns) == 0 {
			continue
		}
		msgs := make([]dm.ChatMessage, 0, 2*len(turns))
		for _, t := range turns {
			msgs = append(msgs,
				dm.ChatMessage{Role: roleUser, Content: t.User},
				dm.ChatMessage{Role: roleAssistant, Content: t.Companion},
			)
		}
		out = append(out, dm.ChatSample{
			Question: d.Question,
			Score:    d.Score(),
			Source:   firstNonEmpty(d.Model, d.SchemeType),
			Messages: msgs,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}
