package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/judge/judgetest"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/retry"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/scorer"
)

const scenario = "【User】: 我不想待在这\n【AiMe】: 好的，我们可以去阳台走走，你愿意吗？\n【User】: 好吧\n【AiMe】: 那我们走吧！"

func newEngine(fake *judgetest.Model, workers int) *Engine {
	c := judge.New(fake, judge.Options{Retry: retry.Policy{Attempts: 2}})
	return New(scorer.NewTurnScorer(c, scorer.Options{}), scorer.NewHolisticScorer(c, scorer.Options{}), Options{Workers: workers})
}

func verdictJSON(score int, analysis string) string {
	return fmt.Sprintf(`{"score": %d, "analysis": %q}`, score, analysis)
}

func TestScoreDialogue(t *testing.T) {
	fake := judgetest.Sequence(verdictJSON(8, "自然"), verdictJSON(7, "合格"))
	e := newEngine(fake, 1)

	got, err := e.ScoreDialogue(context.Background(), dm.DialogueRecord{Question: "我不想待在这", DialogueContent: scenario})
	require.NoError(t, err)
	require.NotNil(t, got.AvgScore)
	assert.Equal(t, 7.5, *got.AvgScore)
	require.Len(t, got.TurnDetails, 2)
	assert.Equal(t, dm.ScoredTurn{
		Turn:    dm.Turn{Index: 1, User: "我不想待在这", Companion: "好的，我们可以去阳台走走，你愿意吗？"},
		Verdict: dm.Verdict{Score: 8, Analysis: "自然"},
	}, got.TurnDetails[0])
	assert.Equal(t, dm.Turn{Index: 2, User: "好吧", Companion: "那我们走吧！"}, got.TurnDetails[1].Turn)
	assert.Nil(t, got.HolisticScore)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Prompt(), scorer.FirstTurnMarker)
	assert.Contains(t, calls[1].Prompt(), "User: 我不想待在这\nAiMe: 好的，我们可以去阳台走走，你愿意吗？\n")
}

func TestScoreDialogue_JudgeAlwaysFails(t *testing.T) {
	fake := judgetest.Failing(errors.New("dial tcp: connection refused"))
	e := newEngine(fake, 1)

	got, err := e.ScoreDialogue(context.Background(), dm.DialogueRecord{DialogueContent: scenario})
	require.NoError(t, err)
	assert.Equal(t, 0.0, *got.AvgScore)
	for _, turn := range got.TurnDetails {
		assert.Equal(t, 0, turn.Score)
		assert.True(t, strings.HasPrefix(turn.Analysis, scorer.ErrorPrefix))
	}
	// 两轮，每轮两次尝试
	assert.Len(t, fake.Calls(), 4)
}

func TestScoreDialogue_Skips(t *testing.T) {
	fake := judgetest.Static(verdictJSON(9, "x"))
	e := newEngine(fake, 1)

	_, err := e.ScoreDialogue(context.Background(), dm.DialogueRecord{DialogueContent: ""})
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = e.ScoreDialogue(context.Background(), dm.DialogueRecord{DialogueContent: "【User】: 嗨"})
	assert.ErrorIs(t, err, ErrTooShort)

	_, err = e.ScoreDialogue(context.Background(), dm.DialogueRecord{DialogueContent: "【User】: 今天下雨了，我不想出门"})
	assert.ErrorIs(t, err, ErrUnparseable)

	_, err = e.ScoreDialogueHolistic(context.Background(), dm.DialogueRecord{DialogueContent: "太短了"})
	assert.ErrorIs(t, err, ErrTooShort)

	assert.Empty(t, fake.Calls())
}

func TestScoreDialogueHolistic(t *testing.T) {
	fake := judgetest.Static(verdictJSON(9, "卓越"))
	e := newEngine(fake, 1)

	got, err := e.ScoreDialogueHolistic(context.Background(), dm.DialogueRecord{Question: "q", DialogueContent: scenario})
	require.NoError(t, err)
	require.NotNil(t, got.HolisticScore)
	assert.Equal(t, 9, *got.HolisticScore)
	assert.Equal(t, "卓越", got.HolisticAnalysis)
	assert.Nil(t, got.AvgScore)
	assert.Empty(t, got.TurnDetails)
	assert.Equal(t, dm.ModeHolistic, got.Mode())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, scorer.HolisticSystem, calls[0].System())
}

var indexPattern = regexp.MustCompile(`第(\d+)个问题`)

func indexedJudge() *judgetest.Model {
	return &judgetest.Model{Respond: func(call judgetest.Call) (string, error) {
		m := indexPattern.FindStringSubmatch(call.Prompt())
		if m == nil {
			return "", errors.New("no index in prompt")
		}
		i, _ := strconv.Atoi(m[1])
		return verdictJSON(i%10, "ok"), nil
	}}
}

func indexedRecords(n int) []dm.DialogueRecord {
	records := make([]dm.DialogueRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, dm.DialogueRecord{
			Question:        strconv.Itoa(i),
			DialogueContent: fmt.Sprintf("【User】: 第%d个问题\n【AiMe】: 好的，我在听。", i),
		})
	}
	return records
}

func TestScoreRecords_ParallelPreservesOrder(t *testing.T) {
	records := indexedRecords(8)
	// 中间插入一条会被跳过的对话
	records = append(records[:3], append([]dm.DialogueRecord{{Question: "short", DialogueContent: "嗯"}}, records[3:]...)...)

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := newEngine(indexedJudge(), workers)
			out, stats := e.ScoreRecords(context.Background(), records, dm.ModeHolistic)

			require.Len(t, out, 8)
			for i, d := range out {
				assert.Equal(t, strconv.Itoa(i), d.Question)
				assert.Equal(t, i, *d.HolisticScore)
			}
			assert.Equal(t, dm.GroupStats{Total: 9, Scored: 8, Skipped: 1, Aggregate: 3.5}, stats)
		})
	}
}

func TestScoreRecords_FailureDoesNotAffectSiblings(t *testing.T) {
	fake := &judgetest.Model{Respond: func(call judgetest.Call) (string, error) {
		if strings.Contains(call.Prompt(), "第1个问题") {
			return "", errors.New("timeout")
		}
		return verdictJSON(6, "ok"), nil
	}}
	e := newEngine(fake, 3)

	out, stats := e.ScoreRecords(context.Background(), indexedRecords(3), dm.ModeTurns)
	require.Len(t, out, 3)
	assert.Equal(t, 6.0, *out[0].AvgScore)
	assert.Equal(t, 0.0, *out[1].AvgScore)
	assert.Equal(t, 6.0, *out[2].AvgScore)
	assert.Equal(t, 4.0, stats.Aggregate)
}

func TestScoreRecords_Empty(t *testing.T) {
	out, stats := newEngine(judgetest.Static(""), 2).ScoreRecords(context.Background(), nil, dm.ModeTurns)
	assert.Empty(t, out)
	assert.Equal(t, dm.GroupStats{}, stats)
}

type fakeStore struct {
	mu      sync.Mutex
	summary *dm.CorpusSummary
	groups  map[string][]dm.ScoredDialogue
}

func (s *fakeStore) SaveRun(_ context.Context, summary *dm.CorpusSummary, groups map[string][]dm.ScoredDialogue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	s.groups = groups
	return nil
}

func groupJudge() *judgetest.Model {
	return &judgetest.Model{Respond: func(call judgetest.Call) (string, error) {
		if strings.Contains(call.Prompt(), "A组") {
			return verdictJSON(9, "优秀"), nil
		}
		return verdictJSON(6, "合格"), nil
	}}
}

func writeGroups(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, jsonl.Write(filepath.Join(dir, "data_a.jsonl"), []dm.DialogueRecord{
		{Question: "q1", SchemeType: "batch", DialogueContent: "【User】: A组 我不想待在这\n【AiMe】: 好的，我们去阳台走走？\n"},
		{Question: "q2", SchemeType: "batch", DialogueContent: "【User】: A组 我害怕打雷\n【AiMe】: 我陪着你，我们一起数闪电。\n"},
	}))
	require.NoError(t, jsonl.Write(filepath.Join(dir, "data_b.jsonl"), []dm.DialogueRecord{
		{Question: "q1", SchemeType: "self_play", DialogueContent: "【User】: B组 我不想待在这\n【AiMe】: 那就待一会儿吧。\n"},
		{Question: "q2", DialogueContent: "无法解析的一段很长的文本内容"},
	}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data_empty.jsonl"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.jsonl"), []byte(`{"question":"x"}`), 0o644))
}

func TestRunGroups(t *testing.T) {
	raw, out := t.TempDir(), t.TempDir()
	writeGroups(t, raw)

	store := &fakeStore{}
	e := newEngine(groupJudge(), 1)
	e.store = store

	var stdout bytes.Buffer
	summary, err := e.RunGroups(context.Background(), RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeTurns, Stdout: &stdout})
	require.NoError(t, err)

	assert.Equal(t, "a", summary.Best)
	assert.Equal(t, []dm.GroupScore{{Group: "a", Score: 9}, {Group: "b", Score: 6}}, summary.Ranking)
	assert.Equal(t, []dm.GroupStats{
		{Group: "a", Total: 2, Scored: 2, Aggregate: 9},
		{Group: "b", Total: 2, Scored: 1, Skipped: 1, Aggregate: 6},
	}, summary.Groups)
	assert.Contains(t, stdout.String(), "最高分: a (9.00 分)")

	scoredA, err := jsonl.Read[dm.ScoredDialogue](filepath.Join(out, "score_a.jsonl"))
	require.NoError(t, err)
	require.Len(t, scoredA, 2)
	assert.Equal(t, "batch", scoredA[0].SchemeType)
	assert.Equal(t, 9.0, *scoredA[0].AvgScore)

	assert.FileExists(t, filepath.Join(out, "score_b.jsonl"))
	assert.NoFileExists(t, filepath.Join(out, "score_empty.jsonl"))
	assert.NoFileExists(t, filepath.Join(out, "score_other.jsonl"))

	saved, err := ReadSummary(filepath.Join(out, SummaryFile(dm.ModeTurns)))
	require.NoError(t, err)
	assert.Equal(t, summary.Ranking, saved.Ranking)

	report, err := os.ReadFile(filepath.Join(out, ReportFile(dm.ModeTurns)))
	require.NoError(t, err)
	assert.Contains(t, string(report), `<a href="/api/groups/a">a</a>`)

	require.NotNil(t, store.summary)
	assert.Len(t, store.groups["a"], 2)
}

func TestRunGroups_Holistic(t *testing.T) {
	raw, out := t.TempDir(), t.TempDir()
	writeGroups(t, raw)

	summary, err := newEngine(groupJudge(), 2).RunGroups(context.Background(), RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeHolistic, Stdout: &bytes.Buffer{}})
	require.NoError(t, err)

	// 整体模式不切分轮次，无法解析的文本也会被打分
	assert.Equal(t, 6.0, summary.Aggregates["b"])
	assert.FileExists(t, filepath.Join(out, "holistic_score_a.jsonl"))
	assert.FileExists(t, filepath.Join(out, "summary_holistic.json"))
}

func TestRunGroups_Idempotent(t *testing.T) {
	raw := t.TempDir()
	writeGroups(t, raw)

	run := func() map[string][]byte {
		out := t.TempDir()
		_, err := newEngine(groupJudge(), 2).RunGroups(context.Background(), RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeTurns, Stdout: &bytes.Buffer{}})
		require.NoError(t, err)

		files := map[string][]byte{}
		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(out, e.Name()))
			require.NoError(t, err)
			files[e.Name()] = data
		}
		return files
	}

	first, second := run(), run()
	assert.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestRunGroups_NoGroups(t *testing.T) {
	_, err := newEngine(judgetest.Static(""), 1).RunGroups(context.Background(), RunGroupsOptions{RawDir: t.TempDir(), OutDir: t.TempDir(), Mode: dm.ModeTurns})
	assert.ErrorIs(t, err, ErrNoGroups)
}

func TestGroupNaming(t *testing.T) {
	assert.Equal(t, "scheme_A", GroupName("outputs/raw/data_scheme_A.jsonl"))
	assert.Equal(t, "score_x.jsonl", OutputFile(dm.ModeTurns, "x"))
	assert.Equal(t, "holistic_score_x.jsonl", OutputFile(dm.ModeHolistic, "x"))
}

func TestRenderReport_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, dm.NewCorpusSummary(nil)))
	assert.Contains(t, buf.String(), "共 0 个语料组")
}

func TestLoadScoredAndSummarize(t *testing.T) {
	raw, out := t.TempDir(), t.TempDir()
	writeGroups(t, raw)
	e := newEngine(groupJudge(), 1)
	_, err := e.RunGroups(context.Background(), RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeTurns, Stdout: &bytes.Buffer{}})
	require.NoError(t, err)
	_, err = e.RunGroups(context.Background(), RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeHolistic, Stdout: &bytes.Buffer{}})
	require.NoError(t, err)

	groups, err := LoadScored(out, dm.ModeTurns)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Len(t, groups["b"], 1)

	s := Summarize(dm.ModeTurns, groups)
	assert.Equal(t, "a", s.Best)
	assert.Equal(t, []dm.GroupScore{{Group: "a", Score: 9}, {Group: "b", Score: 6}}, s.Ranking)
	assert.Equal(t, dm.GroupStats{Group: "b", Total: 1, Scored: 1, Aggregate: 6}, s.Groups[1])

	holistic, err := LoadScored(out, dm.ModeHolistic)
	require.NoError(t, err)
	assert.Len(t, holistic["b"], 2)
}

func TestScoredGroup(t *testing.T) {
	g, ok := ScoredGroup(dm.ModeTurns, "out/score_scheme_A.jsonl")
	assert.True(t, ok)
	assert.Equal(t, "scheme_A", g)

	g, ok = ScoredGroup(dm.ModeHolistic, "holistic_score_x.jsonl")
	assert.True(t, ok)
	assert.Equal(t, "x", g)

	_, ok = ScoredGroup(dm.ModeTurns, "summary_turns.json")
	assert.False(t, ok)
}

func TestRunGroups_CanceledKeepsPreviousResults(t *testing.T) {
	raw, out := t.TempDir(), t.TempDir()
	require.NoError(t, jsonl.Write(filepath.Join(raw, "data_a.jsonl"), []dm.DialogueRecord{
		{Question: "q1", DialogueContent: scenario},
	}))
	previous := []byte("{\"question\":\"q1\",\"dialogue_content\":\"x\",\"avg_score\":9}\n")
	require.NoError(t, os.WriteFile(filepath.Join(out, "score_a.jsonl"), previous, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 第一轮打分过程中收到中断
	fake := &judgetest.Model{Respond: func(judgetest.Call) (string, error) {
		cancel()
		return verdictJSON(9, "好"), nil
	}}

	var stdout bytes.Buffer
	_, err := newEngine(fake, 1).RunGroups(ctx, RunGroupsOptions{RawDir: raw, OutDir: out, Mode: dm.ModeTurns, Stdout: &stdout})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fake.Calls(), 1)

	data, err := os.ReadFile(filepath.Join(out, "score_a.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, previous, data)
	assert.NoFileExists(t, filepath.Join(out, SummaryFile(dm.ModeTurns)))
	assert.NoFileExists(t, filepath.Join(out, ReportFile(dm.ModeTurns)))
	assert.Empty(t, stdout.String())
}

func TestScoreDialogue_CanceledIsNotScored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := &judgetest.Model{Respond: func(judgetest.Call) (string, error) {
		cancel()
		return verdictJSON(9, "好"), nil
	}}
	e := newEngine(fake, 1)

	_, err := e.ScoreDialogue(ctx, dm.DialogueRecord{Question: "q", DialogueContent: scenario})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.ScoreDialogueHolistic(ctx, dm.DialogueRecord{Question: "q", DialogueContent: scenario})
	assert.ErrorIs(t, err, context.Canceled)

	out, stats := e.ScoreRecords(ctx, []dm.DialogueRecord{{Question: "q", DialogueContent: scenario}}, dm.ModeTurns)
	assert.Empty(t, out)
	assert.Equal(t, 1, stats.Skipped)
}
