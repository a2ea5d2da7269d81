package storage

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "你好", sanitize("你\x00好"))
	assert.Equal(t, "ab", sanitize("a\xffb"))
	assert.Equal(t, "正常文本", sanitize("正常文本"))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "aime"})
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=aime sslmode=disable", dsn)
}

func TestSaveRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := &Storage{db: db}

	avg := 7.5
	summary := dm.NewCorpusSummary(map[string]float64{"a": 7.5})
	summary.Mode = dm.ModeTurns
	summary.Groups = []dm.GroupStats{{Group: "a", Total: 1, Scored: 1, Aggregate: 7.5}}
	groups := map[string][]dm.ScoredDialogue{
		"a": {{
			DialogueRecord: dm.DialogueRecord{Question: "我不想待在这\x00", DialogueContent: "【User】: ..."},
			AvgScore:       &avg,
			TurnDetails: []dm.ScoredTurn{
				{Turn: dm.Turn{Index: 1, User: "u1", Companion: "a1"}, Verdict: dm.Verdict{Score: 8, Analysis: "好"}},
				{Turn: dm.Turn{Index: 2, User: "u2", Companion: "a2"}, Verdict: dm.Verdict{Score: 7, Analysis: "还行"}},
			},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scoring_runs")).
		WithArgs("turns", "a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_scores")).
		WithArgs(11, "a", 1, 1, 0, 7.5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scored_dialogues")).
		WithArgs(11, "a", "我不想待在这", "", "", 7.5, "", "【User】: ...").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scored_turns")).
		WithArgs(21, 1, "u1", "a1", 8, "好").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scored_turns")).
		WithArgs(21, 2, "u2", "a2", 7, "还行").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), summary, groups))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := &Storage{db: db}

	summary := &dm.CorpusSummary{Mode: dm.ModeHolistic}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scoring_runs")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = s.SaveRun(context.Background(), summary, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
