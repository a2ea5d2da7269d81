package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/config"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// Storage 打分结果归档到 PostgreSQL
type Storage struct {
	db *sql.DB
}

// DSN 拼接 lib/pq 连接串
func DSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

// NewStorage 连接数据库并建表
func NewStorage(cfg config.DBConfig) (*Storage, error) {
	db, err := sql.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭连接
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scoring_runs (
			id SERIAL PRIMARY KEY,
			mode TEXT NOT NULL,
			best_group TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS group_scores (
			id SERIAL PRIMARY KEY,
			run_id INTEGER REFERENCES scoring_runs(id),
			group_name TEXT NOT NULL,
			total INTEGER,
			scored INTEGER,
			skipped INTEGER,
			aggregate DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS scored_dialogues (
			id SERIAL PRIMARY KEY,
			run_id INTEGER REFERENCES scoring_runs(id),
			group_name TEXT NOT NULL,
			question TEXT,
			model TEXT,
			scheme_type TEXT,
			score DOUBLE PRECISION,
			analysis TEXT,
			dialogue_content TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS scored_turns (
			id SERIAL PRIMARY KEY,
			dialogue_id INTEGER REFERENCES scored_dialogues(id),
			turn_index INTEGER,
			user_text TEXT,
			aime_text TEXT,
			score INTEGER,
			analysis TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}

// SaveRun 在一个事务里保存一次打分运行：汇总、各组统计、每条对话及其轮次
func (s *Storage) SaveRun(ctx context.Context, summary *dm.CorpusSummary, groups map[string][]dm.ScoredDialogue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var runID int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO scoring_runs (mode, best_group)
		VALUES ($1, $2)
		RETURNING id`,
		string(summary.Mode), summary.Best).Scan(&runID)
	if err != nil {
		return fmt.Errorf("failed to insert scoring run: %w", err)
	}

	for _, g := range summary.Groups {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_scores (run_id, group_name, total, scored, skipped, aggregate)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, g.Group, g.Total, g.Scored, g.Skipped, g.Aggregate)
		if err != nil {
			return fmt.Errorf("failed to insert group score: %w", err)
		}

		for _, d := range groups[g.Group] {
			if err := saveDialogue(ctx, tx, runID, g.Group, d); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func saveDialogue(ctx context.Context, tx *sql.Tx, runID int, group string, d dm.ScoredDialogue) error {
	var dialogueID int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO scored_dialogues (run_id, group_name, question, model, scheme_type, score, analysis, dialogue_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		runID, group, sanitize(d.Question), d.Model, d.SchemeType, d.Score(),
		sanitize(d.HolisticAnalysis), sanitize(d.DialogueContent)).Scan(&dialogueID)
	if err != nil {
		return fmt.Errorf("failed to insert scored dialogue: %w", err)
	}

	for _, t := range d.TurnDetails {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scored_turns (dialogue_id, turn_index, user_text, aime_text, score, analysis)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			dialogueID, t.Index, sanitize(t.User), sanitize(t.Companion), t.Score, sanitize(t.Analysis))
		if err != nil {
			return fmt.Errorf("failed to insert scored turn: %w", err)
		}
	}
	return nil
}

// sanitize 移除无效的 UTF-8 字符和 NULL 字节，PostgreSQL 文本字段不支持这两者
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
