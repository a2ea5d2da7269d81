package server

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/engine"
	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/jsonl"
	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// ScoreService 读取打分目录下的结果
type ScoreService struct {
	dir string
	log *log.Helper
}

// NewScoreService 创建服务，dir 为打分结果所在目录
func NewScoreService(dir string, logger log.Logger) *ScoreService {
	return &ScoreService{dir: dir, log: log.NewHelper(logger)}
}

// ParseMode 空值默认为逐轮模式
func ParseMode(s string) (dm.ScoreMode, error) {
	if s == "" {
		return dm.ModeTurns, nil
	}
	mode, err := dm.ParseScoreMode(s)
	if err != nil {
		return "", kerrors.BadRequest("INVALID_MODE", err.Error())
	}
	return mode, nil
}

// Summary 根据当前的打分结果重新计算汇总
func (s *ScoreService) Summary(mode dm.ScoreMode) (*dm.CorpusSummary, error) {
	groups, err := engine.LoadScored(s.dir, mode)
	if err != nil {
		s.log.Errorf("load scored groups: %v", err)
		return nil, kerrors.InternalServer("LOAD_FAILED", "failed to load scores")
	}
	return engine.Summarize(mode, groups), nil
}

// Group 单个语料组的打分明细
func (s *ScoreService) Group(mode dm.ScoreMode, name string) ([]dm.ScoredDialogue, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return nil, kerrors.BadRequest("INVALID_GROUP", "invalid group name")
	}
	path := filepath.Join(s.dir, engine.OutputFile(mode, name))
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, kerrors.NotFound("GROUP_NOT_FOUND", "group "+name+" not found")
	}
	items, err := jsonl.Read[dm.ScoredDialogue](path)
	if err != nil {
		s.log.Errorf("read group %s: %v", name, err)
		return nil, kerrors.InternalServer("LOAD_FAILED", "failed to load group")
	}
	if items == nil {
		items = []dm.ScoredDialogue{}
	}
	return items, nil
}
