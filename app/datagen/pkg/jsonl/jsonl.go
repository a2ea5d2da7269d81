// Package jsonl 读写按行分隔的 JSON 数据文件
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/logger"
)

// 单行上限，整段对话会比较长
var maxLineSize = 16 << 20

// Read 读取 jsonl 文件。文件不存在返回空切片，无法解析或超长的行会被跳过
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warnf("文件不存在: %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out []T
	r := bufio.NewReader(f)
	for line := 1; ; line++ {
		raw, tooLong, err := readLine(r)
		if err != nil && !errors.Is(err, io.EOF) {
			return out, fmt.Errorf("read %s: %w", path, err)
		}
		eof := err != nil
		if tooLong {
			logger.Log.Warnf("跳过超长行 [%s] 第 %d 行: 超过 %d 字节", filepath.Base(path), line, maxLineSize)
		} else if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			var item T
			if err := json.Unmarshal(raw, &item); err != nil {
				logger.Log.Warnf("跳过无效 JSON [%s] 第 %d 行: %v", filepath.Base(path), line, err)
			} else {
				out = append(out, item)
			}
		}
		if eof {
			return out, nil
		}
	}
}

// readLine 读取一行（含换行符）。超过 maxLineSize 的行只读完不保留
func readLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		var chunk []byte
		chunk, err = r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineSize {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, tooLong, err
	}
}

// Write 覆盖写入 jsonl 文件，自动创建父目录
func Write[T any](path string, items []T) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("write record %d to %s: %w", i+1, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	logger.Log.Infof("写入完成：%s（共 %d 条）", path, len(items))
	return nil
}

// LoadQuestions 读取问题列表，每行一个问题，空行忽略
func LoadQuestions(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Log.Warnf("问题文件不存在: %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var questions []string
	for _, line := range strings.Split(string(data), "\n") {
		if q := strings.TrimSpace(line); q != "" {
			questions = append(questions, q)
		}
	}
	return questions, nil
}
