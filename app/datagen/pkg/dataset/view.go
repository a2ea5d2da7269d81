package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// View 逐条缩进打印 jsonl 文件，中文原样输出
func View(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(w, "正在查看文件: %s\n", path)
	sep := strings.Repeat("-", 60)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "    "); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fmt.Fprintf(w, "第 %d 条数据:\n%s\n%s\n", line, buf.String(), sep)
	}
	return sc.Err()
}
