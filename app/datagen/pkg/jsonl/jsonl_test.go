package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Question string `json:"question"`
	Score    int    `json:"score"`
}

func TestRead_MissingFileIsEmpty(t *testing.T) {
	out, err := Read[record](filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	content := `{"question":"一","score":1}
not json

{"question":"二","score":2}
{"question":
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := Read[record](path)
	require.NoError(t, err)
	assert.Equal(t, []record{{"一", 1}, {"二", 2}}, out)
}

func TestRead_SkipsOversizedLines(t *testing.T) {
	saved := maxLineSize
	maxLineSize = 8 << 10
	t.Cleanup(func() { maxLineSize = saved })

	path := filepath.Join(t.TempDir(), "data.jsonl")
	long := `{"question":"` + strings.Repeat("长", 4<<10) + `","score":9}`
	content := `{"question":"一","score":1}` + "\n" + long + "\n" + `{"question":"二","score":2}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := Read[record](path)
	require.NoError(t, err)
	assert.Equal(t, []record{{"一", 1}, {"二", 2}}, out)
}

func TestWrite_OverwritesAndCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.jsonl")

	require.NoError(t, Write(path, []record{{"first", 1}, {"second", 2}}))
	require.NoError(t, Write(path, []record{{"<孩子>", 3}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"question\":\"<孩子>\",\"score\":3}\n", string(data))

	back, err := Read[record](path)
	require.NoError(t, err)
	assert.Equal(t, []record{{"<孩子>", 3}}, back)
}

func TestWrite_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, Write[record](path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLoadQuestions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "questions.txt")
	require.NoError(t, os.WriteFile(path, []byte("  我不想待在这  \n\n我害怕打雷\r\n"), 0o644))

	qs, err := LoadQuestions(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"我不想待在这", "我害怕打雷"}, qs)

	none, err := LoadQuestions(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Empty(t, none)
}
