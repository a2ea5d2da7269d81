package textutil

import (
	"regexp"
	"strings"
)

var (
	cotPattern    = regexp.MustCompile(`(?s)CoT:(.*?)Answer:`)
	answerPattern = regexp.MustCompile(`(?s)Answer:(.*)`)

	cleaner = strings.NewReplacer(
		"\u0000", "",
		"\r", " ",
		"\t", " ",
		"ï¿¼", "",
	)
)

// CleanText 去掉 NUL、制表符、回车以及常见的乱码占位符
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(cleaner.Replace(text))
}

// ExtractCoTAnswer 从 "CoT: ... Answer: ..." 格式的纯文本中拆出思维链和答案
func ExtractCoTAnswer(text string) (cot, answer string) {
	if text == "" {
		return "", ""
	}
	if m := cotPattern.FindStringSubmatch(text); m != nil {
		cot = strings.TrimSpace(m[1])
	}
	if m := answerPattern.FindStringSubmatch(text); m != nil {
		answer = strings.TrimSpace(m[1])
	}
	return cot, answer
}

// StripCodeFence 去掉模型输出外层的 ```json 代码块标记
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Preview 截取前 n 个字符用于日志
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
