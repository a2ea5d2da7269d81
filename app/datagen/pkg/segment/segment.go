// Package segment 把一整段对话文本切分成 (孩子, 陪伴机器人) 的轮次。
//
// 支持两种标签写法，按顺序尝试，第一种有结果就不再尝试第二种：
//
//	【User】: ...      plain:  User: ...
//	【AiMe】: ...              AiMe: ...
//
// 结尾没有得到回复的孩子发言不会成为一轮，直接丢弃。
package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// 默认角色名
const (
	DefaultUserRole      = "User"
	DefaultCompanionRole = "AiMe"
)

// 空白字符，包括全角空格等 Unicode 空白
const ws = `[\s\v\p{Z}]`

// convention 一种标签写法
type convention struct {
	name      string
	userLabel string
	replySep  *regexp.Regexp
	nextTurn  string
}

// parse 非贪婪地匹配 "用户标签 ... 换行 回复标签 ..."，回复一直延伸到下一个用户标签或文本结尾
func (c *convention) parse(text string) []model.Turn {
	var turns []model.Turn
	pos := 0
	for pos < len(text) {
		i := strings.Index(text[pos:], c.userLabel)
		if i < 0 {
			break
		}
		start := pos + i + len(c.userLabel)

		loc := c.replySep.FindStringIndex(text[start:])
		if loc == nil {
			// 后面再也没有回复标签，剩下的孩子发言都不可能成对
			break
		}
		user := text[start : start+loc[0]]

		replyStart := start + loc[1]
		rest := text[replyStart:]
		end := len(rest)
		if j := strings.Index(rest, c.nextTurn); j >= 0 {
			end = j
		}

		turns = append(turns, model.Turn{
			Index:     len(turns) + 1,
			User:      strings.TrimSpace(user),
			Companion: strings.TrimSpace(rest[:end]),
		})
		pos = replyStart + end
	}
	return turns
}

// Segmenter 按固定顺序尝试各种标签写法
type Segmenter struct {
	userRole      string
	companionRole string
	conventions   []*convention
}

// New 创建指定角色名的切分器
func New(userRole, companionRole string) *Segmenter {
	c := regexp.QuoteMeta(companionRole)
	return &Segmenter{
		userRole:      userRole,
		companionRole: companionRole,
		conventions: []*convention{
			{
				name:      "bracketed",
				userLabel: "【" + userRole + "】:",
				replySep:  regexp.MustCompile(ws + `*\n` + ws + `*【` + c + `】:`),
				nextTurn:  "\n【" + userRole + "】",
			},
			{
				name:      "plain",
				userLabel: userRole + ":",
				replySep:  regexp.MustCompile(ws + `*\n` + ws + `*` + c + `:`),
				nextTurn:  "\n" + userRole,
			},
		},
	}
}

var defaultSegmenter = New(DefaultUserRole, DefaultCompanionRole)

// Segment 使用默认角色名切分
func Segment(transcript string) []model.Turn {
	return defaultSegmenter.Segment(transcript)
}

// Segment 切分对话。空切片表示无法解析，这不是错误
func (s *Segmenter) Segment(transcript string) []model.Turn {
	for _, c := range s.conventions {
		if turns := c.parse(transcript); len(turns) > 0 {
			return turns
		}
	}
	return nil
}

// Context 拼接 upto 之前所有轮次作为打分上下文，upto 为 0 起始的下标
func (s *Segmenter) Context(turns []model.Turn, upto int) string {
	if upto > len(turns) {
		upto = len(turns)
	}
	var sb strings.Builder
	for _, t := range turns[:upto] {
		fmt.Fprintf(&sb, "%s: %s\n%s: %s\n", s.userRole, t.User, s.companionRole, t.Companion)
	}
	return sb.String()
}

// Render 按带方括号的写法输出对话文本
func (s *Segmenter) Render(turns []model.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		s.WriteLine(&sb, s.userRole, t.User)
		s.WriteLine(&sb, s.companionRole, t.Companion)
	}
	return sb.String()
}

// WriteLine 写入一行 "【角色】: 内容"
func (s *Segmenter) WriteLine(sb *strings.Builder, role, content string) {
	fmt.Fprintf(sb, "【%s】: %s\n", role, content)
}

// UserRole 孩子一方的角色名
func (s *Segmenter) UserRole() string { return s.userRole }

// CompanionRole 陪伴机器人一方的角色名
func (s *Segmenter) CompanionRole() string { return s.companionRole }

// Default 返回默认角色名的切分器
func Default() *Segmenter { return defaultSegmenter }
