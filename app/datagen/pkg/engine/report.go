package engine

import (
	"fmt"
	"html/template"
	"io"
	"os"

	dm "github.com/iWorld-y/aime_datagen/app/datagen/pkg/model"
)

// reportRow 报告中的一行
type reportRow struct {
	Rank int
	dm.GroupStats
	Best bool
}

// ReportData 用于模板渲染的数据
type ReportData struct {
	Mode  dm.ScoreMode
	Best  string
	Count int
	Rows  []reportRow
}

const reportTpl = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AiMe 对话数据 | 打分报告</title>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 32px; }
        .sub { color: var(--text-secondary); }
        table { width: 100%; border-collapse: collapse; background: var(--card-bg); border-radius: 12px; overflow: hidden; }
        th, td { padding: 12px 16px; border-bottom: 1px solid var(--border-color); text-align: left; }
        th { background: #f1f5f9; color: #475569; }
        tr.best { background: #f0fdf4; }
        .bar { height: 8px; background: var(--primary-color); border-radius: 4px; }
        .score-high { color: #166534; font-weight: bold; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>对话质量打分报告</h1>
            <div class="sub">模式: {{ .Mode }} • 共 {{ .Count }} 个语料组{{ if .Best }} • 最高分: {{ .Best }}{{ end }}</div>
        </header>
        <table>
            <tr><th>#</th><th>语料组</th><th>总数</th><th>已打分</th><th>跳过</th><th>平均分</th><th></th></tr>
            {{ range .Rows }}
            <tr{{ if .Best }} class="best"{{ end }}>
                <td>{{ .Rank }}</td>
                <td><a href="/api/groups/{{ .Group }}">{{ .Group }}</a></td>
                <td>{{ .Total }}</td>
                <td>{{ .Scored }}</td>
                <td>{{ .Skipped }}</td>
                <td{{ if ge .Aggregate 8.0 }} class="score-high"{{ end }}>{{ printf "%.2f" .Aggregate }}</td>
                <td style="width: 30%"><div class="bar" style="width: {{ barWidth .Aggregate }}%"></div></td>
            </tr>
            {{ end }}
        </table>
    </div>
</body>
</html>
`

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"barWidth": func(score float64) string {
		return fmt.Sprintf("%.0f", score/float64(dm.MaxScore)*100)
	},
}).Parse(reportTpl))

// NewReportData 按排名顺序整理每个语料组的统计
func NewReportData(s *dm.CorpusSummary) ReportData {
	byGroup := make(map[string]dm.GroupStats, len(s.Groups))
	for _, g := range s.Groups {
		byGroup[g.Group] = g
	}
	data := ReportData{Mode: s.Mode, Best: s.Best, Count: len(s.Ranking)}
	for i, r := range s.Ranking {
		st, ok := byGroup[r.Group]
		if !ok {
			st = dm.GroupStats{Group: r.Group, Aggregate: r.Score}
		}
		data.Rows = append(data.Rows, reportRow{Rank: i + 1, GroupStats: st, Best: r.Group == s.Best})
	}
	return data
}

// RenderReport 渲染 HTML 报告
func RenderReport(w io.Writer, s *dm.CorpusSummary) error {
	return reportTemplate.Execute(w, NewReportData(s))
}

// WriteReport 渲染报告并写入文件
func WriteReport(path string, s *dm.CorpusSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := RenderReport(f, s); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
