package scorer

import "strings"

// 系统提示词
const (
	TurnSystem     = "You are a critical dialogue quality evaluator."
	HolisticSystem = "You are a strict dialogue judge."
	PairSystem     = "You are a fair child psychology expert judging two companion replies."
	CritiqueSystem = "You are a strict child psychology expert. Be critical."
)

// FirstTurnMarker 第一轮没有上下文时的占位
const FirstTurnMarker = "(这是对话的第一句)"

// NoCompetitor 单项评审时 B 侧的占位
const NoCompetitor = "（无对比项，请作为专家对模型A进行严格的单项评审，指出不足之处）"

const turnCriteria = `
你是一个严格的对话质量打分员。请对【AiMe】的回复进行打分 (0-10分)。

【评分标准】
- **10分 (完美)**：回复极具共情力，逻辑清晰，且巧妙地引导了话题或解决了用户的潜在情绪。
- **8-9分 (优秀)**：回复自然得体，人设保持良好，无明显瑕疵。
- **6-7分 (合格)**：回复中规中矩，能接上话，但缺乏亮点或略显机械。
- **4-5分 (平庸)**：回复有“AI味”，说教感强，或者逻辑有小漏洞。
- **0-3分 (差劲)**：完全答非所问，逻辑混乱，或者人设崩塌（如突然变成了冷漠的机器）。

【当前对话上下文】
{context}

【用户 User 说】
{user}

【模型 AiMe 回复】
{aime}

请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{"score": 8, "analysis": "对该轮对话质量的简要分析"}
score 为 0-10 的整数。`

const holisticCriteria = `
你是一名资深的对话系统评估专家。请阅读以下【完整的对话记录】，并对其质量进行整体打分 (0-10分)。

【对话背景】
用户 (User) 是一个有情绪困扰的孩子。
AiMe 是一个温柔的陪伴机器人，任务是安抚并引导孩子。

【评分维度】
1. **真实感 (Realism)**：对话是否流畅自然？User 的反应是否真实？
2. **人设一致性 (Persona)**：AiMe 是否始终保持温柔、耐心？
3. **引导效果 (Effectiveness)**：AiMe 是否成功接住了孩子的情绪？

【评分标准】
- **9-10分**：卓越，像真实的人类对话，逻辑连贯，完美安抚了孩子。
- **7-8分**：良好，流畅自然，人设稳得住。
- **5-6分**：及格，能看懂，但"AI味"重。
- **0-4分**：差劲，逻辑混乱或人设崩塌。

【待评估的完整对话】
{dialogue}

请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{"score": 8, "analysis": "简要分析对话的优缺点"}
score 为 0-10 的整数。`

const pairCriteria = `
你是一名儿童心理学专家，正在评审两个陪伴机器人对同一个孩子的回复。

【孩子的话】
{question}

【模型 A 的输出】
{output_a}

【模型 B 的输出】
{output_b}

【评审维度】
1. 情绪共情：是否接纳了孩子的情绪，语气是否温暖。
2. 引导与安全：回复是否有趣、安全、符合儿童心理，是否给出了选择而不是命令。

请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{
	"accuracy_analysis": "情绪共情分析",
	"reasoning_analysis": "引导与安全分析",
	"reason": "综合判定理由",
	"winner": "model_a / model_b / tie 三选一"
}`

// TurnPrompt 单轮打分提示词，空上下文替换为第一句占位
func TurnPrompt(context, user, companion string) string {
	if context == "" {
		context = FirstTurnMarker
	}
	return strings.NewReplacer(
		"{context}", context,
		"{user}", user,
		"{aime}", companion,
	).Replace(turnCriteria)
}

// HolisticPrompt 整段对话打分提示词
func HolisticPrompt(dialogue string) string {
	return strings.Replace(holisticCriteria, "{dialogue}", dialogue, 1)
}

// PairPrompt 两两对比提示词
func PairPrompt(question, outputA, outputB string) string {
	return strings.NewReplacer(
		"{question}", question,
		"{output_a}", outputA,
		"{output_b}", outputB,
	).Replace(pairCriteria)
}
