// =============================================================================
// 📦 测试数据工厂 - 代码开发团队回复
// =============================================================================
package fixtures

import (
	"github.com/BaSui01/codecrew/llm"
	"github.com/BaSui01/codecrew/testutil/mocks"
)

// 团队脚本中的代码片段
const (
	DraftCode     = "def fib(n):\n    return n"
	RevisedCode   = "def fib(n, memo=None):\n    pass"
	FinalCode     = "def fib(n):\n    \"\"\"Fibonacci.\"\"\""
	FirstReview   = "Overall Assessment: needs memoization. REVIEW_COMPLETE"
	SecondReview  = "Second review: add docstring."
	TeamSentinel  = "WORKFLOW_COMPLETE"
	TeamTurns     = 6
	TokensPerTurn = 15
)

// CodeTeamReplies 按轮次返回默认三人团队的回复：
// 优化者在第二次发言（第 6 条产出消息）时给出结束标记。
func CodeTeamReplies(call int, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	usage := llm.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: TokensPerTurn}
	switch call % TeamTurns {
	case 0:
		return mocks.Reply("Here is my draft:\n```python\n"+DraftCode+"\n```\nCODE_WRITTEN", usage), nil
	case 1:
		return mocks.Reply(FirstReview, usage), nil
	case 2:
		return mocks.Reply("```python\n"+RevisedCode+"\n```", usage), nil
	case 3:
		return mocks.Reply("Looks fine now.", usage), nil
	case 4:
		return mocks.Reply(SecondReview, usage), nil
	default:
		return mocks.Reply("```python\n"+FinalCode+"\n```\n"+TeamSentinel, usage), nil
	}
}

// CodeTeamProvider 返回按 CodeTeamReplies 回复的 ScriptedProvider
func CodeTeamProvider() *mocks.ScriptedProvider {
	return mocks.NewScriptedProvider().WithFunc(CodeTeamReplies)
}
