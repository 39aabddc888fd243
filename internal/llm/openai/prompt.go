package openai

import (
	"fmt"
	"strings"

	"justicebench/internal/llm"
)

// Message represents an OpenAI chat message.
type Message struct {
	Role    string
	Content string
}

const (
	systemAnalyze  = "You are an experienced judge. Read the case and write the decision a court would reach, citing the legal basis."
	systemCompare  = "You compare two court decisions and describe where they agree and differ in outcome, legal basis and reasoning."
	systemQuestion = "You write exam questions about a legal case. Respond with JSON only: {\"questions\": [\"...\"]}."
	systemAnswer   = "You answer questions about a legal case. Respond with JSON only: {\"answer\": \"...\", \"reasoning\": \"...\"}."
	systemEvaluate = "You grade answers about a legal case. Respond with JSON only. Score each dimension from 0 to 4 and list errors by severity."
	systemMask     = "You redact personal information from legal documents. Replace names, ids, phone numbers, addresses and account numbers with placeholders. Return only the redacted text."
)

func analyzePrompt(input llm.AnalyzeInput) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Case: %s\n\n%s", input.CaseTitle, input.CaseText)
	if q := strings.TrimSpace(input.Question); q != "" {
		fmt.Fprintf(&b, "\n\nFocus on this question: %s", q)
	}
	return []Message{
		{Role: "system", Content: systemAnalyze},
		{Role: "user", Content: b.String()},
	}
}

func comparePrompt(input llm.CompareInput) []Message {
	return []Message{
		{Role: "system", Content: systemCompare},
		{Role: "user", Content: fmt.Sprintf("AI decision:\n%s\n\nJudge decision:\n%s", input.AIDecision, input.JudgeDecision)},
	}
}

func questionsPrompt(caseText string) []Message {
	return []Message{
		{Role: "system", Content: systemQuestion},
		{Role: "user", Content: caseText},
	}
}

func answerPrompt(input llm.AnswerInput) []Message {
	return []Message{
		{Role: "system", Content: systemAnswer},
		{Role: "user", Content: fmt.Sprintf("Case:\n%s\n\nQuestion: %s", input.CaseText, input.Question)},
	}
}

func evaluatePrompt(input llm.EvaluateInput) []Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Case:\n%s\n\nQuestion: %s\n\nAnswer: %s\n\nReasoning: %s", input.CaseText, input.Question, input.Answer.Answer, input.Answer.Reasoning)
	if ref := strings.TrimSpace(input.Reference); ref != "" {
		fmt.Fprintf(&b, "\n\nReference answer: %s", ref)
	}
	return []Message{
		{Role: "system", Content: systemEvaluate},
		{Role: "user", Content: b.String()},
	}
}

func maskPrompt(text string) []Message {
	return []Message{
		{Role: "system", Content: systemMask},
		{Role: "user", Content: text},
	}
}
