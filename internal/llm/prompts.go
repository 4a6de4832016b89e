package llm

import "fmt"

const summarizerSystemPrompt = "You're a summarizer. Keep summaries short, factual and free of filler."

const routingSystemPrompt = `You are a query router for an educational assistant.
Classify the user's query and return ONLY a JSON object with these keys:
{"intent": "...", "complexity": "simple|moderate|deep", "sources": ["llm"|"rag"|"web"],
"strategy": "direct|retrieval|web", "confidence": 0.0-1.0, "reasoning": "..."}`

const routingSystemPromptStrict = routingSystemPrompt + `
Respond with the raw JSON object only. No markdown fences, no commentary, no
leading or trailing text of any kind.`

// TeacherSystemPrompt is the answer persona. The register follows the resolved
// language tag: casual Hinglish or plain English.
func TeacherSystemPrompt(languageTag string) string {
	langDesc, langLabel := "Indian", "English"
	if languageTag == "hinglish" {
		langDesc, langLabel = "Hinglish", "Hinglish"
	}
	return fmt.Sprintf(
		"You are a friendly %s teacher. Given a user question, return a short, clear, "+
			"friendly answer in %s in 3-4 sentences. Use a conversational, "+
			"easy-to-understand tone. Avoid technical jargon.",
		langDesc, langLabel,
	)
}

// ContextAnswerPrompt wraps retrieved or web-gathered context around the query.
// An empty context produces a plain question prompt so the model can still
// answer from its own knowledge.
func ContextAnswerPrompt(context, query string) string {
	if context == "" {
		return query
	}
	return fmt.Sprintf("Use the following context to answer clearly:\n\n%s\n\nQuestion: %s", context, query)
}
