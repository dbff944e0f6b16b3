package llm

import "time"

const demoPrefix = "[DEMO MODE] Response to: "

// DemoResponse builds the deterministic placeholder completion served when a
// provider has no credentials. The echoed prompt is capped at 50 characters.
func DemoResponse(provider, model string, req *ChatRequest) *ChatResponse {
	prompt := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	if len(prompt) > 50 {
		prompt = prompt[:50]
	}
	content := demoPrefix + prompt + "..."

	promptTokens := CountMessageTokens(model, req.Messages)
	completionTokens := CountTokens(model, content)
	return &ChatResponse{
		Provider: provider,
		Model:    model,
		Content:  content,
		Usage: ChatUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		Demo:      true,
		CreatedAt: time.Now().UTC(),
	}
}
