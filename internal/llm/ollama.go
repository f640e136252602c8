package llm

import (
	"context"
	"net/http"
	"strings"
)

// OllamaProvider calls a local Ollama chat endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: &http.Client{}}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaReply struct {
	Model           string     `json:"model"`
	Message         ollamaTurn `json:"message"`
	DoneReason      string     `json:"done_reason"`
	PromptEvalCount int        `json:"prompt_eval_count"`
	EvalCount       int        `json:"eval_count"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	turns := make([]ollamaTurn, 0, len(req.Messages))
	for _, m := range req.Messages {
		turns = append(turns, ollamaTurn{Role: string(m.Role), Content: m.Content})
	}
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	body := map[string]any{
		"model":    modelOr(req.Model, p.model),
		"messages": turns,
		"stream":   false,
		"options":  options,
	}

	var reply ollamaReply
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/api/chat", nil, body, &reply); err != nil {
		return nil, err
	}
	return &CompletionResponse{
		Content:      reply.Message.Content,
		InputTokens:  reply.PromptEvalCount,
		OutputTokens: reply.EvalCount,
		Model:        reply.Model,
		FinishReason: reply.DoneReason,
	}, nil
}
