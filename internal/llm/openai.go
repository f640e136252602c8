package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider uses the Chat Completions API through go-openai.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}
}

// NewOpenAICompatibleProvider targets any server speaking the OpenAI
// chat protocol at baseURL.
func NewOpenAICompatibleProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	apiReq := openai.ChatCompletionRequest{
		Model:    modelOr(req.Model, p.model),
		Messages: messages,
	}
	if !reasoningModel(apiReq.Model) {
		apiReq.Temperature = float32(req.Temperature)
	}
	if req.MaxTokens > 0 {
		apiReq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	out := &CompletionResponse{
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

// reasoningModel reports models that only accept the default
// temperature.
func reasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
