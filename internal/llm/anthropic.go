package llm

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	// Anthropic requires max_tokens on every request.
	anthropicMaxTokens = 4096
)

// AnthropicProvider calls the Messages API over plain HTTP.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{apiKey: apiKey, model: model, baseURL: anthropicBaseURL, client: &http.Client{}}
}

// WithBaseURL points the provider at another API host.
func (p *AnthropicProvider) WithBaseURL(url string) *AnthropicProvider {
	p.baseURL = strings.TrimRight(url, "/")
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicReply struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	system, conversation := splitSystem(req.Messages)
	turns := make([]anthropicTurn, 0, len(conversation))
	for _, m := range conversation {
		turns = append(turns, anthropicTurn{Role: string(m.Role), Content: m.Content})
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	body := map[string]any{
		"model":       modelOr(req.Model, p.model),
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"messages":    turns,
	}
	if system != "" {
		body["system"] = system
	}
	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var reply anthropicReply
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/messages", header, body, &reply); err != nil {
		return nil, err
	}
	var text strings.Builder
	for _, block := range reply.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &CompletionResponse{
		Content:      text.String(),
		InputTokens:  reply.Usage.InputTokens,
		OutputTokens: reply.Usage.OutputTokens,
		Model:        reply.Model,
		FinishReason: reply.StopReason,
	}, nil
}
