package llm

import (
	"context"
	"net/http"
	"strings"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GoogleProvider calls the Gemini generateContent API over plain HTTP.
type GoogleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGoogleProvider(apiKey, model string) *GoogleProvider {
	return &GoogleProvider{apiKey: apiKey, model: model, baseURL: googleBaseURL, client: &http.Client{}}
}

// WithBaseURL points the provider at another API host.
func (p *GoogleProvider) WithBaseURL(url string) *GoogleProvider {
	p.baseURL = strings.TrimRight(url, "/")
	return p
}

func (p *GoogleProvider) Name() string { return "google" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiReply struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := modelOr(req.Model, p.model)
	system, conversation := splitSystem(req.Messages)

	contents := make([]geminiContent, 0, len(conversation))
	for _, m := range conversation {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if len(contents) == 0 {
		contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{}}})
	}

	generation := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		generation["maxOutputTokens"] = req.MaxTokens
	}
	body := map[string]any{"contents": contents, "generationConfig": generation}
	if system != "" {
		body["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	header := http.Header{}
	header.Set("x-goog-api-key", p.apiKey)

	var reply geminiReply
	url := p.baseURL + "/models/" + model + ":generateContent"
	if err := postJSON(ctx, p.client, p.Name(), url, header, body, &reply); err != nil {
		return nil, err
	}
	out := &CompletionResponse{
		Model:        model,
		InputTokens:  reply.UsageMetadata.PromptTokenCount,
		OutputTokens: reply.UsageMetadata.CandidatesTokenCount,
	}
	if len(reply.Candidates) > 0 {
		first := reply.Candidates[0]
		out.FinishReason = first.FinishReason
		if first.Content != nil {
			var text strings.Builder
			for _, part := range first.Content.Parts {
				text.WriteString(part.Text)
			}
			out.Content = text.String()
		}
	}
	return out, nil
}
