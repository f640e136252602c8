// Package llm talks to the completion APIs used for section generation.
package llm

import (
	"context"
	"strings"
)

// Provider completes chat-style prompts.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is one prompt. An empty Model uses the provider's
// default.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// splitSystem joins the system messages of msgs with blank lines and
// returns the remaining conversation.
func splitSystem(msgs []Message) (string, []Message) {
	var (
		system []string
		rest   []Message
	)
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func modelOr(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
