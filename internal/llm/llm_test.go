package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type echoProvider struct{ calls int }

func (e *echoProvider) Name() string { return "echo" }

func (e *echoProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	e.calls++
	return &CompletionResponse{Content: req.Messages[len(req.Messages)-1].Content}, nil
}

var prompt = []Message{
	{Role: RoleSystem, Content: "be brief"},
	{Role: RoleSystem, Content: "html only"},
	{Role: RoleUser, Content: "a hero"},
}

// capture serves reply as JSON and records the decoded request body.
func capture(t *testing.T, status int, reply string) (*httptest.Server, *http.Request, map[string]any) {
	t.Helper()
	var (
		got  = new(http.Request)
		body = make(map[string]any)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = *r.Clone(context.Background())
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, got, body
}

func TestAnthropicWireFormat(t *testing.T) {
	srv, got, body := capture(t, http.StatusOK, `{"model":"claude-sonnet-4-6","stop_reason":"end_turn",
		"content":[{"type":"text","text":"<section>"},{"type":"tool_use"},{"type":"text","text":"</section>"}],
		"usage":{"input_tokens":12,"output_tokens":7}}`)

	p := NewAnthropicProvider("key-1", "claude-sonnet-4-6").WithBaseURL(srv.URL + "/")
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: prompt})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "<section></section>" || resp.InputTokens != 12 || resp.OutputTokens != 7 {
		t.Errorf("response = %+v", resp)
	}
	if got.URL.Path != "/v1/messages" || got.Header.Get("x-api-key") != "key-1" || got.Header.Get("anthropic-version") == "" {
		t.Errorf("request %s headers %v", got.URL.Path, got.Header)
	}
	if body["system"] != "be brief\n\nhtml only" {
		t.Errorf("system = %v", body["system"])
	}
	if body["max_tokens"] != float64(anthropicMaxTokens) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
	if turns := body["messages"].([]any); len(turns) != 1 {
		t.Errorf("messages = %v", turns)
	}
}

func TestGoogleWireFormat(t *testing.T) {
	srv, got, body := capture(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]},"finishReason":"STOP"}],
		"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2}}`)

	p := NewGoogleProvider("g-key", "gemini-2.0-flash").WithBaseURL(srv.URL)
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages:  append(prompt, Message{Role: RoleAssistant, Content: "ok"}),
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ab" || resp.FinishReason != "STOP" || resp.Model != "gemini-2.0-flash" {
		t.Errorf("response = %+v", resp)
	}
	if got.URL.Path != "/models/gemini-2.0-flash:generateContent" || got.Header.Get("x-goog-api-key") != "g-key" {
		t.Errorf("request %s headers %v", got.URL.Path, got.Header)
	}
	if got.URL.RawQuery != "" {
		t.Errorf("key leaked into query: %q", got.URL.RawQuery)
	}
	contents := body["contents"].([]any)
	if len(contents) != 2 || contents[1].(map[string]any)["role"] != "model" {
		t.Errorf("contents = %v", contents)
	}
	if cfg := body["generationConfig"].(map[string]any); cfg["maxOutputTokens"] != float64(100) {
		t.Errorf("generationConfig = %v", cfg)
	}
}

func TestOllamaWireFormat(t *testing.T) {
	srv, got, body := capture(t, http.StatusOK, `{"model":"llama3.1","message":{"role":"assistant","content":"hi"},
		"done_reason":"stop","prompt_eval_count":4,"eval_count":1}`)

	resp, err := NewOllamaProvider(srv.URL+"/", "llama3.1").Complete(context.Background(), CompletionRequest{Messages: prompt})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi" || resp.InputTokens != 4 {
		t.Errorf("response = %+v", resp)
	}
	if got.URL.Path != "/api/chat" || body["stream"] != false {
		t.Errorf("path %s body %v", got.URL.Path, body)
	}
	if turns := body["messages"].([]any); len(turns) != 3 {
		t.Errorf("system turns should pass through: %v", turns)
	}
}

func TestOpenAICompatible(t *testing.T) {
	srv, got, body := capture(t, http.StatusOK, `{"model":"gpt-5-mini","choices":[{"message":{"role":"assistant","content":"<p>x</p>"},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":9,"completion_tokens":3}}`)

	p := NewOpenAICompatibleProvider("sk-test", "gpt-5-mini", srv.URL+"/v1")
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: prompt, MaxTokens: 50, Temperature: 0.2})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "<p>x</p>" || resp.OutputTokens != 3 || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if got.URL.Path != "/v1/chat/completions" || !strings.HasSuffix(got.Header.Get("Authorization"), "sk-test") {
		t.Errorf("request %s auth %q", got.URL.Path, got.Header.Get("Authorization"))
	}
	if body["model"] != "gpt-5-mini" || body["max_completion_tokens"] != float64(50) {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["temperature"]; ok {
		t.Errorf("reasoning model sent a temperature: %v", body["temperature"])
	}
}

func TestStatusErrorCarriesBody(t *testing.T) {
	srv, _, _ := capture(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)

	_, err := NewAnthropicProvider("k", "m").WithBaseURL(srv.URL).Complete(context.Background(), CompletionRequest{Messages: prompt})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Status != http.StatusTooManyRequests || !strings.Contains(se.Body, "slow down") || se.Provider != "anthropic" {
		t.Errorf("status error = %+v", se)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		keys     Keys
		wantErr  bool
	}{
		{"anthropic", Keys{Anthropic: "k"}, false},
		{"anthropic", Keys{}, true},
		{"openai", Keys{OpenAI: "k"}, false},
		{"openai", Keys{Anthropic: "k"}, true},
		{"google", Keys{Google: "k"}, false},
		{"google", Keys{}, true},
		{"ollama", Keys{}, false},
		{"cohere", Keys{}, true},
	}
	for _, tt := range tests {
		p, err := New(tt.provider, "m", tt.keys)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q, %+v) error = %v, wantErr %v", tt.provider, tt.keys, err, tt.wantErr)
			continue
		}
		if err == nil && p.Name() != tt.provider {
			t.Errorf("New(%q) name = %q", tt.provider, p.Name())
		}
		if tt.wantErr && tt.provider != "cohere" && !errors.Is(err, ErrMissingKey) {
			t.Errorf("New(%q) error = %v, want ErrMissingKey", tt.provider, err)
		}
	}

	p, _ := New("ollama", "llama3.1", Keys{})
	if p.(*OllamaProvider).baseURL != DefaultOllamaHost {
		t.Errorf("ollama host = %q", p.(*OllamaProvider).baseURL)
	}
}

func TestKeysMergeAndHas(t *testing.T) {
	keys := Keys{OpenAI: "cfg"}.Merge(Keys{OpenAI: "env", Google: "g"})
	if keys.OpenAI != "cfg" || keys.Google != "g" {
		t.Errorf("merge = %+v", keys)
	}
	if !keys.Has("openai") || !keys.Has("google") || keys.Has("anthropic") {
		t.Errorf("Has reported wrong providers for %+v", keys)
	}
	if !keys.Has("ollama") {
		t.Error("ollama needs no key")
	}
}

func TestKeysFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "a")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	keys := KeysFromEnv()
	if keys.Anthropic != "a" || keys.OpenAI != "" || keys.OllamaHost != "http://gpu:11434" {
		t.Errorf("keys = %+v", keys)
	}
}

func TestLimit(t *testing.T) {
	echo := &echoProvider{}
	if Limit(echo, nil) != Provider(echo) {
		t.Error("nil limiter should not wrap")
	}
	if PerMinute(0) != nil {
		t.Error("zero rpm should disable the limit")
	}

	limited := Limit(echo, PerMinute(2))
	if limited.Name() != "echo" {
		t.Errorf("name = %q", limited.Name())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}}
	for i := 0; i < 2; i++ {
		if _, err := limited.Complete(ctx, req); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if _, err := limited.Complete(ctx, req); err == nil {
		t.Error("third call within the minute should wait past the deadline")
	}
	if echo.calls != 2 {
		t.Errorf("calls = %d", echo.calls)
	}
}

func TestEstimateCost(t *testing.T) {
	if got := EstimateCost("claude-sonnet-4-6", 1_000_000, 1_000_000); got < 17.99 || got > 18.01 {
		t.Errorf("sonnet cost = %f", got)
	}
	if got := EstimateCost("llama3.1", 1000, 1000); got != 0 {
		t.Errorf("local model cost = %f", got)
	}
}
