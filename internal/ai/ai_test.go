package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenRouterChat_ReportsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("authorization header = %q", got)
		}
		var req openRouterChatReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "openai/gpt-4o-mini" || len(req.Messages) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"openai/gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi there"}}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "k", "openai/gpt-4o-mini", "", "", time.Second)
	out, err := p.Chat(context.Background(), []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out.Content != "hi there" || out.Usage.PromptTokens != 12 || out.Usage.CompletionTokens != 3 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

func TestOpenRouterChat_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "k", "m", "", "", time.Second)
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatalf("expected error on 429")
	}
	p.APIKey = ""
	if _, err := p.Chat(context.Background(), nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestOllamaChat_ReportsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"llama3:latest","message":{"role":"assistant","content":"ok"},"prompt_eval_count":7,"eval_count":2,"done":true}`))
	}))
	defer srv.Close()

	out, err := NewOllamaProvider(srv.URL, "", time.Second).Chat(context.Background(), []Message{{Role: "user", Content: "x"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out.Content != "ok" || out.Model != "llama3:latest" || out.Usage.PromptTokens != 7 || out.Usage.CompletionTokens != 2 {
		t.Fatalf("unexpected completion %+v", out)
	}
}

type echoProvider struct{ model string }

func (e echoProvider) Chat(ctx context.Context, messages []Message) (*Completion, error) {
	return &Completion{Content: "echo", Model: e.model}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry("openrouter")
	for _, name := range []string{"openrouter", "ollama"} {
		name := name
		r.Register(name, func(ctx context.Context, model string) (Provider, error) {
			return echoProvider{model: name + "|" + model}, nil
		})
	}

	cases := []struct {
		ref, want string
	}{
		{"openai/gpt-4o-mini", "openrouter|openai/gpt-4o-mini"},
		{"ollama:llama3:latest", "ollama|llama3:latest"},
		{"llama3:latest", "openrouter|llama3:latest"},
		{"OLLAMA:mistral", "ollama|mistral"},
	}
	for _, tc := range cases {
		p, _, err := r.Resolve(context.Background(), tc.ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.ref, err)
		}
		if got := p.(echoProvider).model; got != tc.want {
			t.Fatalf("resolve %q = %q, want %q", tc.ref, got, tc.want)
		}
	}

	if _, _, err := r.Resolve(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty model")
	}
	if _, err := r.Get(context.Background(), "nope", "m"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
