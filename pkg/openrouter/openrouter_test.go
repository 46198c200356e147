package openrouter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openaisdk "github.com/openai/openai-go"
)

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if NewClient(Config{BaseURL: "https://example.test"}) != nil {
		t.Fatal("expected nil client without api key")
	}
}

func TestNewClientSendsAttributionHeaders(t *testing.T) {
	t.Parallel()

	var referer, title, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:  srv.URL + "/",
		APIKey:   "secret",
		SiteURL:  "https://guild.example",
		SiteName: "guildbot",
	})
	if client == nil {
		t.Fatal("expected client")
	}
	_, err := client.Chat.Completions.New(context.Background(), openaisdk.ChatCompletionNewParams{
		Model:    "m",
		Messages: []openaisdk.ChatCompletionMessageParamUnion{openaisdk.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("completion error = %v", err)
	}
	if referer != "https://guild.example" || title != "guildbot" || auth != "Bearer secret" {
		t.Fatalf("unexpected headers: referer=%q title=%q auth=%q", referer, title, auth)
	}
}

func TestConfigNew(t *testing.T) {
	t.Parallel()

	tokens := 100
	cfg := &Config{BaseURL: "https://example.test/v1/", APIKey: "k", Model: "x-ai/grok-4.1-fast", MaxCompletionToken: &tokens}
	m, err := cfg.New(context.Background())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if m == nil {
		t.Fatal("expected model")
	}

	if _, err := (&Config{APIKey: "k"}).New(context.Background()); err == nil {
		t.Fatal("expected error without model")
	}
}
