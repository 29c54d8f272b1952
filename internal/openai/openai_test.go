package openai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/providers"
	"github.com/openai/openai-go/v3/option"
)

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 0,
  "model": "gpt-4o",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Copyright 1925"}}
  ]
}`

func TestExtractText(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	calls := 0
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion))
	}))
	defer server.Close()

	o := New(option.WithBaseURL(server.URL + "/"))
	text, err := o.ExtractText(context.Background(), providers.Config{
		Model:    "gpt-4o",
		Prompt:   "read it",
		Image:    []byte("png"),
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "Copyright 1925" {
		t.Errorf("text = %q", text)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !strings.Contains(body, "data:image/png;base64,") {
		t.Errorf("request body missing image data URL: %s", body)
	}
}

func TestExtractText_NoRetry(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	o := New(option.WithBaseURL(server.URL + "/"))
	if _, err := o.ExtractText(context.Background(), providers.Config{Model: "gpt-4o", Prompt: "x"}); err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want exactly 1", calls)
	}
}

func TestExtractText_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New().ExtractText(context.Background(), providers.Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
