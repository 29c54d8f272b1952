package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/providers"
)

func TestExtractText(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "THE GREAT GATSBY"})
	}))
	defer server.Close()

	o := New(server.URL)
	text, err := o.ExtractText(context.Background(), providers.Config{
		Model:  "llava",
		Prompt: "read it",
		Image:  []byte("img"),
	})
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "THE GREAT GATSBY" {
		t.Errorf("text = %q", text)
	}
	if got["model"] != "llava" || got["stream"] != false {
		t.Errorf("unexpected request body: %v", got)
	}
	images, ok := got["images"].([]any)
	if !ok || len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Errorf("images = %v", got["images"])
	}
}

func TestExtractText_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := New(server.URL).ExtractText(context.Background(), providers.Config{Model: "x"}); err == nil {
		t.Error("Expected error for non-200 status")
	}
}
