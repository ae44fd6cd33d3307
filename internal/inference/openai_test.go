package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateCompletions(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"text":" SELECT Name FROM Artist"}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL + "/", Model: "sqlcoder-7b.Q4_K_M.gguf"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	text, err := client.Generate(context.Background(), "### Task", Params{MaxTokens: 256, Stop: []string{"\n\n", ";"}})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != " SELECT Name FROM Artist" {
		t.Fatalf("text = %q", text)
	}
	if captured["prompt"] != "### Task" || captured["max_tokens"] != float64(256) {
		t.Fatalf("payload = %#v", captured)
	}
	stop, _ := captured["stop"].([]any)
	if len(stop) != 2 || stop[0] != "\n\n" || stop[1] != ";" {
		t.Fatalf("stop = %#v", captured["stop"])
	}
}

func TestGenerateChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
			t.Errorf("messages = %#v", payload.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT 1"}}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt", API: APIChat})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	text, err := client.Generate(context.Background(), "prompt", Params{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "SELECT 1" {
		t.Fatalf("text = %q", text)
	}
}

func TestGenerateReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	_, err = client.Generate(context.Background(), "prompt", Params{})
	if err == nil || !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateRefusesOversizedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"text":"SELECT ` + strings.Repeat("Name, ", 64) + `Name FROM Artist"}]}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	client.maxBody = 128
	_, err = client.Generate(context.Background(), "prompt", Params{})
	if err == nil || !strings.Contains(err.Error(), "exceeds 128 bytes") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "m"})
	if _, err := client.Generate(context.Background(), "prompt", Params{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"sqlcoder"},{"id":"other"}]}`))
	}))
	defer server.Close()

	served, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "sqlcoder"})
	if err := served.Probe(context.Background()); err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	missing, _ := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "absent"})
	if err := missing.Probe(context.Background()); err == nil {
		t.Fatal("expected error for unserved model")
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{Model: "m"}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x"}); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := NewOpenAIClient(OpenAIConfig{BaseURL: "http://x", Model: "m", API: "grpc"}); err == nil {
		t.Fatal("expected error for unknown api")
	}
}

func TestParseAPI(t *testing.T) {
	if api, err := ParseAPI(""); err != nil || api != APICompletions {
		t.Fatalf("ParseAPI(\"\") = %q, %v", api, err)
	}
	if api, err := ParseAPI("Chat"); err != nil || api != APIChat {
		t.Fatalf("ParseAPI(Chat) = %q, %v", api, err)
	}
	if _, err := ParseAPI("embeddings"); err == nil {
		t.Fatal("expected error")
	}
}
