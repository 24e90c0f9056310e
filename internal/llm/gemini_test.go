package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tbourn/go-telegram-bridge/internal/domain"
)

func newGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient("test-key", "gemini-1.5-flash", srv.URL)
}

func candidateBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
}

func TestGenerate_Success_URLAndPayload(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest

	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotReq)
		_ = json.NewEncoder(w).Encode(candidateBody("  Hello! How can I help?  "))
	})

	msgs := []Message{
		{Role: domain.RoleUser, Text: "hi"},
		{Role: domain.RoleModel, Text: "hello"},
		{Role: domain.RoleUser, Text: "what now"},
	}
	reply, err := c.Generate(context.Background(), msgs)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Reply text is trimmed.
	if reply != "Hello! How can I help?" {
		t.Fatalf("reply = %q", reply)
	}

	if gotPath != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("key query param = %q", gotKey)
	}

	// Every message becomes one content entry with role and single text part.
	if len(gotReq.Contents) != 3 {
		t.Fatalf("contents len = %d; want 3", len(gotReq.Contents))
	}
	if gotReq.Contents[1].Role != "model" || gotReq.Contents[1].Parts[0].Text != "hello" {
		t.Fatalf("unexpected contents[1]: %+v", gotReq.Contents[1])
	}
	if gotReq.Contents[2].Role != "user" || gotReq.Contents[2].Parts[0].Text != "what now" {
		t.Fatalf("unexpected contents[2]: %+v", gotReq.Contents[2])
	}
}

func TestGenerate_Non2xx_ErrorWithoutLeakingKey(t *testing.T) {
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota"}}`))
	})

	_, err := c.Generate(context.Background(), []Message{{Role: "user", Text: "hi"}})
	if err == nil {
		t.Fatalf("expected error for 429")
	}
	if !strings.Contains(err.Error(), "status 429") {
		t.Fatalf("error should carry status: %v", err)
	}
	// The key must never surface in error text.
	if strings.Contains(err.Error(), "test-key") {
		t.Fatalf("error leaks credentials: %v", err)
	}
}

func TestGenerate_TransportError_ErrorWithoutLeakingKey(t *testing.T) {
	// Port 1 is never listening; the dial fails before any HTTP exchange and
	// the resulting *url.Error carries the full request URL, key included.
	c := NewGeminiClient("sup3r-secret-key", "gemini-1.5-flash", "http://127.0.0.1:1")

	_, err := c.Generate(context.Background(), []Message{{Role: "user", Text: "hi"}})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), "sup3r-secret-key") {
		t.Fatalf("error leaks credentials: %v", err)
	}
	if strings.Contains(err.Error(), "key=") {
		t.Fatalf("error should not carry the request URL: %v", err)
	}
	if !strings.Contains(err.Error(), "llm: generateContent") {
		t.Fatalf("expected contextual prefix, got %v", err)
	}
}

func TestGenerate_EmptyCandidates_ErrEmptyReply(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
	}{
		{"no candidates", map[string]any{"candidates": []any{}}},
		{"no parts", map[string]any{"candidates": []map[string]any{{"content": map[string]any{"role": "model", "parts": []any{}}}}}},
		{"blank text", candidateBody("   ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tc.body)
			})
			_, err := c.Generate(context.Background(), []Message{{Role: "user", Text: "hi"}})
			if !errors.Is(err, ErrEmptyReply) {
				t.Fatalf("expected ErrEmptyReply, got %v", err)
			}
		})
	}
}

func TestGenerate_MalformedResponse(t *testing.T) {
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": not-json`))
	})
	_, err := c.Generate(context.Background(), []Message{{Role: "user", Text: "hi"}})
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewGeminiClient_DefaultBaseURL(t *testing.T) {
	c := NewGeminiClient("k", "m", "")
	if c.baseURL != defaultBaseURL {
		t.Fatalf("baseURL = %q; want default", c.baseURL)
	}
	// Trailing slashes are normalized away.
	c2 := NewGeminiClient("k", "m", "https://proxy.example.com/")
	if c2.baseURL != "https://proxy.example.com" {
		t.Fatalf("baseURL = %q", c2.baseURL)
	}
}
