package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// candidateBody builds a minimal successful generateContent response.
func candidateBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerateContent_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotReq GenerateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(candidateBody("42 is the answer")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "gemini-pro", srv.Client())
	got, err := c.GenerateContent(context.Background(), "what is the answer?", ChatGenerationConfig(), DefaultSafetySettings())
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if got != "42 is the answer" {
		t.Fatalf("unexpected reply: %q", got)
	}

	if gotPath != "/models/gemini-pro:generateContent" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("unexpected key: %q", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 ||
		gotReq.Contents[0].Parts[0].Text != "what is the answer?" {
		t.Fatalf("unexpected request contents: %+v", gotReq.Contents)
	}
	if gotReq.GenerationConfig == nil || gotReq.GenerationConfig.MaxOutputTokens != 1024 {
		t.Fatalf("generation config not forwarded: %+v", gotReq.GenerationConfig)
	}
	if len(gotReq.SafetySettings) != 4 {
		t.Fatalf("expected 4 safety settings, got %d", len(gotReq.SafetySettings))
	}
}

func TestGenerateContent_NilConfigOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, ok := raw["generationConfig"]; ok {
			t.Errorf("generationConfig should be omitted when nil")
		}
		if _, ok := raw["safetySettings"]; ok {
			t.Errorf("safetySettings should be omitted when nil")
		}
		_, _ = w.Write([]byte(candidateBody("ok")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "gemini-pro", srv.Client())
	if _, err := c.GenerateContent(context.Background(), "p", nil, nil); err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
}

func TestGenerateContent_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "gemini-pro", srv.Client())
	_, err := c.GenerateContent(context.Background(), "p", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
	if errors.Is(err, ErrNoCandidates) {
		t.Fatalf("status error must not be ErrNoCandidates")
	}
}

func TestGenerateContent_EmptyCandidates(t *testing.T) {
	bodies := []string{
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
	}
	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		c := NewClient(srv.URL, "k", "gemini-pro", srv.Client())
		_, err := c.GenerateContent(context.Background(), "p", nil, nil)
		srv.Close()
		if !errors.Is(err, ErrNoCandidates) {
			t.Fatalf("body %s: expected ErrNoCandidates, got %v", body, err)
		}
	}
}

func TestGenerateContent_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "gemini-pro", srv.Client())
	_, err := c.GenerateContent(context.Background(), "p", nil, nil)
	if err == nil || errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestGenerateContent_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(candidateBody("ok")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "k", "gemini-pro", srv.Client())
	if _, err := c.GenerateContent(ctx, "p", nil, nil); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}
