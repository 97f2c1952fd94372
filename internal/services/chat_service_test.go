package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/ai"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/repo"
)

func TestAnswer_Success_AppendsBothTurns(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{reply: "Your cholesterol trend is improving."}
	svc := &ChatService{DB: db, Model: model}

	reply, err := svc.Answer(context.Background(), "u1", "  How is my cholesterol?  ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply != "Your cholesterol trend is improving." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	msgs, err := repo.ListHistory(context.Background(), db, "u1", 0)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 transcript rows, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "How is my cholesterol?" {
		t.Fatalf("user turn mismatch: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != reply {
		t.Fatalf("assistant turn mismatch: %+v", msgs[1])
	}
}

func TestAnswer_ModelError_StoresErrorFallback(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{err: errors.New("upstream 503")}
	svc := &ChatService{DB: db, Model: model}

	reply, err := svc.Answer(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Answer must not fail on model error, got %v", err)
	}
	if reply != chatErrorFallback {
		t.Fatalf("expected error fallback, got %q", reply)
	}

	msgs, _ := repo.ListHistory(context.Background(), db, "u1", 0)
	if len(msgs) != 2 || msgs[1].Content != chatErrorFallback {
		t.Fatalf("fallback not persisted: %+v", msgs)
	}
}

func TestAnswer_NoCandidates_StoresEmptyFallback(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{err: ai.ErrNoCandidates}
	svc := &ChatService{DB: db, Model: model}

	reply, err := svc.Answer(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply != chatEmptyFallback {
		t.Fatalf("expected empty-candidates fallback, got %q", reply)
	}
}

func TestAnswer_BlankReply_StoresEmptyFallback(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{reply: "   \n  "}
	svc := &ChatService{DB: db, Model: model}

	reply, err := svc.Answer(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if reply != chatEmptyFallback {
		t.Fatalf("expected empty fallback for whitespace reply, got %q", reply)
	}
}

func TestAnswer_EmptyMessage_RejectedBeforePersisting(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{reply: "unused"}
	svc := &ChatService{DB: db, Model: model}

	if _, err := svc.Answer(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("model must not be called for empty message")
	}

	n, err := repo.CountMessages(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty transcript, got %d rows", n)
	}
}

func TestAnswer_TooLongMessage(t *testing.T) {
	db := newServiceDB(t)
	svc := &ChatService{DB: db, Model: &stubModel{reply: "unused"}, MaxMessageRunes: 5}

	if _, err := svc.Answer(context.Background(), "u1", "this is longer than five runes"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
}

func TestAnswer_PromptCarriesHealthContext(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{reply: "ok"}
	svc := &ChatService{DB: db, Model: model}

	status := "normal"
	if err := repo.InsertMetrics(context.Background(), db, []domain.OrganMetric{
		{UserID: "u1", OrganType: "heart", MetricName: "Cholesterol", MetricValue: "180 mg/dL", Status: &status, RecordedDate: "2025-06-01"},
	}); err != nil {
		t.Fatalf("seed metric: %v", err)
	}
	if _, err := repo.CreateReport(context.Background(), db, "u1", "bloodwork.pdf", 1, "application/pdf", "k", "2025-06-01"); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	if _, err := svc.Answer(context.Background(), "u1", "what do you see?"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	prompt := model.lastPrompt
	if !strings.Contains(prompt, "Current Health Metrics:") {
		t.Fatalf("prompt missing metrics block:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Heart: Cholesterol = 180 mg/dL (normal)") {
		t.Fatalf("prompt missing metric line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Recent Reports:") || !strings.Contains(prompt, "bloodwork.pdf") {
		t.Fatalf("prompt missing reports block:\n%s", prompt)
	}
	if !strings.Contains(prompt, `**Patient Question:** "what do you see?"`) {
		t.Fatalf("prompt missing user question:\n%s", prompt)
	}
}

func TestAnswer_PromptOmitsEmptyContext(t *testing.T) {
	db := newServiceDB(t)
	model := &stubModel{reply: "ok"}
	svc := &ChatService{DB: db, Model: model}

	if _, err := svc.Answer(context.Background(), "fresh-user", "hi"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if strings.Contains(model.lastPrompt, "Current Health Metrics:") {
		t.Fatalf("metrics block should be absent for fresh user")
	}
	if strings.Contains(model.lastPrompt, "Recent Reports:") {
		t.Fatalf("reports block should be absent for fresh user")
	}
}

func TestHistory_ClampsToHardCap(t *testing.T) {
	db := newServiceDB(t)
	svc := &ChatService{DB: db, Model: &stubModel{reply: "ok"}, HistoryLimit: 4}

	for i := 0; i < 6; i++ {
		if _, err := repo.AppendMessage(context.Background(), db, "u1", domain.RoleUser, "m"); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	for _, limit := range []int{0, -1, 100} {
		msgs, err := svc.History(context.Background(), "u1", limit)
		if err != nil {
			t.Fatalf("History(%d): %v", limit, err)
		}
		if len(msgs) != 4 {
			t.Fatalf("History(%d): expected hard cap 4, got %d", limit, len(msgs))
		}
	}

	msgs, err := svc.History(context.Background(), "u1", 2)
	if err != nil {
		t.Fatalf("History(2): %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2, got %d", len(msgs))
	}
}

func TestHistory_EmptyTranscriptReturnsEmptySlice(t *testing.T) {
	db := newServiceDB(t)
	svc := &ChatService{DB: db, Model: &stubModel{reply: "ok"}}

	msgs, err := svc.History(context.Background(), "nobody", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected non-nil empty slice, got %v", msgs)
	}
}
