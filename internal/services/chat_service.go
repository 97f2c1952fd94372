// Package services – ChatService
//
// This file implements ChatService, the application-level component that owns
// the per-user chat transcript and assistant replies. Every inbound user
// message is persisted before anything else happens, so the transcript is
// complete even when the downstream model call fails. The reply is produced
// by a single-shot call to the external model, primed with a fixed persona
// and context blocks built from the user's most recent organ metrics and
// reports.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// the owner identifier.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/ai"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/repo"
)

const (
	// chatEmptyFallback is stored and returned when the model answered but
	// produced no usable text.
	chatEmptyFallback = "I can help you understand your health metrics, medications, and medical reports. What would you like to know?"

	// chatErrorFallback is stored and returned when the model call itself
	// failed. No retry; the transcript keeps moving.
	chatErrorFallback = "I'm here to help with your medical questions. You can ask me about:\n\n" +
		"• Understanding your lab results and health metrics\n" +
		"• Medication information (dosages, timing, interactions)\n" +
		"• Explanations of medical terms and conditions\n" +
		"• Lifestyle and preventive care recommendations\n\n" +
		"What would you like to know?"
)

// chatPromptTemplate is the fixed system prompt. %s placeholders: metrics
// context block, reports context block, verbatim user message.
const chatPromptTemplate = `You are MediSync AI, a highly trained HIPAA-compliant medical assistant powered by Google's Gemini AI. You specialize in:

1. **Medical Report Analysis**: Interpreting lab results, diagnostic reports, and medical records
2. **Medication Guidance**: Explaining medications, dosages, timing, interactions, and side effects
3. **Health Education**: Providing clear, evidence-based explanations of medical conditions, symptoms, and treatments
4. **Preventive Care**: Offering lifestyle recommendations, screening guidelines, and wellness tips
5. **Medical Terminology**: Translating complex medical jargon into plain language

**Guidelines:**
- Always provide accurate, evidence-based medical information
- Use clear, compassionate language appropriate for patients
- When discussing specific health concerns, encourage consultation with healthcare providers
- Never provide diagnoses or replace professional medical advice
- Respect patient privacy and maintain HIPAA compliance
- Be supportive and empathetic in all interactions
- Cite reliable medical sources when relevant (CDC, WHO, Mayo Clinic, etc.)

**Patient Context:**
%s%s
**Patient Question:** "%s"

Provide a helpful, accurate, and compassionate response. Keep it concise (2-3 paragraphs) unless the question requires more detail.`

// ChatService coordinates transcript persistence and assistant replies.
type ChatService struct {
	DB    *gorm.DB
	Model Generator

	// Context window over stored data, zero values fall back to 20/5.
	ContextMetrics int
	ContextReports int

	// Optional guards
	MaxMessageRunes int
	HistoryLimit    int // hard cap for History, zero falls back to 50
}

// Answer validates the message, persists it, builds the contextualized
// prompt, calls the model, persists the (possibly fallback) reply, and
// returns it. The two transcript appends happen on every path past
// validation.
func (s *ChatService) Answer(ctx context.Context, owner, message string) (string, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(attribute.String("user.id", owner)),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		return "", ErrMessageTooLong
	}

	// The user message is committed before the model is involved.
	if _, err := repo.AppendMessage(ctx, s.DB, owner, domain.RoleUser, message); err != nil {
		return "", err
	}

	prompt, err := s.buildPrompt(ctx, owner, message)
	if err != nil {
		return "", err
	}

	reply, err := s.Model.GenerateContent(ctx, prompt, ai.ChatGenerationConfig(), ai.DefaultSafetySettings())
	switch {
	case errors.Is(err, ai.ErrNoCandidates):
		reply = chatEmptyFallback
	case err != nil:
		reply = chatErrorFallback
		span.SetAttributes(attribute.Bool("chat.degraded", true))
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = chatEmptyFallback
	}

	if _, err := repo.AppendMessage(ctx, s.DB, owner, domain.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// History returns the owner's transcript oldest-first, capped at limit (or
// the service cap when limit is unset or larger).
func (s *ChatService) History(ctx context.Context, owner string, limit int) ([]domain.ChatMessage, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("user.id", owner), attribute.Int("limit", limit)),
	)
	defer span.End()

	hardCap := s.HistoryLimit
	if hardCap <= 0 {
		hardCap = 50
	}
	if limit <= 0 || limit > hardCap {
		limit = hardCap
	}
	msgs, err := repo.ListHistory(ctx, s.DB, owner, limit)
	if msgs == nil && err == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, err
}

// buildPrompt assembles the system prompt from the persona template and the
// owner's recent data.
func (s *ChatService) buildPrompt(ctx context.Context, owner, message string) (string, error) {
	nMetrics := s.ContextMetrics
	if nMetrics <= 0 {
		nMetrics = 20
	}
	nReports := s.ContextReports
	if nReports <= 0 {
		nReports = 5
	}

	metrics, err := repo.RecentMetrics(ctx, s.DB, owner, nMetrics)
	if err != nil {
		return "", err
	}
	reports, err := repo.RecentReports(ctx, s.DB, owner, nReports)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(chatPromptTemplate,
		metricsContext(metrics),
		reportsContext(reports),
		message,
	), nil
}

// organCaser renders organ identifiers as display labels ("heart" → "Heart").
var organCaser = cases.Title(language.English)

// metricsContext linearizes metric rows into one plain-text block, or returns
// "" when there is nothing to say.
func metricsContext(metrics []domain.OrganMetric) string {
	if len(metrics) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Current Health Metrics:\n")
	for _, m := range metrics {
		status := "unknown"
		if m.Status != nil && *m.Status != "" {
			status = *m.Status
		}
		fmt.Fprintf(&b, "%s: %s = %s (%s)\n", organCaser.String(m.OrganType), m.MetricName, m.MetricValue, status)
	}
	return b.String()
}

// reportsContext linearizes report rows into one plain-text block, or returns
// "" when there is nothing to say.
func reportsContext(reports []domain.MedicalReport) string {
	if len(reports) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Recent Reports:\n")
	for _, r := range reports {
		fmt.Fprintf(&b, "Report: %s (%s)\n", r.Filename, r.UploadDate)
	}
	return b.String()
}
