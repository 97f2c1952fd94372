// Package services – ReportService
//
// This file implements ReportService, the application-level component that
// owns the upload → analyze → persist flow and the read paths over reports
// and organ metrics. The flow is strictly sequential: store the raw file in
// the blob store, insert the pending report row, call the external model,
// complete the row, then bulk-insert whatever structured metrics could be
// extracted from the reply.
//
// Degradation contract: once the file is stored and the row exists, the
// upload succeeds. A failed model call downgrades the analysis text to a
// fixed string and is reported through AnalysisResult, never as an error.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// the owner and report identifiers.
package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/ai"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/repo"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/storage"
)

// analysisFallback is returned as the analysis text when the external model
// call fails. The upload still reports success; the dashboard relies on that
// to open the chat panel unconditionally.
const analysisFallback = "Analysis complete. Data has been added to your health dashboard."

// analysisPromptTemplate asks the model for the fixed JSON shape the
// extraction step understands. %s placeholders: filename, truncated content.
const analysisPromptTemplate = `Analyze this medical report and extract health metrics for heart, lungs, liver, and kidneys.

File: %s
Content: %s

Please provide:
1. Detected organ metrics and values
2. Health status (excellent/normal/concerning)
3. Key findings

Format as JSON with structure:
{
  "organs": {
    "heart": {"metrics": [{"name": "", "value": "", "status": "", "trend": ""}], "health": 0-100},
    "lungs": {"metrics": [{"name": "", "value": "", "status": "", "trend": ""}], "health": 0-100},
    "liver": {"metrics": [{"name": "", "value": "", "status": "", "trend": ""}], "health": 0-100},
    "kidneys": {"metrics": [{"name": "", "value": "", "status": "", "trend": ""}], "health": 0-100}
  },
  "findings": "",
  "recommendations": ""
}`

// Generator is the external model collaborator. *ai.Client satisfies it;
// tests substitute stubs.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string, genCfg *ai.GenerationConfig, safety []ai.SafetySetting) (string, error)
}

// AnalysisResult distinguishes genuine model output from the fallback path.
// The HTTP contract does not change on degradation; this exists so callers,
// logs, and tests can tell the two apart.
type AnalysisResult struct {
	Text     string
	Degraded bool
	Cause    error
}

// UploadResult is the outcome of one upload-and-analyze run.
type UploadResult struct {
	Report          *domain.MedicalReport
	Analysis        AnalysisResult
	Extract         ai.ExtractOutcome
	MetricsInserted int
}

// ReportService coordinates report persistence, blob storage, and analysis.
type ReportService struct {
	DB    *gorm.DB
	Blobs storage.BlobStore
	Model Generator

	// KeyPrefix namespaces blob keys, e.g. "medical-reports".
	KeyPrefix string
	// PromptChars caps how much of the file is embedded in the prompt.
	PromptChars int
}

// Upload runs the full flow for one file. It fails outright only when the
// blob write or a report-row write fails; model failures degrade the
// analysis text and extraction failures silently produce zero metric rows.
func (s *ReportService) Upload(ctx context.Context, owner, filename, contentType string, content []byte) (*UploadResult, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.String("report.filename", filename),
			attribute.Int("report.size", len(content)),
		),
	)
	defer span.End()

	now := time.Now().UTC()
	uploadDate := now.Format("2006-01-02")

	// 1) Raw bytes into the blob store.
	key := storage.UploadKey(s.KeyPrefix, owner, filename, now)
	if err := s.Blobs.Put(ctx, key, contentType, bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	// 2) Pending metadata row; capture the generated id.
	report, err := repo.CreateReport(ctx, s.DB, owner, filename, int64(len(content)), contentType, key, uploadDate)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	span.SetAttributes(attribute.Int64("report.id", report.ID))

	// 3) Single-shot analysis call with the truncated file text embedded.
	prompt := fmt.Sprintf(analysisPromptTemplate, filename, truncateBytes(content, s.promptChars()))
	analysis := AnalysisResult{}
	analysis.Text, analysis.Cause = s.Model.GenerateContent(ctx, prompt, nil, nil)
	if analysis.Cause != nil {
		analysis.Text = analysisFallback
		analysis.Degraded = true
		log.Warn().
			Err(analysis.Cause).
			Int64("report_id", report.ID).
			Msg("analysis degraded to fallback")
	}

	// 4) Complete the row regardless of how the text was produced.
	if err := repo.CompleteAnalysis(ctx, s.DB, report.ID, analysis.Text); err != nil {
		return nil, fmt.Errorf("complete report: %w", err)
	}
	report.AnalysisStatus = domain.AnalysisCompleted
	report.AnalysisData = &analysis.Text

	// 5) Best-effort structured extraction and bulk insert.
	result := &UploadResult{Report: report, Analysis: analysis, Extract: ai.ExtractNoMatch}
	if !analysis.Degraded {
		payload, outcome := ai.ExtractAnalysis(analysis.Text)
		result.Extract = outcome
		span.SetAttributes(attribute.String("analysis.extract", outcome.String()))
		if outcome == ai.ExtractParsed {
			rows := metricRows(owner, report.ID, uploadDate, payload)
			if err := repo.InsertMetrics(ctx, s.DB, rows); err != nil {
				// Metric rows are an enrichment; the upload already succeeded.
				log.Error().Err(err).Int64("report_id", report.ID).Msg("metric insert failed")
			} else {
				result.MetricsInserted = len(rows)
			}
		} else {
			log.Debug().
				Int64("report_id", report.ID).
				Str("outcome", outcome.String()).
				Msg("no structured metrics extracted")
		}
	}

	return result, nil
}

// List returns all reports for owner, newest first.
func (s *ReportService) List(ctx context.Context, owner string) ([]domain.MedicalReport, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "List", trace.WithAttributes(attribute.String("user.id", owner)))
	defer span.End()

	return repo.ListReports(ctx, s.DB, owner)
}

// MetricsByOrgan returns all of owner's metrics for one organ type, newest
// recording first.
func (s *ReportService) MetricsByOrgan(ctx context.Context, owner, organType string) ([]domain.OrganMetric, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "MetricsByOrgan",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.String("organ.type", organType),
		),
	)
	defer span.End()

	return repo.ListMetricsByOrgan(ctx, s.DB, owner, organType)
}

// Download resolves a report id to its stored blob. Returns ErrReportNotFound
// when the row is missing (or owned by someone else) and ErrFileNotFound when
// the row exists but the blob does not.
func (s *ReportService) Download(ctx context.Context, owner string, reportID int64) (*storage.Object, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Download",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.Int64("report.id", reportID),
		),
	)
	defer span.End()

	report, err := repo.GetReport(ctx, s.DB, reportID, owner)
	if err != nil {
		return nil, ErrReportNotFound
	}
	obj, err := s.Blobs.Get(ctx, report.BlobKey)
	if err != nil {
		return nil, ErrFileNotFound
	}
	return obj, nil
}

func (s *ReportService) promptChars() int {
	if s.PromptChars > 0 {
		return s.PromptChars
	}
	return 5000
}

// metricRows flattens the per-organ metrics arrays into insertable rows.
// The organ-level health score is attached to each of its rows.
func metricRows(owner string, reportID int64, recordedDate string, payload *ai.AnalysisPayload) []domain.OrganMetric {
	var rows []domain.OrganMetric
	for organType, organ := range payload.Organs {
		for _, m := range organ.Metrics {
			row := domain.OrganMetric{
				UserID:       owner,
				ReportID:     &reportID,
				OrganType:    organType,
				MetricName:   m.Name,
				MetricValue:  m.Value,
				HealthScore:  organ.Health,
				RecordedDate: recordedDate,
			}
			if m.Status != "" {
				status := m.Status
				row.Status = &status
			}
			if m.Trend != "" {
				trend := m.Trend
				row.Trend = &trend
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// truncateBytes interprets content as text and returns at most max runes.
// Cut on a rune boundary so the prompt never carries a torn UTF-8 sequence.
func truncateBytes(content []byte, max int) string {
	runes := []rune(string(content))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
