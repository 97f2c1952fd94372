// Report HTTP handlers.
//
// This file exposes the report-centric REST endpoints:
//   - POST /api/upload             (multipart upload + inline analysis)
//   - GET  /api/reports            (list, newest first, ETag support)
//   - GET  /api/metrics/:organType (per-organ metric history)
//   - GET  /api/files/:reportId    (stream raw file bytes back)
//
// Handlers are transport-thin: they resolve the owner, validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/repo"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/services"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/storage"
)

//
// Service contracts (context-aware)
//

// ReportService defines the upload/read operations consumed by HTTP handlers.
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ReportService interface {
	// Upload stores the file, creates the report row, and runs analysis.
	Upload(ctx context.Context, owner, filename, contentType string, content []byte) (*services.UploadResult, error)
	// List returns all of owner's reports, newest first.
	List(ctx context.Context, owner string) ([]domain.MedicalReport, error)
	// MetricsByOrgan returns owner's metrics for one organ, newest first.
	MetricsByOrgan(ctx context.Context, owner, organType string) ([]domain.OrganMetric, error)
	// Download resolves a report id to its stored blob.
	Download(ctx context.Context, owner string, reportID int64) (*storage.Object, error)
}

// ChatService defines the conversation operations consumed by HTTP handlers.
type ChatService interface {
	// Answer appends the user message, generates a reply, and appends it.
	Answer(ctx context.Context, owner, message string) (string, error)
	// History returns owner's transcript oldest-first, capped at limit.
	History(ctx context.Context, owner string, limit int) ([]domain.ChatMessage, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for reports, metrics, files, and chat.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	reportSvc ReportService
	chatSvc   ChatService
	demoOwner string
}

// New constructs a Handlers instance bound to the given services. demoOwner
// is the identity used when no authentication collaborator populated one.
func New(reportSvc ReportService, chatSvc ChatService, demoOwner string) *Handlers {
	if demoOwner == "" {
		demoOwner = "demo-user"
	}
	return &Handlers{reportSvc: reportSvc, chatSvc: chatSvc, demoOwner: demoOwner}
}

// owner extracts the authenticated user id from the Gin context (set by an
// upstream auth middleware). If absent it falls back to the "X-User-ID"
// header, and finally to the configured demo owner, so the store calls always
// receive an explicit identity.
func (h *Handlers) owner(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if v := strings.TrimSpace(c.GetHeader("X-User-ID")); v != "" {
			return v
		}
	}
	return h.demoOwner
}

//
// DTOs
//

// UploadResponse is the JSON payload returned by the upload endpoint.
// Success is reported once the file is stored, even when the analysis step
// degraded to the fallback text; the dashboard relies on that to open the
// chat panel unconditionally.
type UploadResponse struct {
	Success  bool   `json:"success"  example:"true"`
	ReportID int64  `json:"reportId" example:"42"`
	Analysis string `json:"analysis"`
	Filename string `json:"filename" example:"bloodwork.pdf"`
}

// ListReportsResponse wraps the reports listing.
type ListReportsResponse struct {
	Reports []domain.MedicalReport `json:"reports"`
}

// ListMetricsResponse wraps the per-organ metrics listing.
type ListMetricsResponse struct {
	Metrics []domain.OrganMetric `json:"metrics"`
}

//
// Handlers
//

// UploadReport godoc
// @ID          uploadReport
// @Summary     Upload a medical report
// @Description Stores the file, records report metadata, and runs the AI analysis inline.
// @Tags        Reports
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)" example(user123)
// @Param       file       formData file   true  "Report file"
//
// @Success     200  {object}  handlers.UploadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "No file provided"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /upload [post]
func (h *Handlers) UploadReport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "No file provided")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, "could not read upload")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, "could not read upload")
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	result, err := h.reportSvc.Upload(c.Request.Context(), h.owner(c), fileHeader.Filename, contentType, content)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, UploadResponse{
		Success:  true,
		ReportID: result.Report.ID,
		Analysis: result.Analysis.Text,
		Filename: result.Report.Filename,
	})
}

// ListReports godoc
// @ID          listReports
// @Summary     List uploaded reports
// @Description Returns all of the user's reports, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"      example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches" example(W/\"abc123\")
//
// @Success     200  {object} handlers.ListReportsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	ctx := c.Request.Context()
	uid := h.owner(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.reportSvc.(*services.ReportService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ReportsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"reports:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	reports, err := h.reportSvc.List(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if reports == nil {
		reports = []domain.MedicalReport{}
	}
	ok(c, http.StatusOK, ListReportsResponse{Reports: reports})
}

// ListMetrics godoc
// @ID          listMetrics
// @Summary     List organ metrics
// @Description Returns the user's metrics for one organ type, newest recording first.
// @Tags        Metrics
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)" example(user123)
// @Param       organType  path    string  true  "Organ type"            example(heart)
//
// @Success     200  {object} handlers.ListMetricsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /metrics/{organType} [get]
func (h *Handlers) ListMetrics(c *gin.Context) {
	organType := c.Param("organType")

	metrics, err := h.reportSvc.MetricsByOrgan(c.Request.Context(), h.owner(c), organType)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if metrics == nil {
		metrics = []domain.OrganMetric{}
	}
	ok(c, http.StatusOK, ListMetricsResponse{Metrics: metrics})
}

// DownloadFile godoc
// @ID          downloadFile
// @Summary     Download a report file
// @Description Streams the raw uploaded bytes with the stored content type and ETag.
// @Tags        Reports
// @Produce     octet-stream
//
// @Param       X-User-ID  header  string  false "User ID (demo header)" example(user123)
// @Param       reportId   path    int     true  "Report ID"             example(42)
//
// @Success     200  {file}   file
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Report or file not found"
// @Router      /files/{reportId} [get]
func (h *Handlers) DownloadFile(c *gin.Context) {
	reportID, err := strconv.ParseInt(c.Param("reportId"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "report id must be numeric")
		return
	}

	obj, err := h.reportSvc.Download(c.Request.Context(), h.owner(c), reportID)
	switch {
	case errors.Is(err, services.ErrReportNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "Report not found")
		return
	case errors.Is(err, services.ErrFileNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "File not found in storage")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	defer obj.Body.Close()

	if obj.ETag != "" {
		c.Header("ETag", obj.ETag)
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.ContentLength, contentType, obj.Body, nil)
}
