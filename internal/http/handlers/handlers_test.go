package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/services"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubReportSvc is a canned ReportService recording the arguments it saw.
type stubReportSvc struct {
	uploadResult *services.UploadResult
	uploadErr    error
	reports      []domain.MedicalReport
	metrics      []domain.OrganMetric
	listErr      error
	object       *storage.Object
	downloadErr  error

	gotOwner    string
	gotFilename string
	gotContent  []byte
	gotOrgan    string
	gotReportID int64
}

func (s *stubReportSvc) Upload(_ context.Context, owner, filename, contentType string, content []byte) (*services.UploadResult, error) {
	s.gotOwner, s.gotFilename, s.gotContent = owner, filename, content
	return s.uploadResult, s.uploadErr
}

func (s *stubReportSvc) List(_ context.Context, owner string) ([]domain.MedicalReport, error) {
	s.gotOwner = owner
	return s.reports, s.listErr
}

func (s *stubReportSvc) MetricsByOrgan(_ context.Context, owner, organType string) ([]domain.OrganMetric, error) {
	s.gotOwner, s.gotOrgan = owner, organType
	return s.metrics, s.listErr
}

func (s *stubReportSvc) Download(_ context.Context, owner string, reportID int64) (*storage.Object, error) {
	s.gotOwner, s.gotReportID = owner, reportID
	return s.object, s.downloadErr
}

// stubChatSvc is a canned ChatService.
type stubChatSvc struct {
	reply    string
	err      error
	messages []domain.ChatMessage

	gotOwner   string
	gotMessage string
	gotLimit   int
}

func (s *stubChatSvc) Answer(_ context.Context, owner, message string) (string, error) {
	s.gotOwner, s.gotMessage = owner, message
	return s.reply, s.err
}

func (s *stubChatSvc) History(_ context.Context, owner string, limit int) ([]domain.ChatMessage, error) {
	s.gotOwner, s.gotLimit = owner, limit
	return s.messages, s.err
}

func newTestRouter(reportSvc ReportService, chatSvc ChatService) *gin.Engine {
	r := gin.New()
	h := New(reportSvc, chatSvc, "demo-user")
	api := r.Group("/api")
	api.POST("/upload", h.UploadReport)
	api.GET("/reports", h.ListReports)
	api.GET("/metrics/:organType", h.ListMetrics)
	api.GET("/files/:reportId", h.DownloadFile)
	api.POST("/chat", h.Chat)
	api.GET("/chat/history", h.ChatHistory)
	return r
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", body.String(), err)
	}
	return out
}

func TestUploadReport_NoFile_Returns400(t *testing.T) {
	r := newTestRouter(&stubReportSvc{}, &stubChatSvc{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	got := decodeJSON(t, rec.Body)
	if got["error"] != "No file provided" {
		t.Fatalf("unexpected error message: %v", got["error"])
	}
}

func TestUploadReport_Success(t *testing.T) {
	svc := &stubReportSvc{
		uploadResult: &services.UploadResult{
			Report:   &domain.MedicalReport{ID: 42, Filename: "bloodwork.pdf"},
			Analysis: services.AnalysisResult{Text: "All clear."},
		},
	}
	r := newTestRouter(svc, &stubChatSvc{})

	body, contentType := multipartBody(t, "file", "bloodwork.pdf", "cholesterol 180")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON(t, rec.Body)
	if got["success"] != true {
		t.Fatalf("expected success=true, got %v", got["success"])
	}
	if got["reportId"] != float64(42) {
		t.Fatalf("expected reportId=42, got %v", got["reportId"])
	}
	if got["analysis"] != "All clear." || got["filename"] != "bloodwork.pdf" {
		t.Fatalf("unexpected payload: %v", got)
	}

	if svc.gotOwner != "u1" {
		t.Fatalf("owner not taken from X-User-ID: %q", svc.gotOwner)
	}
	if svc.gotFilename != "bloodwork.pdf" || string(svc.gotContent) != "cholesterol 180" {
		t.Fatalf("upload args mismatch: %q %q", svc.gotFilename, svc.gotContent)
	}
}

func TestUploadReport_ServiceFailure_Returns500(t *testing.T) {
	svc := &stubReportSvc{uploadErr: errors.New("bucket unavailable")}
	r := newTestRouter(svc, &stubChatSvc{})

	body, contentType := multipartBody(t, "file", "f.pdf", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	got := decodeJSON(t, rec.Body)
	if got["code"] != ErrCodeUploadFailed {
		t.Fatalf("expected code %q, got %v", ErrCodeUploadFailed, got["code"])
	}
}

func TestListReports_DemoOwnerFallbackAndShape(t *testing.T) {
	svc := &stubReportSvc{reports: nil}
	r := newTestRouter(svc, &stubChatSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotOwner != "demo-user" {
		t.Fatalf("expected demo owner fallback, got %q", svc.gotOwner)
	}
	// nil slice must serialize as an empty array, not null.
	if !strings.Contains(rec.Body.String(), `"reports":[]`) {
		t.Fatalf("expected empty reports array, got %s", rec.Body.String())
	}
}

func TestListMetrics_PassesOrganParam(t *testing.T) {
	svc := &stubReportSvc{metrics: []domain.OrganMetric{
		{ID: 1, UserID: "u1", OrganType: "heart", MetricName: "HR", MetricValue: "70", RecordedDate: "2025-06-01"},
	}}
	r := newTestRouter(svc, &stubChatSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/heart", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotOrgan != "heart" || svc.gotOwner != "u1" {
		t.Fatalf("params not forwarded: organ=%q owner=%q", svc.gotOrgan, svc.gotOwner)
	}
	if !strings.Contains(rec.Body.String(), `"organ_type":"heart"`) {
		t.Fatalf("metric row missing from body: %s", rec.Body.String())
	}
}

func TestDownloadFile_NonNumericID_Returns400(t *testing.T) {
	r := newTestRouter(&stubReportSvc{}, &stubChatSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/files/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDownloadFile_NotFoundVariants(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		message string
	}{
		{"report missing", services.ErrReportNotFound, "Report not found"},
		{"blob missing", services.ErrFileNotFound, "File not found in storage"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubReportSvc{downloadErr: tc.err}
			r := newTestRouter(svc, &stubChatSvc{})

			req := httptest.NewRequest(http.MethodGet, "/api/files/42", nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
			got := decodeJSON(t, rec.Body)
			if got["error"] != tc.message {
				t.Fatalf("expected %q, got %v", tc.message, got["error"])
			}
			if svc.gotReportID != 42 {
				t.Fatalf("report id not parsed: %d", svc.gotReportID)
			}
		})
	}
}

func TestDownloadFile_StreamsBlob(t *testing.T) {
	svc := &stubReportSvc{object: &storage.Object{
		Body:          io.NopCloser(strings.NewReader("raw-bytes")),
		ContentType:   "application/pdf",
		ETag:          `"abc"`,
		ContentLength: 9,
	}}
	r := newTestRouter(svc, &stubChatSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/files/7", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "raw-bytes" {
		t.Fatalf("body mismatch: %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type mismatch: %q", ct)
	}
	if etag := rec.Header().Get("ETag"); etag != `"abc"` {
		t.Fatalf("etag mismatch: %q", etag)
	}
}

func TestChat_MissingMessage_Returns400(t *testing.T) {
	r := newTestRouter(&stubReportSvc{}, &stubChatSvc{})

	for _, body := range []string{`{}`, `{"message":""}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
		got := decodeJSON(t, rec.Body)
		if got["error"] != "Message is required" {
			t.Fatalf("body %q: unexpected error %v", body, got["error"])
		}
	}
}

func TestChat_ServiceValidationErrors(t *testing.T) {
	cases := []struct {
		err     error
		message string
	}{
		{services.ErrEmptyMessage, "Message is required"},
		{services.ErrMessageTooLong, "Message is too long"},
	}
	for _, tc := range cases {
		svc := &stubChatSvc{err: tc.err}
		r := newTestRouter(&stubReportSvc{}, svc)

		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"   "}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%v: expected 400, got %d", tc.err, rec.Code)
		}
		got := decodeJSON(t, rec.Body)
		if got["error"] != tc.message {
			t.Fatalf("%v: unexpected message %v", tc.err, got["error"])
		}
	}
}

func TestChat_Success(t *testing.T) {
	svc := &stubChatSvc{reply: "Your trend looks good."}
	r := newTestRouter(&stubReportSvc{}, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"how am I doing?"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON(t, rec.Body)
	if got["response"] != "Your trend looks good." {
		t.Fatalf("unexpected response: %v", got["response"])
	}
	if svc.gotOwner != "u1" || svc.gotMessage != "how am I doing?" {
		t.Fatalf("args not forwarded: owner=%q msg=%q", svc.gotOwner, svc.gotMessage)
	}
}

func TestChatHistory_LimitAndShape(t *testing.T) {
	svc := &stubChatSvc{messages: []domain.ChatMessage{
		{ID: 1, UserID: "u1", Role: domain.RoleUser, Content: "hi"},
		{ID: 2, UserID: "u1", Role: domain.RoleAssistant, Content: "hello"},
	}}
	r := newTestRouter(&stubReportSvc{}, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history?limit=25", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotLimit != 25 {
		t.Fatalf("limit not parsed: %d", svc.gotLimit)
	}
	var got ChatHistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "hi" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestChatHistory_NilMessagesSerializeAsEmptyArray(t *testing.T) {
	svc := &stubChatSvc{messages: nil}
	r := newTestRouter(&stubReportSvc{}, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty messages array, got %s", rec.Body.String())
	}
}
