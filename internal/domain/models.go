// Package domain defines the persistence models for medical reports, organ
// metrics, and chat messages. These types are mapped with GORM and form the
// core data layer of the health dashboard backend.
package domain

import "time"

// Analysis lifecycle markers stored in MedicalReport.AnalysisStatus.
// Convention only; the column is a free-form string and is not enforced
// by a database constraint.
const (
	AnalysisPending   = "pending"
	AnalysisCompleted = "completed"
)

// Message roles stored in ChatMessage.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MedicalReport is the metadata row for one uploaded report file. The raw
// bytes live in the blob store under BlobKey; AnalysisData holds the verbatim
// model response once the analysis step has run.
//
// Fields:
//   - ID: autoincrement primary key.
//   - UserID: owner of the report; indexed for per-user listings.
//   - Filename / FileSize / FileType: as declared by the upload.
//   - BlobKey: object key in the blob store (column r2_key, kept for
//     compatibility with the dashboard UI contract).
//   - AnalysisStatus: "pending" until the analysis step runs, then "completed".
//   - AnalysisData: nullable raw text of the model response.
//   - UploadDate: calendar date (YYYY-MM-DD) of the upload.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type MedicalReport struct {
	ID             int64     `json:"id"              gorm:"primaryKey;autoIncrement"`
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;index:idx_user_reports"`
	Filename       string    `json:"filename"        gorm:"type:varchar(255);not null"`
	FileSize       int64     `json:"file_size"       gorm:"not null"`
	FileType       string    `json:"file_type"       gorm:"type:varchar(128);not null"`
	BlobKey        string    `json:"r2_key"          gorm:"column:r2_key;type:varchar(512);not null"`
	AnalysisStatus string    `json:"analysis_status" gorm:"type:varchar(32);not null;default:'pending'"`
	AnalysisData   *string   `json:"analysis_data"   gorm:"type:text"`
	UploadDate     string    `json:"upload_date"     gorm:"type:varchar(10);not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for MedicalReport.
func (MedicalReport) TableName() string { return "medical_reports" }

// OrganMetric is one named, valued health observation attributed to an organ
// category. Rows are created in bulk when an analysis response contains a
// parseable organs block; a metric may also exist without a report.
//
// Fields:
//   - ID: autoincrement primary key.
//   - UserID: owner of the metric; indexed together with OrganType.
//   - ReportID: optional back-reference to the originating report (nullable,
//     no FK constraint; rows are independent of report lifecycle).
//   - OrganType: organ category (conventionally heart/lungs/liver/kidneys).
//   - MetricName / MetricValue: observation name and value (unit embedded).
//   - HealthScore: optional 0–100 score for the organ at recording time.
//   - Status / Trend: optional free-form qualifiers from the analysis.
//   - RecordedDate: calendar date the observation refers to.
type OrganMetric struct {
	ID           int64     `json:"id"            gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);not null;index:idx_user_organ,priority:1"`
	ReportID     *int64    `json:"report_id"     gorm:"index"`
	OrganType    string    `json:"organ_type"    gorm:"type:varchar(64);not null;index:idx_user_organ,priority:2"`
	MetricName   string    `json:"metric_name"   gorm:"type:varchar(128);not null"`
	MetricValue  string    `json:"metric_value"  gorm:"type:varchar(128);not null"`
	HealthScore  *float64  `json:"health_score"`
	Status       *string   `json:"status"        gorm:"type:varchar(64)"`
	Trend        *string   `json:"trend"         gorm:"type:varchar(64)"`
	RecordedDate string    `json:"recorded_date" gorm:"type:varchar(10);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for OrganMetric.
func (OrganMetric) TableName() string { return "organ_metrics" }

// ChatMessage is one entry of the per-user conversation transcript. The log
// is append-only: every inbound user message and every outbound assistant
// message (fallback text included) is persisted in temporal order.
type ChatMessage struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_msgs,priority:1"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_msgs,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
