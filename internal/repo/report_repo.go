// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// MedicalReport model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a report is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateReport inserts a MedicalReport row in the "pending" analysis state
// and returns it with the generated id populated.
func CreateReport(ctx context.Context, db *gorm.DB, userID, filename string, fileSize int64, fileType, blobKey, uploadDate string) (*domain.MedicalReport, error) {
	r := &domain.MedicalReport{
		UserID:         userID,
		Filename:       filename,
		FileSize:       fileSize,
		FileType:       fileType,
		BlobKey:        blobKey,
		AnalysisStatus: domain.AnalysisPending,
		UploadDate:     uploadDate,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// CompleteAnalysis marks a report "completed" and stores the raw analysis
// text verbatim. The update is applied in place regardless of how the
// analysis text was produced.
func CompleteAnalysis(ctx context.Context, db *gorm.DB, id int64, analysis string) error {
	res := db.WithContext(ctx).Model(&domain.MedicalReport{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"analysis_status": domain.AnalysisCompleted,
			"analysis_data":   analysis,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReports returns all reports for a user, newest first.
func ListReports(ctx context.Context, db *gorm.DB, userID string) ([]domain.MedicalReport, error) {
	var out []domain.MedicalReport
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// RecentReports returns up to limit reports for a user, newest first.
// Used to build chat context blocks.
func RecentReports(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.MedicalReport, error) {
	var out []domain.MedicalReport
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetReport fetches a single report by id, enforcing ownership.
// Returns ErrNotFound when the row does not exist or belongs to another user.
func GetReport(ctx context.Context, db *gorm.DB, id int64, userID string) (*domain.MedicalReport, error) {
	var r domain.MedicalReport
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}
