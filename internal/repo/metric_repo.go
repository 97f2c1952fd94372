// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the OrganMetric
// model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
)

// InsertMetrics bulk-inserts organ metric rows. A nil or empty slice is a
// no-op. Rows are independent; two concurrent bulk inserts for the same owner
// interleave without conflict.
func InsertMetrics(ctx context.Context, db *gorm.DB, metrics []domain.OrganMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range metrics {
		if metrics[i].CreatedAt.IsZero() {
			metrics[i].CreatedAt = now
		}
	}
	return db.WithContext(ctx).Create(&metrics).Error
}

// ListMetricsByOrgan returns all metrics for a user filtered by organ type,
// newest recording first.
func ListMetricsByOrgan(ctx context.Context, db *gorm.DB, userID, organType string) ([]domain.OrganMetric, error) {
	var out []domain.OrganMetric
	err := db.WithContext(ctx).
		Where("user_id = ? AND organ_type = ?", userID, organType).
		Order("recorded_date DESC, id DESC").
		Find(&out).Error
	return out, err
}

// RecentMetrics returns up to limit metrics for a user across all organs,
// newest first. Used to build chat context blocks.
func RecentMetrics(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.OrganMetric, error) {
	var out []domain.OrganMetric
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMetricsForReport returns the number of metric rows attributed to a
// report. Uses a raw COUNT so a missing table surfaces as an error.
func CountMetricsForReport(ctx context.Context, db *gorm.DB, reportID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM organ_metrics WHERE report_id = ?", reportID).
		Scan(&total).Error
	return total, err
}
