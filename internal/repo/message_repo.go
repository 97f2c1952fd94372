// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatMessage
// model. The transcript is append-only; rows are never updated or deleted.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
)

// AppendMessage inserts a transcript row for the given owner and role.
func AppendMessage(ctx context.Context, db *gorm.DB, userID, role, content string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListHistory returns up to limit transcript rows for a user, oldest first
// (CreatedAt ASC, ID ASC for determinism when timestamps collide).
func ListHistory(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM chat_messages WHERE user_id = ?", userID).
		Scan(&total).Error
	return total, err
}
