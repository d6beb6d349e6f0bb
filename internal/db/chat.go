package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

func (s *Store) SaveChatMessage(ctx context.Context, m *models.ChatMessage) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) GetChatMessage(ctx context.Context, id string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err, services.ErrChatMessageNotFound)
	}
	return &m, nil
}

// ListSessionMessages returns the latest limit messages, oldest first.
func (s *Store) ListSessionMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	tx := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var msgs []models.ChatMessage
	if err := tx.Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Store) SaveChatFeedback(ctx context.Context, f *models.ChatFeedback) error {
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return services.ErrFeedbackGiven
		}
		return err
	}
	return nil
}

func (s *Store) bumpAnalytics(ctx context.Context, ruleID, column string) error {
	row := models.ChatAnalytics{RuleID: ruleID, UpdatedAt: time.Now().UTC()}
	switch column {
	case "hits":
		row.Hits = 1
	case "helpful":
		row.Helpful = 1
	case "unhelpful":
		row.Unhelpful = 1
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "rule_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr("chat_analytics." + column + " + 1"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func (s *Store) RecordRuleHit(ctx context.Context, ruleID string) error {
	return s.bumpAnalytics(ctx, ruleID, "hits")
}

func (s *Store) RecordRuleFeedback(ctx context.Context, ruleID string, helpful bool) error {
	if helpful {
		return s.bumpAnalytics(ctx, ruleID, "helpful")
	}
	return s.bumpAnalytics(ctx, ruleID, "unhelpful")
}

func (s *Store) ListChatAnalytics(ctx context.Context) ([]models.ChatAnalytics, error) {
	var rows []models.ChatAnalytics
	err := s.db.WithContext(ctx).Order("hits DESC").Order("rule_id ASC").Find(&rows).Error
	return rows, err
}
