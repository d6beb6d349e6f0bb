package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if c.ParentID == nil {
			return nil
		}

		res := tx.Model(&models.Comment{}).
			Where("id = ?", *c.ParentID).
			UpdateColumn("reply_count", gorm.Expr("reply_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrParentNotFound
		}
		return nil
	})
}

func (s *Store) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err, services.ErrCommentNotFound)
	}
	return &c, nil
}

func (s *Store) ListComments(ctx context.Context, q services.CommentQuery) ([]models.Comment, error) {
	col := "created_at"
	if q.OrderBy == services.OrderByUpdated {
		col = "updated_at"
	}

	tx := s.db.WithContext(ctx).Model(&models.Comment{})
	if q.PostID != "" {
		tx = tx.Where("post_id = ?", q.PostID)
	}
	if q.TopLevel {
		tx = tx.Where("parent_id IS NULL")
	}
	if q.ParentID != nil {
		tx = tx.Where("parent_id = ?", *q.ParentID)
	}
	if q.AuthorID != 0 {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}

	dir, cmp := "DESC", "<"
	if q.Ascending {
		dir, cmp = "ASC", ">"
	}
	if q.After != nil {
		tx = tx.Where("("+col+" "+cmp+" ? OR ("+col+" = ? AND id "+cmp+" ?))", q.After.At, q.After.At, q.After.ID)
	}
	tx = tx.Order(col + " " + dir).Order("id " + dir)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var out []models.Comment
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateComment(ctx context.Context, c *models.Comment, expected models.CommentStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND status = ?", c.ID, expected).
		Updates(map[string]interface{}{
			"content":     c.Content,
			"status":      c.Status,
			"flag_reason": c.FlagReason,
			"flagged_by":  c.FlaggedBy,
			"updated_at":  c.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.GetComment(ctx, c.ID); err != nil {
			return err
		}
		return services.ErrConcurrentModification
	}
	return nil
}

func (s *Store) HardDeleteLeaf(ctx context.Context, c *models.Comment) (bool, error) {
	removed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the leaf check and the delete are one statement
		res := tx.Where("id = ? AND reply_count = 0", c.ID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var stored models.Comment
			if err := tx.Select("id", "reply_count").Where("id = ?", c.ID).First(&stored).Error; err != nil {
				return notFound(err, services.ErrCommentNotFound)
			}
			c.ReplyCount = stored.ReplyCount
			return nil
		}
		removed = true

		if err := tx.Where("comment_id = ?", c.ID).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if c.ParentID != nil {
			return tx.Model(&models.Comment{}).
				Where("id = ?", *c.ParentID).
				UpdateColumn("reply_count", gorm.Expr("GREATEST(reply_count - 1, 0)")).Error
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *Store) AddCommentLike(ctx context.Context, commentID string, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.CommentLike{CommentID: commentID, UserID: userID}
		if err := tx.Create(&like).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return services.ErrAlreadyLiked
			}
			return err
		}

		res := tx.Model(&models.Comment{}).
			Where("id = ?", commentID).
			UpdateColumn("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrCommentNotFound
		}
		return nil
	})
}

func (s *Store) RemoveCommentLike(ctx context.Context, commentID string, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrNotLiked
		}
		return tx.Model(&models.Comment{}).
			Where("id = ?", commentID).
			UpdateColumn("likes", gorm.Expr("GREATEST(likes - 1, 0)")).Error
	})
}

func (s *Store) CountCommentsByStatus(ctx context.Context) (map[models.CommentStatus]int64, error) {
	var rows []struct {
		Status models.CommentStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.CommentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
