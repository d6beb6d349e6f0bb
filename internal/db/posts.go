package db

import (
	"context"

	"gorm.io/gorm"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

func (s *Store) CreatePost(ctx context.Context, p *models.Post) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err, services.ErrPostNotFound)
	}
	return &p, nil
}

// UpdatePost writes the editable columns. Counters and score are left to
// IncrementPostCounter and SetPostScore.
func (s *Store) UpdatePost(ctx context.Context, p *models.Post) error {
	res := s.db.WithContext(ctx).Model(p).
		Select("title", "summary", "content", "cover_image_url", "tags", "status", "published_at", "updated_at").
		Updates(p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrPostNotFound
	}
	return nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return services.ErrPostNotFound
		}
		return nil
	})
}

func (s *Store) ListPosts(ctx context.Context, q services.PostQuery) ([]models.Post, int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Post{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.AuthorID != 0 {
		tx = tx.Where("author_id = ?", q.AuthorID)
	}
	if q.PublishedSince != nil {
		tx = tx.Where("published_at >= ?", *q.PublishedSince)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if q.OrderBy == services.PostOrderScore {
		tx = tx.Order("score DESC")
	}
	tx = tx.Order("COALESCE(published_at, created_at) DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var posts []models.Post
	if err := tx.Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

var postCounterColumns = map[services.PostCounter]string{
	services.CounterViews:    "views",
	services.CounterLikes:    "likes",
	services.CounterComments: "comment_count",
}

func (s *Store) IncrementPostCounter(ctx context.Context, id string, counter services.PostCounter, delta int) error {
	col, ok := postCounterColumns[counter]
	if !ok {
		return services.ErrInvalidInput
	}

	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(col, gorm.Expr("GREATEST("+col+" + ?, 0)", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return services.ErrPostNotFound
	}
	return nil
}

func (s *Store) FindPostBySourceURL(ctx context.Context, url string) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Where("source_url = ?", url).First(&p).Error; err != nil {
		return nil, notFound(err, services.ErrPostNotFound)
	}
	return &p, nil
}

func (s *Store) SetPostScore(ctx context.Context, id string, score int) error {
	return s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).UpdateColumn("score", score).Error
}

func (s *Store) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, err
}
