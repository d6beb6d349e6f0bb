package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/utils"
)

const (
	rankingQueueSize = 1000
	rankingBatchSize = 50
	rankingInterval  = 500 * time.Millisecond
)

// RankingService recomputes post scores in the background. Requests for the
// same post are collapsed while one is queued.
type RankingService struct {
	posts   PostStore
	log     *zap.Logger
	now     func() time.Time
	queue   chan string
	pending map[string]bool
	mu      sync.Mutex
}

// NewRankingService creates the service and schedules updates for every post
// and comment event that changes engagement.
func NewRankingService(posts PostStore, bus *events.Bus, logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RankingService{
		posts:   posts,
		log:     logger.Named("ranking"),
		now:     time.Now,
		queue:   make(chan string, rankingQueueSize),
		pending: make(map[string]bool),
	}
	if bus != nil {
		bus.Subscribe(func(_ context.Context, ev events.Event) {
			s.ScheduleUpdate(ev.PostID)
		},
			events.PostCreated,
			events.PostUpdated,
			events.PostViewed,
			events.CommentCreated,
			events.CommentDeleted,
		)
	}
	return s
}

// ScheduleUpdate queues postID without blocking. A full queue drops the
// request.
func (s *RankingService) ScheduleUpdate(postID string) {
	if postID == "" {
		return
	}

	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
	default:
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		s.log.Warn("ranking queue full, skipping post", zap.String("post_id", postID))
	}
}

// Run processes queued updates in batches until ctx is done.
func (s *RankingService) Run(ctx context.Context) {
	batch := make([]string, 0, rankingBatchSize)
	ticker := time.NewTicker(rankingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				s.processBatch(context.Background(), batch)
			}
			return
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= rankingBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, postIDs []string) {
	for _, postID := range postIDs {
		if err := s.UpdateScore(ctx, postID); err != nil && !errors.Is(err, ErrPostNotFound) {
			s.log.Warn("update score failed", zap.String("post_id", postID), zap.Error(err))
		}

		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}
}

// UpdateScore recomputes one post's score synchronously.
func (s *RankingService) UpdateScore(ctx context.Context, postID string) error {
	p, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	published := p.CreatedAt
	if p.PublishedAt != nil {
		published = *p.PublishedAt
	}
	score := int(utils.CalculateScore(published, s.now(), p.Likes, p.Views, p.CommentCount))
	if score == p.Score {
		return nil
	}
	return s.posts.SetPostScore(ctx, postID, score)
}

// RefreshRecent rescores posts published in the last week plus the current
// top 30, so decayed scores drop even without new activity.
func (s *RankingService) RefreshRecent(ctx context.Context) int {
	processed := make(map[string]bool)

	since := s.now().AddDate(0, 0, -7)
	recent, _, err := s.posts.ListPosts(ctx, PostQuery{Status: models.PostPublished, PublishedSince: &since, OrderBy: PostOrderRecent})
	if err != nil {
		s.log.Error("list recent posts failed", zap.Error(err))
	}
	top, _, err := s.posts.ListPosts(ctx, PostQuery{Status: models.PostPublished, OrderBy: PostOrderScore, Limit: 30})
	if err != nil {
		s.log.Error("list top posts failed", zap.Error(err))
	}

	for _, p := range append(recent, top...) {
		if processed[p.ID] {
			continue
		}
		processed[p.ID] = true
		if err := s.UpdateScore(ctx, p.ID); err != nil {
			s.log.Warn("refresh score failed", zap.String("post_id", p.ID), zap.Error(err))
		}
	}

	s.log.Info("scores refreshed", zap.Int("posts", len(processed)))
	return len(processed)
}

// StartScheduledRefresh runs RefreshRecent every day at 03:00 local time
// until ctx is done.
func (s *RankingService) StartScheduledRefresh(ctx context.Context) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.RefreshRecent(ctx)
			}
		}
	}()
}
