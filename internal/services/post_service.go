package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/utils"
)

const (
	PostPageSize   = 10
	maxTitleLength = 200
	maxSummaryLen  = 500
	summaryExcerpt = 160
)

type PostInput struct {
	Title         string            `json:"title"`
	Summary       string            `json:"summary"`
	Content       string            `json:"content"`
	CoverImageURL string            `json:"cover_image_url"`
	Tags          []string          `json:"tags"`
	Status        models.PostStatus `json:"status"`
}

type PostService struct {
	posts PostStore
	bus   *events.Bus
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewPostService(posts PostStore, bus *events.Bus, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{
		posts: posts,
		bus:   bus,
		log:   logger.Named("posts"),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: uuid.NewString,
	}
}

func (s *PostService) publish(ctx context.Context, topic events.Topic, p *models.Post, actor *models.User) {
	ev := events.Event{Topic: topic, PostID: p.ID, NewStatus: string(p.Status), At: s.now()}
	if actor != nil {
		ev.ActorID = actor.ID
	}
	s.bus.Publish(ctx, ev)
}

func canManagePost(actor *models.User, p *models.Post) bool {
	return actor != nil && (actor.IsAdmin() || (actor.Role == models.RoleAuthor && actor.ID == p.AuthorID))
}

func canViewPost(viewer *models.User, p *models.Post) bool {
	return p.IsPublished() || (viewer != nil && (viewer.IsAdmin() || viewer.ID == p.AuthorID))
}

func normalizeTags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ",")
}

func (s *PostService) apply(p *models.Post, in PostInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title is limited to %d characters", ErrInvalidInput, maxTitleLength)
	}

	status := in.Status
	if status == "" {
		status = models.PostDraft
	}
	if status != models.PostDraft && status != models.PostPublished {
		return fmt.Errorf("%w: unknown post status %q", ErrInvalidInput, status)
	}

	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		summary = utils.Excerpt(in.Content, summaryExcerpt)
	}
	if utf8.RuneCountInString(summary) > maxSummaryLen {
		summary = string([]rune(summary)[:maxSummaryLen])
	}

	p.Title = title
	p.Summary = summary
	p.Content = in.Content
	p.CoverImageURL = strings.TrimSpace(in.CoverImageURL)
	p.Tags = normalizeTags(in.Tags)
	if status == models.PostPublished && p.PublishedAt == nil {
		now := s.now()
		p.PublishedAt = &now
	}
	p.Status = status
	return nil
}

// CreatePost stores a new post. Only authors and admins may write posts.
func (s *PostService) CreatePost(ctx context.Context, actor *models.User, in PostInput) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsPrivileged() {
		return nil, ErrNotAuthorized
	}

	now := s.now()
	p := &models.Post{
		ID:         s.newID(),
		AuthorID:   actor.ID,
		AuthorName: actor.Username,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.apply(p, in); err != nil {
		return nil, err
	}

	if err := s.posts.CreatePost(ctx, p); err != nil {
		s.log.Error("create post failed", zap.Error(err))
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.publish(ctx, events.PostCreated, p, actor)
	return p, nil
}

// GetPost returns a post. Drafts are reported as missing to anyone but
// their author and admins.
func (s *PostService) GetPost(ctx context.Context, viewer *models.User, id string) (*models.Post, error) {
	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewPost(viewer, p) {
		return nil, ErrPostNotFound
	}
	return p, nil
}

// RecordView bumps the view counter. Failures are logged and dropped.
func (s *PostService) RecordView(ctx context.Context, p *models.Post) {
	if !p.IsPublished() {
		return
	}
	if err := s.posts.IncrementPostCounter(ctx, p.ID, CounterViews, 1); err != nil {
		s.log.Warn("record view failed", zap.String("post_id", p.ID), zap.Error(err))
		return
	}
	p.Views++
	s.publish(ctx, events.PostViewed, p, nil)
}

func (s *PostService) UpdatePost(ctx context.Context, actor *models.User, id string, in PostInput) (*models.Post, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}

	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManagePost(actor, p) {
		return nil, ErrNotAuthorized
	}

	if err := s.apply(p, in); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.posts.UpdatePost(ctx, p); err != nil {
		s.log.Error("update post failed", zap.String("post_id", id), zap.Error(err))
		return nil, fmt.Errorf("update post: %w", err)
	}

	s.publish(ctx, events.PostUpdated, p, actor)
	return p, nil
}

func (s *PostService) DeletePost(ctx context.Context, actor *models.User, id string) error {
	if actor == nil {
		return ErrUnauthenticated
	}

	p, err := s.posts.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if !canManagePost(actor, p) {
		return ErrNotAuthorized
	}

	if err := s.posts.DeletePost(ctx, id); err != nil {
		s.log.Error("delete post failed", zap.String("post_id", id), zap.Error(err))
		return fmt.Errorf("delete post: %w", err)
	}

	s.publish(ctx, events.PostDeleted, p, actor)
	return nil
}

// ListPublished pages published posts, newest first. page starts at 1.
func (s *PostService) ListPublished(ctx context.Context, page, pageSize int) ([]models.Post, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = PostPageSize
	}
	return s.posts.ListPosts(ctx, PostQuery{
		Status:  models.PostPublished,
		OrderBy: PostOrderRecent,
		Limit:   pageSize,
		Offset:  (page - 1) * pageSize,
	})
}

// ListTrending returns the best scored published posts.
func (s *PostService) ListTrending(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 || limit > 50 {
		limit = PostPageSize
	}
	posts, _, err := s.posts.ListPosts(ctx, PostQuery{
		Status:  models.PostPublished,
		OrderBy: PostOrderScore,
		Limit:   limit,
	})
	return posts, err
}

// ListOwn returns every post of the actor, drafts included.
func (s *PostService) ListOwn(ctx context.Context, actor *models.User, page int) ([]models.Post, int64, error) {
	if actor == nil {
		return nil, 0, ErrUnauthenticated
	}
	if page < 1 {
		page = 1
	}
	return s.posts.ListPosts(ctx, PostQuery{
		AuthorID: actor.ID,
		OrderBy:  PostOrderRecent,
		Limit:    PostPageSize,
		Offset:   (page - 1) * PostPageSize,
	})
}

// RenderContent turns the Markdown body into sanitized HTML.
func (s *PostService) RenderContent(p *models.Post) template.HTML {
	return utils.RenderMarkdown(p.Content)
}

// ShareLinks builds social share URLs for a post page.
func (s *PostService) ShareLinks(siteURL string, p *models.Post) utils.ShareLinks {
	return utils.BuildShareLinks(strings.TrimRight(siteURL, "/")+"/blog/"+p.ID, p.Title)
}

// ImportDraft stores a draft built from an external source unless a post
// with the same source URL exists. It reports whether a post was created.
func (s *PostService) ImportDraft(ctx context.Context, actor *models.User, p *models.Post) (bool, error) {
	if err := requireAdmin(actor); err != nil {
		return false, err
	}
	if p.SourceURL != "" {
		_, err := s.posts.FindPostBySourceURL(ctx, p.SourceURL)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, ErrPostNotFound) {
			return false, err
		}
	}

	now := s.now()
	p.ID = s.newID()
	p.AuthorID = actor.ID
	p.AuthorName = actor.Username
	p.Status = models.PostDraft
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Summary == "" {
		p.Summary = utils.Excerpt(p.Content, summaryExcerpt)
	}

	if err := s.posts.CreatePost(ctx, p); err != nil {
		return false, fmt.Errorf("import post: %w", err)
	}
	s.publish(ctx, events.PostCreated, p, actor)
	return true, nil
}
