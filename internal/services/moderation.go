package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"inkwell/internal/events"
	"inkwell/internal/models"
)

// ModerationQueue is a snapshot of one dashboard list.
type ModerationQueue struct {
	Status     models.CommentStatus `json:"status"`
	Items      []models.Comment     `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
	HasMore    bool                 `json:"has_more"`
	LoadedAt   time.Time            `json:"loaded_at"`
}

type ModerationStats struct {
	Comments map[models.CommentStatus]int64 `json:"comments"`
	Posts    int64                          `json:"posts"`
	Users    int64                          `json:"users"`
}

type queueState struct {
	loaded     bool
	items      []models.Comment
	nextCursor string
	hasMore    bool
	loadedAt   time.Time
}

// ModerationDashboard keeps the pending, flagged and recently approved lists.
// Each list loads on first access and stays cached until Reload or until an
// event enters or leaves its status.
type ModerationDashboard struct {
	comments *CommentService
	posts    PostStore
	users    UserStore
	log      *zap.Logger

	mu     sync.Mutex
	queues map[models.CommentStatus]*queueState

	unsubscribe func()
}

func NewModerationDashboard(comments *CommentService, store Store, bus *events.Bus, logger *zap.Logger) *ModerationDashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ModerationDashboard{
		comments: comments,
		posts:    store,
		users:    store,
		log:      logger.Named("moderation"),
		queues:   make(map[models.CommentStatus]*queueState, len(moderationQueues)),
	}
	for _, st := range moderationQueues {
		d.queues[st] = &queueState{}
	}
	d.unsubscribe = bus.Subscribe(d.onCommentEvent,
		events.CommentCreated,
		events.CommentUpdated,
		events.CommentDeleted,
		events.CommentModerated,
		events.CommentFlagged,
	)
	return d
}

// Close detaches the dashboard from the event bus.
func (d *ModerationDashboard) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
}

func (d *ModerationDashboard) onCommentEvent(_ context.Context, ev events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for status, q := range d.queues {
		if string(status) == ev.OldStatus || string(status) == ev.NewStatus {
			*q = queueState{}
		}
	}
}

// Loaded reports whether a queue currently holds a cached list.
func (d *ModerationDashboard) Loaded(status models.CommentStatus) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.queues[status]
	return ok && q.loaded
}

// Queue returns the cached list, loading its first page on first use.
func (d *ModerationDashboard) Queue(ctx context.Context, actor *models.User, status models.CommentStatus) (*ModerationQueue, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[status]
	if !ok {
		return nil, ErrInvalidStatus
	}
	if !q.loaded {
		if err := d.loadFirst(ctx, actor, status, q); err != nil {
			return nil, err
		}
	}
	return q.snapshot(status), nil
}

// LoadMore appends the next page of a queue.
func (d *ModerationDashboard) LoadMore(ctx context.Context, actor *models.User, status models.CommentStatus) (*ModerationQueue, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[status]
	if !ok {
		return nil, ErrInvalidStatus
	}
	if !q.loaded {
		if err := d.loadFirst(ctx, actor, status, q); err != nil {
			return nil, err
		}
		return q.snapshot(status), nil
	}
	if !q.hasMore {
		return q.snapshot(status), nil
	}

	page, err := d.comments.ListModerationQueue(ctx, actor, status, q.nextCursor)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(q.items))
	for _, c := range q.items {
		seen[c.ID] = true
	}
	for _, c := range page.Items {
		if !seen[c.ID] {
			q.items = append(q.items, c)
		}
	}
	q.nextCursor = page.NextCursor
	q.hasMore = page.HasMore
	return q.snapshot(status), nil
}

// Reload drops the cached list and loads its first page again.
func (d *ModerationDashboard) Reload(ctx context.Context, actor *models.User, status models.CommentStatus) (*ModerationQueue, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[status]
	if !ok {
		return nil, ErrInvalidStatus
	}
	*q = queueState{}
	if err := d.loadFirst(ctx, actor, status, q); err != nil {
		return nil, err
	}
	return q.snapshot(status), nil
}

func (d *ModerationDashboard) loadFirst(ctx context.Context, actor *models.User, status models.CommentStatus, q *queueState) error {
	page, err := d.comments.ListModerationQueue(ctx, actor, status, "")
	if err != nil {
		d.log.Error("load moderation queue failed", zap.String("status", string(status)), zap.Error(err))
		return err
	}
	*q = queueState{
		loaded:     true,
		items:      page.Items,
		nextCursor: page.NextCursor,
		hasMore:    page.HasMore,
		loadedAt:   time.Now().UTC(),
	}
	return nil
}

func (q *queueState) snapshot(status models.CommentStatus) *ModerationQueue {
	return &ModerationQueue{
		Status:     status,
		Items:      append([]models.Comment{}, q.items...),
		NextCursor: q.nextCursor,
		HasMore:    q.hasMore,
		LoadedAt:   q.loadedAt,
	}
}

// Stats counts comments per status along with post and user totals.
func (d *ModerationDashboard) Stats(ctx context.Context, actor *models.User) (*ModerationStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	counts, err := d.comments.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := d.posts.CountPosts(ctx)
	if err != nil {
		return nil, err
	}
	users, err := d.users.CountUsers(ctx)
	if err != nil {
		return nil, err
	}

	if counts == nil {
		counts = map[models.CommentStatus]int64{}
	}
	for _, st := range []models.CommentStatus{models.CommentPending, models.CommentApproved, models.CommentFlagged, models.CommentDeleted} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return &ModerationStats{Comments: counts, Posts: posts, Users: users}, nil
}

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	return nil
}
