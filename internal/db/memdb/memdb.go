// Package memdb is an in-memory Store used by tests and STORAGE=memory.
// Values are copied in and out, so callers never share state with the store.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

type likeKey struct {
	commentID string
	userID    uint
}

type MemDB struct {
	mu sync.RWMutex

	comments map[string]models.Comment
	likes    map[likeKey]time.Time
	posts    map[string]models.Post
	users    map[uint]models.User
	audits   []models.RoleChangeAudit
	messages map[string]models.ChatMessage
	feedback map[string]models.ChatFeedback
	stats    map[string]models.ChatAnalytics
	notes    []models.Notification

	nextUserID  uint
	nextAuditID uint
	nextNoteID  uint
	nextFbID    uint
}

var _ services.Store = (*MemDB)(nil)

func New() *MemDB {
	return &MemDB{
		comments: make(map[string]models.Comment),
		likes:    make(map[likeKey]time.Time),
		posts:    make(map[string]models.Post),
		users:    make(map[uint]models.User),
		messages: make(map[string]models.ChatMessage),
		feedback: make(map[string]models.ChatFeedback),
		stats:    make(map[string]models.ChatAnalytics),
	}
}

// Close - no-op
func (db *MemDB) Close() error { return nil }

// ---- comments

func (db *MemDB) CreateComment(_ context.Context, c *models.Comment) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c.ParentID != nil {
		parent, ok := db.comments[*c.ParentID]
		if !ok {
			return services.ErrParentNotFound
		}
		parent.ReplyCount++
		db.comments[parent.ID] = parent
	}
	db.comments[c.ID] = *c
	return nil
}

func (db *MemDB) GetComment(_ context.Context, id string) (*models.Comment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	c, ok := db.comments[id]
	if !ok {
		return nil, services.ErrCommentNotFound
	}
	return &c, nil
}

func commentTime(c *models.Comment, order services.CommentOrder) time.Time {
	if order == services.OrderByUpdated {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

func (db *MemDB) ListComments(_ context.Context, q services.CommentQuery) ([]models.Comment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	statuses := make(map[models.CommentStatus]bool, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses[s] = true
	}

	out := make([]models.Comment, 0)
	for _, c := range db.comments {
		if q.PostID != "" && c.PostID != q.PostID {
			continue
		}
		if q.TopLevel && c.ParentID != nil {
			continue
		}
		if q.ParentID != nil && (c.ParentID == nil || *c.ParentID != *q.ParentID) {
			continue
		}
		if q.AuthorID != 0 && c.AuthorID != q.AuthorID {
			continue
		}
		if len(statuses) > 0 && !statuses[c.Status] {
			continue
		}
		if q.After != nil {
			ts := commentTime(&c, q.OrderBy)
			var past bool
			if q.Ascending {
				past = ts.After(q.After.At) || (ts.Equal(q.After.At) && c.ID > q.After.ID)
			} else {
				past = ts.Before(q.After.At) || (ts.Equal(q.After.At) && c.ID < q.After.ID)
			}
			if !past {
				continue
			}
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := commentTime(&out[i], q.OrderBy), commentTime(&out[j], q.OrderBy)
		if !ti.Equal(tj) {
			if q.Ascending {
				return ti.Before(tj)
			}
			return ti.After(tj)
		}
		if q.Ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (db *MemDB) UpdateComment(_ context.Context, c *models.Comment, expected models.CommentStatus) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.comments[c.ID]
	if !ok {
		return services.ErrCommentNotFound
	}
	if stored.Status != expected {
		return services.ErrConcurrentModification
	}

	stored.Content = c.Content
	stored.Status = c.Status
	stored.FlagReason = c.FlagReason
	stored.FlaggedBy = c.FlaggedBy
	stored.UpdatedAt = c.UpdatedAt
	db.comments[c.ID] = stored

	// counters are owned by the store
	c.Likes = stored.Likes
	c.ReplyCount = stored.ReplyCount
	return nil
}

func (db *MemDB) HardDeleteLeaf(_ context.Context, c *models.Comment) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.comments[c.ID]
	if !ok {
		return false, services.ErrCommentNotFound
	}
	if stored.ReplyCount > 0 {
		c.ReplyCount = stored.ReplyCount
		return false, nil
	}

	delete(db.comments, c.ID)
	for k := range db.likes {
		if k.commentID == c.ID {
			delete(db.likes, k)
		}
	}
	if stored.ParentID != nil {
		if parent, ok := db.comments[*stored.ParentID]; ok && parent.ReplyCount > 0 {
			parent.ReplyCount--
			db.comments[parent.ID] = parent
		}
	}
	return true, nil
}

func (db *MemDB) AddCommentLike(_ context.Context, commentID string, userID uint) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[commentID]
	if !ok {
		return services.ErrCommentNotFound
	}
	key := likeKey{commentID, userID}
	if _, liked := db.likes[key]; liked {
		return services.ErrAlreadyLiked
	}
	db.likes[key] = time.Now()
	c.Likes++
	db.comments[commentID] = c
	return nil
}

func (db *MemDB) RemoveCommentLike(_ context.Context, commentID string, userID uint) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.comments[commentID]
	if !ok {
		return services.ErrCommentNotFound
	}
	key := likeKey{commentID, userID}
	if _, liked := db.likes[key]; !liked {
		return services.ErrNotLiked
	}
	delete(db.likes, key)
	if c.Likes > 0 {
		c.Likes--
	}
	db.comments[commentID] = c
	return nil
}

func (db *MemDB) CountCommentsByStatus(_ context.Context) (map[models.CommentStatus]int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	counts := make(map[models.CommentStatus]int64)
	for _, c := range db.comments {
		counts[c.Status]++
	}
	return counts, nil
}

// ---- posts

func (db *MemDB) CreatePost(_ context.Context, p *models.Post) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.posts[p.ID] = *p
	return nil
}

func (db *MemDB) GetPost(_ context.Context, id string) (*models.Post, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.posts[id]
	if !ok {
		return nil, services.ErrPostNotFound
	}
	return &p, nil
}

func (db *MemDB) UpdatePost(_ context.Context, p *models.Post) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.posts[p.ID]
	if !ok {
		return services.ErrPostNotFound
	}
	// counters only move through IncrementPostCounter and SetPostScore
	p.Views, p.Likes, p.CommentCount, p.Score = stored.Views, stored.Likes, stored.CommentCount, stored.Score
	db.posts[p.ID] = *p
	return nil
}

func (db *MemDB) DeletePost(_ context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.posts[id]; !ok {
		return services.ErrPostNotFound
	}
	delete(db.posts, id)
	for cid, c := range db.comments {
		if c.PostID == id {
			delete(db.comments, cid)
		}
	}
	for k := range db.likes {
		if _, ok := db.comments[k.commentID]; !ok {
			delete(db.likes, k)
		}
	}
	return nil
}

func postTime(p *models.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (db *MemDB) ListPosts(_ context.Context, q services.PostQuery) ([]models.Post, int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Post, 0)
	for _, p := range db.posts {
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		if q.AuthorID != 0 && p.AuthorID != q.AuthorID {
			continue
		}
		if q.PublishedSince != nil && (p.PublishedAt == nil || p.PublishedAt.Before(*q.PublishedSince)) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if q.OrderBy == services.PostOrderScore && out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ti, tj := postTime(&out[i]), postTime(&out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})

	total := int64(len(out))
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []models.Post{}, total, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (db *MemDB) IncrementPostCounter(_ context.Context, id string, counter services.PostCounter, delta int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return services.ErrPostNotFound
	}
	switch counter {
	case services.CounterViews:
		p.Views += delta
	case services.CounterLikes:
		p.Likes += delta
	case services.CounterComments:
		p.CommentCount += delta
		if p.CommentCount < 0 {
			p.CommentCount = 0
		}
	default:
		return services.ErrInvalidInput
	}
	db.posts[id] = p
	return nil
}

func (db *MemDB) FindPostBySourceURL(_ context.Context, url string) (*models.Post, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, p := range db.posts {
		if p.SourceURL == url {
			return &p, nil
		}
	}
	return nil, services.ErrPostNotFound
}

func (db *MemDB) SetPostScore(_ context.Context, id string, score int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.posts[id]
	if !ok {
		return services.ErrPostNotFound
	}
	p.Score = score
	db.posts[id] = p
	return nil
}

func (db *MemDB) CountPosts(_ context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return int64(len(db.posts)), nil
}

// ---- users

func (db *MemDB) CreateUser(_ context.Context, u *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return services.ErrEmailTaken
		}
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	db.nextUserID++
	u.ID = db.nextUserID
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	db.users[u.ID] = *u
	return nil
}

func (db *MemDB) GetUser(_ context.Context, id uint) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return &u, nil
}

func (db *MemDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, services.ErrUserNotFound
}

func (db *MemDB) GetUserByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if googleID == "" {
		return nil, services.ErrUserNotFound
	}
	for _, u := range db.users {
		if u.GoogleID == googleID {
			return &u, nil
		}
	}
	return nil, services.ErrUserNotFound
}

func (db *MemDB) UpdateUser(_ context.Context, u *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[u.ID]; !ok {
		return services.ErrUserNotFound
	}
	u.UpdatedAt = time.Now().UTC()
	db.users[u.ID] = *u
	return nil
}

func (db *MemDB) ListUsers(_ context.Context, limit, offset int) ([]models.User, int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.User, 0, len(db.users))
	for _, u := range db.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	total := int64(len(out))
	if offset >= len(out) {
		return []models.User{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (db *MemDB) CountUsers(_ context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return int64(len(db.users)), nil
}

func (db *MemDB) ChangeRole(_ context.Context, userID uint, role models.Role, audit *models.RoleChangeAudit) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[userID]
	if !ok {
		return services.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	db.users[userID] = u

	db.nextAuditID++
	audit.ID = db.nextAuditID
	db.audits = append(db.audits, *audit)
	return nil
}

func (db *MemDB) ListRoleAudits(_ context.Context, userID uint) ([]models.RoleChangeAudit, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.RoleChangeAudit, 0)
	for i := len(db.audits) - 1; i >= 0; i-- {
		if db.audits[i].UserID == userID {
			out = append(out, db.audits[i])
		}
	}
	return out, nil
}

// ---- chat

func (db *MemDB) SaveChatMessage(_ context.Context, m *models.ChatMessage) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.messages[m.ID] = *m
	return nil
}

func (db *MemDB) GetChatMessage(_ context.Context, id string) (*models.ChatMessage, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.messages[id]
	if !ok {
		return nil, services.ErrChatMessageNotFound
	}
	return &m, nil
}

func (db *MemDB) ListSessionMessages(_ context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.ChatMessage, 0)
	for _, m := range db.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (db *MemDB) SaveChatFeedback(_ context.Context, f *models.ChatFeedback) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.feedback[f.MessageID]; exists {
		return services.ErrFeedbackGiven
	}
	db.nextFbID++
	f.ID = db.nextFbID
	db.feedback[f.MessageID] = *f
	return nil
}

func (db *MemDB) RecordRuleHit(_ context.Context, ruleID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a := db.stats[ruleID]
	a.RuleID = ruleID
	a.Hits++
	a.UpdatedAt = time.Now().UTC()
	db.stats[ruleID] = a
	return nil
}

func (db *MemDB) RecordRuleFeedback(_ context.Context, ruleID string, helpful bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a := db.stats[ruleID]
	a.RuleID = ruleID
	if helpful {
		a.Helpful++
	} else {
		a.Unhelpful++
	}
	a.UpdatedAt = time.Now().UTC()
	db.stats[ruleID] = a
	return nil
}

func (db *MemDB) ListChatAnalytics(_ context.Context) ([]models.ChatAnalytics, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.ChatAnalytics, 0, len(db.stats))
	for _, a := range db.stats {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hits != out[j].Hits {
			return out[i].Hits > out[j].Hits
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out, nil
}

// ---- notifications

func (db *MemDB) CreateNotification(_ context.Context, n *models.Notification) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextNoteID++
	n.ID = db.nextNoteID
	db.notes = append(db.notes, *n)
	return nil
}

func (db *MemDB) ListNotifications(_ context.Context, userID uint, limit, offset int) ([]models.Notification, int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]models.Notification, 0)
	for i := len(db.notes) - 1; i >= 0; i-- {
		if db.notes[i].UserID == userID {
			out = append(out, db.notes[i])
		}
	}

	total := int64(len(out))
	if offset >= len(out) {
		return []models.Notification{}, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (db *MemDB) CountUnread(_ context.Context, userID uint) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var n int64
	for _, note := range db.notes {
		if note.UserID == userID && !note.IsRead {
			n++
		}
	}
	return n, nil
}

func (db *MemDB) MarkNotificationRead(_ context.Context, userID, id uint) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.notes {
		if db.notes[i].ID == id && db.notes[i].UserID == userID {
			db.notes[i].IsRead = true
			return nil
		}
	}
	return services.ErrNotificationNotFound
}

func (db *MemDB) MarkAllNotificationsRead(_ context.Context, userID uint) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.notes {
		if db.notes[i].UserID == userID {
			db.notes[i].IsRead = true
		}
	}
	return nil
}
