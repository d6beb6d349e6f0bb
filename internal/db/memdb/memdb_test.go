package memdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/db/memdb"
	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func comment(id string, at time.Time, parent *string) *models.Comment {
	return &models.Comment{
		ID: id, PostID: "p1", AuthorID: 1, Content: id,
		ParentID: parent, Status: models.CommentApproved,
		CreatedAt: at, UpdatedAt: at,
	}
}

func ids(cs []models.Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestCreateComment_BumpsParentReplyCount(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	parent := "a"
	require.NoError(t, db.CreateComment(ctx, comment("b", base, &parent)))

	got, err := db.GetComment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReplyCount)

	missing := "nope"
	assert.ErrorIs(t, db.CreateComment(ctx, comment("c", base, &missing)), services.ErrParentNotFound)

	_, err = db.GetComment(ctx, "zzz")
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}

func TestGetComment_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))

	got, err := db.GetComment(ctx, "a")
	require.NoError(t, err)
	got.Content = "mutated"

	again, err := db.GetComment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Content)
}

func TestListComments_KeysetOrdering(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	// b and c share a timestamp, so the id breaks the tie
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	require.NoError(t, db.CreateComment(ctx, comment("b", base.Add(time.Second), nil)))
	require.NoError(t, db.CreateComment(ctx, comment("c", base.Add(time.Second), nil)))
	require.NoError(t, db.CreateComment(ctx, comment("d", base.Add(2*time.Second), nil)))

	desc, err := db.ListComments(ctx, services.CommentQuery{PostID: "p1", TopLevel: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, ids(desc))

	page, err := db.ListComments(ctx, services.CommentQuery{
		PostID: "p1", TopLevel: true, Limit: 2,
		After: &utils.Cursor{At: base.Add(time.Second), ID: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(page))

	asc, err := db.ListComments(ctx, services.CommentQuery{
		PostID: "p1", Ascending: true,
		After: &utils.Cursor{At: base.Add(time.Second), ID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(asc))
}

func TestListComments_Filters(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	root := "a"
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	reply := comment("b", base.Add(time.Second), &root)
	reply.Status = models.CommentPending
	reply.AuthorID = 2
	require.NoError(t, db.CreateComment(ctx, reply))
	other := comment("c", base, nil)
	other.PostID = "p2"
	require.NoError(t, db.CreateComment(ctx, other))

	replies, err := db.ListComments(ctx, services.CommentQuery{ParentID: &root})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(replies))

	pending, err := db.ListComments(ctx, services.CommentQuery{Statuses: []models.CommentStatus{models.CommentPending}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(pending))

	byAuthor, err := db.ListComments(ctx, services.CommentQuery{AuthorID: 1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "c"}, ids(byAuthor))
}

func TestUpdateComment_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	require.NoError(t, db.AddCommentLike(ctx, "a", 7))

	c, err := db.GetComment(ctx, "a")
	require.NoError(t, err)
	c.Status = models.CommentFlagged
	c.Likes = 0

	assert.ErrorIs(t, db.UpdateComment(ctx, c, models.CommentPending), services.ErrConcurrentModification)

	require.NoError(t, db.UpdateComment(ctx, c, models.CommentApproved))
	assert.Equal(t, 1, c.Likes, "counters come back from the store")

	stored, err := db.GetComment(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.CommentFlagged, stored.Status)
	assert.Equal(t, 1, stored.Likes)

	assert.ErrorIs(t, db.UpdateComment(ctx, comment("x", base, nil), models.CommentApproved), services.ErrCommentNotFound)
}

func TestHardDeleteLeaf(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	root := "a"
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	require.NoError(t, db.CreateComment(ctx, comment("b", base, &root)))

	a, _ := db.GetComment(ctx, "a")
	deleted, err := db.HardDeleteLeaf(ctx, a)
	require.NoError(t, err)
	assert.False(t, deleted, "has replies")
	assert.Equal(t, 1, a.ReplyCount)

	b, _ := db.GetComment(ctx, "b")
	deleted, err = db.HardDeleteLeaf(ctx, b)
	require.NoError(t, err)
	assert.True(t, deleted)

	a, _ = db.GetComment(ctx, "a")
	assert.Zero(t, a.ReplyCount)
	deleted, err = db.HardDeleteLeaf(ctx, a)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = db.HardDeleteLeaf(ctx, a)
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}

func TestCommentLikes(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))

	require.NoError(t, db.AddCommentLike(ctx, "a", 1))
	assert.ErrorIs(t, db.AddCommentLike(ctx, "a", 1), services.ErrAlreadyLiked)
	require.NoError(t, db.AddCommentLike(ctx, "a", 2))

	require.NoError(t, db.RemoveCommentLike(ctx, "a", 1))
	assert.ErrorIs(t, db.RemoveCommentLike(ctx, "a", 1), services.ErrNotLiked)
	assert.ErrorIs(t, db.AddCommentLike(ctx, "zzz", 1), services.ErrCommentNotFound)

	c, _ := db.GetComment(ctx, "a")
	assert.Equal(t, 1, c.Likes)
}

func TestDeletePost_Cascades(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	require.NoError(t, db.CreatePost(ctx, &models.Post{ID: "p1", Title: "x", Status: models.PostPublished}))
	require.NoError(t, db.CreateComment(ctx, comment("a", base, nil)))
	require.NoError(t, db.AddCommentLike(ctx, "a", 1))

	require.NoError(t, db.DeletePost(ctx, "p1"))
	_, err := db.GetComment(ctx, "a")
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
	assert.ErrorIs(t, db.DeletePost(ctx, "p1"), services.ErrPostNotFound)
}

func TestPosts_CountersOwnedByStore(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	require.NoError(t, db.CreatePost(ctx, &models.Post{ID: "p1", Title: "x"}))
	require.NoError(t, db.IncrementPostCounter(ctx, "p1", services.CounterViews, 3))
	require.NoError(t, db.IncrementPostCounter(ctx, "p1", services.CounterComments, -5))
	require.NoError(t, db.SetPostScore(ctx, "p1", 42))

	p, err := db.GetPost(ctx, "p1")
	require.NoError(t, err)
	p.Title = "renamed"
	p.Views = 0
	require.NoError(t, db.UpdatePost(ctx, p))

	stored, err := db.GetPost(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Title)
	assert.Equal(t, 3, stored.Views)
	assert.Zero(t, stored.CommentCount, "clamped at zero")
	assert.Equal(t, 42, stored.Score)

	assert.ErrorIs(t, db.IncrementPostCounter(ctx, "nope", services.CounterViews, 1), services.ErrPostNotFound)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	t1, t2 := base, base.Add(time.Hour)
	require.NoError(t, db.CreatePost(ctx, &models.Post{ID: "old", AuthorID: 1, Status: models.PostPublished, PublishedAt: &t1, Score: 50}))
	require.NoError(t, db.CreatePost(ctx, &models.Post{ID: "new", AuthorID: 2, Status: models.PostPublished, PublishedAt: &t2, Score: 10}))
	require.NoError(t, db.CreatePost(ctx, &models.Post{ID: "draft", AuthorID: 1, Status: models.PostDraft, CreatedAt: t2}))

	recent, total, err := db.ListPosts(ctx, services.PostQuery{Status: models.PostPublished})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "new", recent[0].ID)

	top, _, err := db.ListPosts(ctx, services.PostQuery{Status: models.PostPublished, OrderBy: services.PostOrderScore})
	require.NoError(t, err)
	assert.Equal(t, "old", top[0].ID)

	since, _, err := db.ListPosts(ctx, services.PostQuery{PublishedSince: &t2})
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "new", since[0].ID)

	mine, total, err := db.ListPosts(ctx, services.PostQuery{AuthorID: 1, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, mine, 1)
	assert.Equal(t, "old", mine[0].ID)

	_, err = db.FindPostBySourceURL(ctx, "https://example.com")
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	u := &models.User{Email: "ann@example.com", Username: "ann"}
	require.NoError(t, db.CreateUser(ctx, u))
	assert.Equal(t, uint(1), u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	assert.ErrorIs(t, db.CreateUser(ctx, &models.User{Email: "ANN@example.com"}), services.ErrEmailTaken)

	found, err := db.GetUserByEmail(ctx, "Ann@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = db.GetUserByGoogleID(ctx, "")
	assert.ErrorIs(t, err, services.ErrUserNotFound)

	audit := &models.RoleChangeAudit{UserID: u.ID, ChangedBy: 9, OldRole: models.RoleUser, NewRole: models.RoleAuthor}
	require.NoError(t, db.ChangeRole(ctx, u.ID, models.RoleAuthor, audit))
	assert.NotZero(t, audit.ID)

	stored, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAuthor, stored.Role)

	audits, err := db.ListRoleAudits(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, models.RoleAuthor, audits[0].NewRole)

	assert.ErrorIs(t, db.ChangeRole(ctx, 99, models.RoleAdmin, &models.RoleChangeAudit{}), services.ErrUserNotFound)
}

func TestChatFeedbackOncePerMessage(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	require.NoError(t, db.SaveChatFeedback(ctx, &models.ChatFeedback{MessageID: "m1", Helpful: true}))
	assert.ErrorIs(t, db.SaveChatFeedback(ctx, &models.ChatFeedback{MessageID: "m1"}), services.ErrFeedbackGiven)

	require.NoError(t, db.RecordRuleHit(ctx, "greeting"))
	require.NoError(t, db.RecordRuleHit(ctx, "greeting"))
	require.NoError(t, db.RecordRuleHit(ctx, "about"))
	require.NoError(t, db.RecordRuleFeedback(ctx, "greeting", false))

	stats, err := db.ListChatAnalytics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "greeting", stats[0].RuleID)
	assert.Equal(t, 2, stats[0].Hits)
	assert.Equal(t, 1, stats[0].Unhelpful)
}

func TestNotifications_Pagination(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.CreateNotification(ctx, &models.Notification{UserID: 1, Message: string(rune('a' + i))}))
	}
	require.NoError(t, db.CreateNotification(ctx, &models.Notification{UserID: 2, Message: "other"}))

	page, total, err := db.ListNotifications(ctx, 1, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].Message, "newest first")
	assert.Equal(t, "c", page[1].Message)

	empty, _, err := db.ListNotifications(ctx, 1, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.ErrorIs(t, db.MarkNotificationRead(ctx, 2, page[0].ID), services.ErrNotificationNotFound)
	require.NoError(t, db.MarkNotificationRead(ctx, 1, page[0].ID))
	unread, err := db.CountUnread(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 4, unread)

	require.NoError(t, db.MarkAllNotificationsRead(ctx, 1))
	unread, _ = db.CountUnread(ctx, 1)
	assert.Zero(t, unread)
	unread, _ = db.CountUnread(ctx, 2)
	assert.EqualValues(t, 1, unread)
}
