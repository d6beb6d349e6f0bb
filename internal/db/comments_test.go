package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"inkwell/internal/models"
	"inkwell/internal/services"
	"inkwell/internal/utils"
)

var errDryRun = errors.New("dry run pool does not execute")

// dryPool satisfies gorm's pool interfaces so transactions open without a
// server. DryRun mode never calls the exec or query methods.
type dryPool struct{}

func (dryPool) PrepareContext(context.Context, string) (*sql.Stmt, error) { return nil, errDryRun }
func (dryPool) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errDryRun
}
func (dryPool) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errDryRun
}
func (dryPool) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
func (dryPool) BeginTx(context.Context, *sql.TxOptions) (gorm.ConnPool, error) {
	return &dryTx{}, nil
}

type dryTx struct{ dryPool }

func (*dryTx) Commit() error   { return nil }
func (*dryTx) Rollback() error { return nil }

// sqlRecorder keeps every statement gorm renders, with vars inlined.
type sqlRecorder struct {
	mu  sync.Mutex
	sql []string
}

func (r *sqlRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})    {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})    {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{})   {}
func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	stmt, _ := fc()
	r.mu.Lock()
	r.sql = append(r.sql, stmt)
	r.mu.Unlock()
}

func (r *sqlRecorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.sql
	r.sql = nil
	return out
}

func newDryStore(t *testing.T) (*Store, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: dryPool{}}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	require.NoError(t, err)
	return New(gdb), rec
}

func TestListComments_KeysetSQL(t *testing.T) {
	store, rec := newDryStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.ListComments(ctx, services.CommentQuery{
		PostID:   "p1",
		TopLevel: true,
		Statuses: []models.CommentStatus{models.CommentApproved, models.CommentDeleted},
		OrderBy:  services.OrderByCreated,
		After:    &utils.Cursor{At: at, ID: "c9"},
		Limit:    10,
	})
	require.NoError(t, err)
	stmts := rec.take()
	require.Len(t, stmts, 1)
	q := stmts[0]
	assert.Contains(t, q, `FROM "comments"`)
	assert.Contains(t, q, "post_id = 'p1'")
	assert.Contains(t, q, "parent_id IS NULL")
	assert.Contains(t, q, "status IN ('approved','deleted')")
	assert.Contains(t, q, "(created_at < '2024-03-01 12:00:00")
	assert.Contains(t, q, "AND id < 'c9'))")
	assert.Contains(t, q, "ORDER BY created_at DESC,id DESC LIMIT 10")

	parent := "root"
	_, err = store.ListComments(ctx, services.CommentQuery{
		ParentID:  &parent,
		OrderBy:   services.OrderByUpdated,
		Ascending: true,
		After:     &utils.Cursor{At: at, ID: "c9"},
	})
	require.NoError(t, err)
	q = rec.take()[0]
	assert.Contains(t, q, "parent_id = 'root'")
	assert.Contains(t, q, "(updated_at > '2024-03-01 12:00:00")
	assert.Contains(t, q, "AND id > 'c9'))")
	assert.Contains(t, q, "ORDER BY updated_at ASC,id ASC")
	assert.NotContains(t, q, "LIMIT")
}

func TestUpdateComment_CompareAndSetSQL(t *testing.T) {
	store, rec := newDryStore(t)

	c := &models.Comment{ID: "c1", Content: "edited", Status: models.CommentApproved, UpdatedAt: time.Now().UTC()}
	err := store.UpdateComment(context.Background(), c, models.CommentPending)
	// nothing is written in dry run, so the guard reports a lost race
	assert.ErrorIs(t, err, services.ErrConcurrentModification)

	stmts := rec.take()
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], `UPDATE "comments" SET`)
	assert.Contains(t, stmts[0], `"status"='approved'`)
	assert.Contains(t, stmts[0], "WHERE id = 'c1' AND status = 'pending'")
}

func TestReplyCounterSQL(t *testing.T) {
	store, rec := newDryStore(t)
	ctx := context.Background()

	parent := "root"
	err := store.CreateComment(ctx, &models.Comment{ID: "c2", PostID: "p1", ParentID: &parent, Status: models.CommentPending})
	assert.ErrorIs(t, err, services.ErrParentNotFound)
	stmts := rec.take()
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], `INSERT INTO "comments"`)
	assert.Contains(t, stmts[1], `SET "reply_count"=reply_count + 1 WHERE id = 'root'`)

	removed, err := store.HardDeleteLeaf(ctx, &models.Comment{ID: "c2", ParentID: &parent})
	require.NoError(t, err)
	assert.False(t, removed)
	stmts = rec.take()
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], `DELETE FROM "comments" WHERE id = 'c2' AND reply_count = 0`)
}

// The tests below need a disposable PostgreSQL database.
func openTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	gdb, err := Open(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))

	store := New(gdb)
	t.Cleanup(func() { _ = store.Close() })
	return store, gdb
}

func newComment(postID string, parent *models.Comment, at time.Time) *models.Comment {
	c := &models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		Content:   "hello",
		AuthorID:  1,
		Status:    models.CommentApproved,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if parent != nil {
		c.ParentID = &parent.ID
		c.Depth = parent.Depth + 1
	}
	return c
}

func TestStore_CommentsAgainstPostgres(t *testing.T) {
	store, gdb := openTestStore(t)
	ctx := context.Background()
	postID := uuid.NewString()
	t.Cleanup(func() {
		gdb.Where("post_id = ?", postID).Delete(&models.Comment{})
	})

	base := time.Now().UTC().Truncate(time.Microsecond)
	var tops []*models.Comment
	for i := 0; i < 3; i++ {
		c := newComment(postID, nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.CreateComment(ctx, c))
		tops = append(tops, c)
	}
	// same timestamp as the newest, so the id breaks the tie
	twin := newComment(postID, nil, tops[2].CreatedAt)
	require.NoError(t, store.CreateComment(ctx, twin))

	q := services.CommentQuery{PostID: postID, TopLevel: true, OrderBy: services.OrderByCreated, Limit: 2}
	first, err := store.ListComments(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 2)

	last := first[1]
	q.After = &utils.Cursor{At: last.CreatedAt, ID: last.ID}
	second, err := store.ListComments(ctx, q)
	require.NoError(t, err)
	require.Len(t, second, 2)

	seen := map[string]bool{}
	for _, c := range append(first, second...) {
		assert.False(t, seen[c.ID], "keyset pages never overlap")
		seen[c.ID] = true
	}
	assert.Equal(t, tops[0].ID, second[1].ID, "oldest comes last")

	t.Run("compare and set", func(t *testing.T) {
		c := tops[0]
		c.Status = models.CommentFlagged
		assert.ErrorIs(t, store.UpdateComment(ctx, c, models.CommentPending), services.ErrConcurrentModification)
		require.NoError(t, store.UpdateComment(ctx, c, models.CommentApproved))

		stored, err := store.GetComment(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommentFlagged, stored.Status)

		missing := &models.Comment{ID: uuid.NewString(), Status: models.CommentApproved}
		assert.ErrorIs(t, store.UpdateComment(ctx, missing, models.CommentPending), services.ErrCommentNotFound)
	})

	t.Run("leaf delete keeps reply count sane", func(t *testing.T) {
		root := tops[1]
		child := newComment(postID, root, base.Add(time.Minute))
		require.NoError(t, store.CreateComment(ctx, child))

		removed, err := store.HardDeleteLeaf(ctx, root)
		require.NoError(t, err)
		assert.False(t, removed, "comment with replies is not a leaf")
		assert.Equal(t, 1, root.ReplyCount)

		// counter already drifted to zero; the decrement must not go negative
		require.NoError(t, gdb.Model(&models.Comment{}).Where("id = ?", root.ID).UpdateColumn("reply_count", 0).Error)
		removed, err = store.HardDeleteLeaf(ctx, child)
		require.NoError(t, err)
		assert.True(t, removed)

		stored, err := store.GetComment(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.ReplyCount)
	})

	t.Run("likes clamp at zero", func(t *testing.T) {
		c := tops[2]
		require.NoError(t, store.AddCommentLike(ctx, c.ID, 42))
		assert.ErrorIs(t, store.AddCommentLike(ctx, c.ID, 42), services.ErrAlreadyLiked)

		require.NoError(t, gdb.Model(&models.Comment{}).Where("id = ?", c.ID).UpdateColumn("likes", 0).Error)
		require.NoError(t, store.RemoveCommentLike(ctx, c.ID, 42))
		assert.ErrorIs(t, store.RemoveCommentLike(ctx, c.ID, 42), services.ErrNotLiked)

		stored, err := store.GetComment(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Likes)
	})
}
