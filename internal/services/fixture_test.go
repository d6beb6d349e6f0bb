package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inkwell/internal/db/memdb"
	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/services"
)

type fixture struct {
	ctx      context.Context
	store    *memdb.MemDB
	bus      *events.Bus
	users    *services.UserService
	posts    *services.PostService
	comments *services.CommentService

	admin  *models.User
	author *models.User
	reader *models.User
	other  *models.User
	post   *models.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:   context.Background(),
		store: memdb.New(),
		bus:   events.NewBus(nil),
	}
	f.users = services.NewUserService(f.store, nil)
	f.posts = services.NewPostService(f.store, f.bus, nil)
	f.comments = services.NewCommentService(f.store, f.bus, nil, nil)

	f.admin = f.createUser(t, "admin", models.RoleAdmin)
	f.author = f.createUser(t, "author", models.RoleAuthor)
	f.reader = f.createUser(t, "reader", models.RoleUser)
	f.other = f.createUser(t, "other", models.RoleUser)
	f.post = f.publishPost(t, f.author, "Hello world")
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Role: role}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) reloadUser(t *testing.T, u *models.User) *models.User {
	t.Helper()
	fresh, err := f.store.GetUser(f.ctx, u.ID)
	require.NoError(t, err)
	return fresh
}

func (f *fixture) publishPost(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	p, err := f.posts.CreatePost(f.ctx, author, services.PostInput{
		Title:   title,
		Content: "Some **markdown** body.",
		Status:  models.PostPublished,
	})
	require.NoError(t, err)
	return p
}

// addComment sleeps first so every comment gets a distinct timestamp.
func (f *fixture) addComment(t *testing.T, actor *models.User, parentID, content string) *models.Comment {
	t.Helper()
	time.Sleep(time.Millisecond)
	c, err := f.comments.AddComment(f.ctx, actor, services.NewComment{
		PostID:   f.post.ID,
		ParentID: parentID,
		Content:  content,
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) approve(t *testing.T, c *models.Comment) *models.Comment {
	t.Helper()
	approved, err := f.comments.ModerateComment(f.ctx, f.admin, c.ID, models.CommentApproved, "")
	require.NoError(t, err)
	return approved
}

func (f *fixture) reloadComment(t *testing.T, id string) *models.Comment {
	t.Helper()
	c, err := f.comments.GetComment(f.ctx, id)
	require.NoError(t, err)
	return c
}

func ids(items []models.Comment) []string {
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.ID)
	}
	return out
}
