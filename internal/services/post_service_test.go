package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/events"
	"inkwell/internal/models"
	"inkwell/internal/services"
)

func TestCreatePost_Permissions(t *testing.T) {
	f := newFixture(t)

	_, err := f.posts.CreatePost(f.ctx, nil, services.PostInput{Title: "x"})
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = f.posts.CreatePost(f.ctx, f.reader, services.PostInput{Title: "x"})
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	p, err := f.posts.CreatePost(f.ctx, f.admin, services.PostInput{Title: "By admin"})
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, p.AuthorID)
	assert.Equal(t, "admin", p.AuthorName)
}

func TestCreatePost_Defaults(t *testing.T) {
	f := newFixture(t)

	p, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{
		Title:   "  Draft title  ",
		Content: "# Heading\n\nFirst paragraph with **bold** text.",
		Tags:    []string{"Go", " go ", "", "Web,Dev"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Draft title", p.Title)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, "Heading First paragraph with bold text.", p.Summary)
	assert.Equal(t, []string{"go", "web dev"}, p.TagList())
	assert.NotEmpty(t, p.ID)
}

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "  "})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: strings.Repeat("t", 201)})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "ok", Status: "archived"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestCreatePost_PublishSetsTimestamp(t *testing.T) {
	f := newFixture(t)

	var topics []events.Topic
	f.bus.Subscribe(func(_ context.Context, ev events.Event) { topics = append(topics, ev.Topic) }, events.PostTopics...)

	p, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Live", Status: models.PostPublished})
	require.NoError(t, err)
	require.NotNil(t, p.PublishedAt)
	assert.WithinDuration(t, time.Now(), *p.PublishedAt, time.Minute)
	assert.Equal(t, []events.Topic{events.PostCreated}, topics)
}

func TestGetPost_DraftVisibility(t *testing.T) {
	f := newFixture(t)

	draft, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Secret"})
	require.NoError(t, err)

	_, err = f.posts.GetPost(f.ctx, nil, draft.ID)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	_, err = f.posts.GetPost(f.ctx, f.reader, draft.ID)
	assert.ErrorIs(t, err, services.ErrPostNotFound)

	_, err = f.posts.GetPost(f.ctx, f.author, draft.ID)
	assert.NoError(t, err)
	_, err = f.posts.GetPost(f.ctx, f.admin, draft.ID)
	assert.NoError(t, err)

	got, err := f.posts.GetPost(f.ctx, nil, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, f.post.Title, got.Title)
}

func TestUpdatePost(t *testing.T) {
	f := newFixture(t)

	draft, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Draft"})
	require.NoError(t, err)

	otherAuthor := f.createUser(t, "second-author", models.RoleAuthor)
	_, err = f.posts.UpdatePost(f.ctx, otherAuthor, draft.ID, services.PostInput{Title: "Mine now"})
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	_, err = f.posts.UpdatePost(f.ctx, f.author, "missing", services.PostInput{Title: "x"})
	assert.ErrorIs(t, err, services.ErrPostNotFound)

	published, err := f.posts.UpdatePost(f.ctx, f.author, draft.ID, services.PostInput{Title: "Final", Status: models.PostPublished})
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	firstPublished := *published.PublishedAt

	time.Sleep(time.Millisecond)
	edited, err := f.posts.UpdatePost(f.ctx, f.admin, draft.ID, services.PostInput{Title: "Final, edited", Status: models.PostPublished})
	require.NoError(t, err)
	assert.Equal(t, "Final, edited", edited.Title)
	assert.True(t, firstPublished.Equal(*edited.PublishedAt), "publish time is kept")
	assert.True(t, edited.UpdatedAt.After(firstPublished))
}

func TestDeletePost_RemovesComments(t *testing.T) {
	f := newFixture(t)

	c := f.addComment(t, f.author, "", "bye")

	err := f.posts.DeletePost(f.ctx, f.reader, f.post.ID)
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	require.NoError(t, f.posts.DeletePost(f.ctx, f.author, f.post.ID))

	_, err = f.store.GetPost(f.ctx, f.post.ID)
	assert.ErrorIs(t, err, services.ErrPostNotFound)
	_, err = f.store.GetComment(f.ctx, c.ID)
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}

func TestRecordView(t *testing.T) {
	f := newFixture(t)

	f.posts.RecordView(f.ctx, f.post)
	f.posts.RecordView(f.ctx, f.post)
	assert.Equal(t, 2, f.post.Views)

	stored, err := f.store.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Views)

	draft, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Draft"})
	require.NoError(t, err)
	f.posts.RecordView(f.ctx, draft)
	stored, err = f.store.GetPost(f.ctx, draft.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.Views)
}

func TestListPublished(t *testing.T) {
	f := newFixture(t)

	time.Sleep(time.Millisecond)
	newer := f.publishPost(t, f.author, "Newer")
	_, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Hidden draft"})
	require.NoError(t, err)

	posts, total, err := f.posts.ListPublished(f.ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Equal(t, f.post.ID, posts[1].ID)

	posts, _, err = f.posts.ListPublished(f.ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, f.post.ID, posts[0].ID)

	own, total, err := f.posts.ListOwn(f.ctx, f.author, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total, "drafts included")
	assert.Len(t, own, 3)
}

func TestListTrending(t *testing.T) {
	f := newFixture(t)

	hot := f.publishPost(t, f.author, "Hot")
	require.NoError(t, f.store.SetPostScore(f.ctx, hot.ID, 50))
	require.NoError(t, f.store.SetPostScore(f.ctx, f.post.ID, 5))

	posts, err := f.posts.ListTrending(f.ctx, 5)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, hot.ID, posts[0].ID)
}

func TestImportDraft_DedupesBySource(t *testing.T) {
	f := newFixture(t)

	_, err := f.posts.ImportDraft(f.ctx, f.author, &models.Post{Title: "x", SourceURL: "https://a/1"})
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	created, err := f.posts.ImportDraft(f.ctx, f.admin, &models.Post{Title: "Imported", Content: "<p>Body</p>", SourceURL: "https://a/1"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.posts.ImportDraft(f.ctx, f.admin, &models.Post{Title: "Imported again", SourceURL: "https://a/1"})
	require.NoError(t, err)
	assert.False(t, created)

	p, err := f.store.FindPostBySourceURL(f.ctx, "https://a/1")
	require.NoError(t, err)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Equal(t, "Body", p.Summary)
}

func TestRenderContentAndShareLinks(t *testing.T) {
	f := newFixture(t)

	html := f.posts.RenderContent(&models.Post{Content: "Hello <script>alert(1)</script> **world**"})
	assert.Contains(t, string(html), "<strong>world</strong>")
	assert.NotContains(t, string(html), "<script>")

	links := f.posts.ShareLinks("https://blog.example.com/", f.post)
	assert.Contains(t, links.Twitter, "https%3A%2F%2Fblog.example.com%2Fblog%2F"+f.post.ID)
	assert.Contains(t, links.Reddit, "title=Hello+world")
}
