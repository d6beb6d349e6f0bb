package services_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/models"
	"inkwell/internal/services"
)

func TestAddComment_StatusByRole(t *testing.T) {
	f := newFixture(t)

	byReader := f.addComment(t, f.reader, "", "first!")
	byAuthor := f.addComment(t, f.author, "", "thanks for reading")
	byAdmin := f.addComment(t, f.admin, "", "welcome")

	assert.Equal(t, models.CommentPending, byReader.Status)
	assert.Equal(t, models.CommentApproved, byAuthor.Status)
	assert.Equal(t, models.CommentApproved, byAdmin.Status)
	assert.Equal(t, 0, byReader.Depth)
	assert.Nil(t, byReader.ParentID)
	assert.Equal(t, "reader", byReader.AuthorName)
}

func TestAddComment_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", "", services.ErrContentEmpty},
		{"whitespace only", "   \n\t ", services.ErrContentEmpty},
		{"too long", strings.Repeat("a", services.MaxCommentLength+1), services.ErrContentTooLong},
		{"multibyte over limit", strings.Repeat("é", services.MaxCommentLength+1), services.ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, Content: tt.content})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	c, err := f.comments.AddComment(f.ctx, f.reader, services.NewComment{
		PostID:  f.post.ID,
		Content: "  " + strings.Repeat("é", services.MaxCommentLength) + "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", services.MaxCommentLength), c.Content)
}

func TestAddComment_RequiresUserAndPublishedPost(t *testing.T) {
	f := newFixture(t)

	_, err := f.comments.AddComment(f.ctx, nil, services.NewComment{PostID: f.post.ID, Content: "hi"})
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: "missing", Content: "hi"})
	assert.ErrorIs(t, err, services.ErrPostNotFound)

	draft, err := f.posts.CreatePost(f.ctx, f.author, services.PostInput{Title: "Draft", Content: "wip"})
	require.NoError(t, err)
	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: draft.ID, Content: "hi"})
	assert.ErrorIs(t, err, services.ErrPostNotPublished)
}

func TestAddComment_Replies(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	reply := f.addComment(t, f.reader, root.ID, "reply")

	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)
	assert.Equal(t, 1, reply.Depth)
	assert.Equal(t, 1, f.reloadComment(t, root.ID).ReplyCount)

	post, err := f.store.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, post.CommentCount)
}

func TestAddComment_ParentErrors(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")

	_, err := f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, ParentID: "nope", Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentNotFound)

	otherPost := f.publishPost(t, f.author, "Second")
	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: otherPost.ID, ParentID: root.ID, Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentMismatch)

	_, err = f.comments.DeleteComment(f.ctx, f.author, root.ID)
	require.NoError(t, err)
	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, ParentID: root.ID, Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentNotFound)
}

func TestAddComment_ReplyToSoftDeletedParent(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	f.addComment(t, f.author, root.ID, "child")

	res, err := f.comments.DeleteComment(f.ctx, f.author, root.ID)
	require.NoError(t, err)
	require.False(t, res.Hard)

	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, ParentID: root.ID, Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentDeleted)
}

func TestAddComment_MaxDepth(t *testing.T) {
	f := newFixture(t)

	parent := f.addComment(t, f.author, "", "depth 0")
	for i := 1; i <= services.MaxCommentDepth; i++ {
		parent = f.addComment(t, f.author, parent.ID, "deeper")
		assert.Equal(t, i, parent.Depth)
	}

	_, err := f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, ParentID: parent.ID, Content: "too deep"})
	assert.ErrorIs(t, err, services.ErrMaxDepthExceeded)
	assert.True(t, services.IsValidationError(err))
}

func TestAddComment_MutedAndBanned(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Punish(f.ctx, f.admin, f.reader.ID, models.UserStatusMuted, 0)
	require.NoError(t, err)
	_, err = f.comments.AddComment(f.ctx, f.reloadUser(t, f.reader), services.NewComment{PostID: f.post.ID, Content: "hi"})
	assert.ErrorIs(t, err, services.ErrUserMuted)

	_, err = f.users.Punish(f.ctx, f.admin, f.reader.ID, models.UserStatusBanned, 0)
	require.NoError(t, err)
	_, err = f.comments.AddComment(f.ctx, f.reloadUser(t, f.reader), services.NewComment{PostID: f.post.ID, Content: "hi"})
	assert.ErrorIs(t, err, services.ErrUserBanned)
}

func TestAddComment_ExpiredMuteIsLifted(t *testing.T) {
	f := newFixture(t)

	u := f.reloadUser(t, f.reader)
	past := time.Now().Add(-time.Hour)
	u.Status = models.UserStatusMuted
	u.PunishExpires = &past
	require.NoError(t, f.store.UpdateUser(f.ctx, u))

	_, err := f.comments.AddComment(f.ctx, f.reloadUser(t, f.reader), services.NewComment{PostID: f.post.ID, Content: "back again"})
	require.NoError(t, err)

	lifted := f.reloadUser(t, f.reader)
	assert.Equal(t, models.UserStatusNormal, lifted.Status)
	assert.Nil(t, lifted.PunishExpires)
}

func TestGetTopLevelComments_HidesPendingAndFlagged(t *testing.T) {
	f := newFixture(t)

	approved := f.addComment(t, f.author, "", "visible")
	f.addComment(t, f.reader, "", "waiting")
	flagged := f.addComment(t, f.author, "", "about to be flagged")
	_, err := f.comments.FlagCommentByUser(f.ctx, f.reader, flagged.ID, "spam")
	require.NoError(t, err)

	page, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{approved.ID}, ids(page.Items))
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestGetTopLevelComments_Pagination(t *testing.T) {
	f := newFixture(t)

	var created []string
	for i := 0; i < 12; i++ {
		created = append(created, f.addComment(t, f.author, "", "comment").ID)
	}

	first, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	require.Len(t, first.Items, services.CommentPageSize)
	assert.True(t, first.HasMore)
	assert.NotEmpty(t, first.NextCursor)
	assert.Equal(t, created[11], first.Items[0].ID, "newest first")

	second, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{created[1], created[0]}, ids(second.Items))
	assert.False(t, second.HasMore)

	_, err = f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "!!not-a-cursor")
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestGetTopLevelComments_CacheClearedByEvents(t *testing.T) {
	f := newFixture(t)

	f.addComment(t, f.author, "", "one")
	page, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	// written behind the service's back, so no event fires
	now := time.Now().UTC()
	require.NoError(t, f.store.CreateComment(f.ctx, &models.Comment{
		ID: "direct", PostID: f.post.ID, Content: "direct", Status: models.CommentApproved,
		CreatedAt: now, UpdatedAt: now,
	}))
	page, err = f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1, "served from cache")

	f.addComment(t, f.author, "", "three")
	page, err = f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestGetRepliesByCommentID_OldestFirst(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	a := f.addComment(t, f.author, root.ID, "a")
	f.addComment(t, f.reader, root.ID, "pending reply")
	b := f.addComment(t, f.admin, root.ID, "b")

	page, err := f.comments.GetRepliesByCommentID(f.ctx, nil, root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(page.Items))

	_, err = f.comments.GetRepliesByCommentID(f.ctx, nil, "missing", "")
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}

func TestGetTopLevelComments_CacheClearedByPostEvents(t *testing.T) {
	f := newFixture(t)

	f.addComment(t, f.author, "", "one")
	page, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	now := time.Now().UTC()
	require.NoError(t, f.store.CreateComment(f.ctx, &models.Comment{
		ID: "direct", PostID: f.post.ID, Content: "direct", Status: models.CommentApproved,
		CreatedAt: now, UpdatedAt: now,
	}))

	_, err = f.posts.UpdatePost(f.ctx, f.author, f.post.ID, services.PostInput{
		Title:   "Hello again",
		Content: "Edited body.",
		Status:  models.PostPublished,
	})
	require.NoError(t, err)
	page, err = f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	assert.Len(t, page.Items, 2, "post update drops cached pages")

	require.NoError(t, f.posts.DeletePost(f.ctx, f.author, f.post.ID))
	_, err = f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestCommentReads_RespectPostVisibility(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	f.addComment(t, f.author, root.ID, "child")

	// warm the cache while the post is still public
	_, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	_, err = f.comments.GetRepliesByCommentID(f.ctx, nil, root.ID, "")
	require.NoError(t, err)

	_, err = f.posts.UpdatePost(f.ctx, f.author, f.post.ID, services.PostInput{
		Title:   f.post.Title,
		Content: f.post.Content,
		Status:  models.PostDraft,
	})
	require.NoError(t, err)

	for _, viewer := range []*models.User{nil, f.reader} {
		_, err = f.comments.GetTopLevelComments(f.ctx, viewer, f.post.ID, "")
		assert.ErrorIs(t, err, services.ErrPostNotFound)
		_, err = f.comments.GetRepliesByCommentID(f.ctx, viewer, root.ID, "")
		assert.ErrorIs(t, err, services.ErrPostNotFound)
		_, err = f.comments.LoadThread(f.ctx, viewer, f.post.ID, "", services.ThreadOptions{})
		assert.ErrorIs(t, err, services.ErrPostNotFound)
		_, err = f.comments.LoadReplies(f.ctx, viewer, root.ID, "", services.ThreadOptions{})
		assert.ErrorIs(t, err, services.ErrPostNotFound)
	}

	for _, viewer := range []*models.User{f.author, f.admin} {
		page, err := f.comments.GetTopLevelComments(f.ctx, viewer, f.post.ID, "")
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID}, ids(page.Items))
		replies, err := f.comments.GetRepliesByCommentID(f.ctx, viewer, root.ID, "")
		require.NoError(t, err)
		assert.Len(t, replies.Items, 1)
	}

	_, err = f.comments.GetTopLevelComments(f.ctx, nil, "missing", "")
	assert.ErrorIs(t, err, services.ErrPostNotFound)
}

func TestAddComment_ReplyToUnmoderatedParent(t *testing.T) {
	f := newFixture(t)

	pending := f.addComment(t, f.reader, "", "waiting")
	require.Equal(t, models.CommentPending, pending.Status)

	_, err := f.comments.AddComment(f.ctx, f.other, services.NewComment{PostID: f.post.ID, ParentID: pending.ID, Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentNotVisible)
	assert.True(t, services.IsNotFound(err))
	assert.Equal(t, "The comment you replied to is not available.", services.UserMessage(err))

	own := f.addComment(t, f.reader, pending.ID, "adding context")
	assert.Equal(t, 1, own.Depth)
	f.addComment(t, f.admin, pending.ID, "moderator note")

	flagged := f.addComment(t, f.other, "", "borderline")
	f.approve(t, flagged)
	_, err = f.comments.FlagCommentByUser(f.ctx, f.reader, flagged.ID, "rude")
	require.NoError(t, err)

	_, err = f.comments.AddComment(f.ctx, f.reader, services.NewComment{PostID: f.post.ID, ParentID: flagged.ID, Content: "x"})
	assert.ErrorIs(t, err, services.ErrParentNotVisible)
	f.addComment(t, f.other, flagged.ID, "my side")
	f.addComment(t, f.admin, flagged.ID, "reviewing")
}

func TestUpdateComment(t *testing.T) {
	f := newFixture(t)

	c := f.approve(t, f.addComment(t, f.reader, "", "original"))
	require.Equal(t, models.CommentApproved, c.Status)

	_, err := f.comments.UpdateComment(f.ctx, f.other, c.ID, "hijack")
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	_, err = f.comments.UpdateComment(f.ctx, f.reader, c.ID, "  ")
	assert.ErrorIs(t, err, services.ErrContentEmpty)

	unchanged, err := f.comments.UpdateComment(f.ctx, f.reader, c.ID, "original")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, unchanged.Status)

	edited, err := f.comments.UpdateComment(f.ctx, f.reader, c.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Content)
	assert.Equal(t, models.CommentPending, edited.Status, "user edits go back to review")
	assert.Equal(t, models.CommentPending, f.reloadComment(t, c.ID).Status)
}

func TestUpdateComment_AdminKeepsStatus(t *testing.T) {
	f := newFixture(t)

	c := f.approve(t, f.addComment(t, f.reader, "", "original"))

	edited, err := f.comments.UpdateComment(f.ctx, f.admin, c.ID, "cleaned up")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, edited.Status)
	assert.Equal(t, "cleaned up", f.reloadComment(t, c.ID).Content)
}

func TestUpdateComment_ClearsUserFlag(t *testing.T) {
	f := newFixture(t)

	c := f.addComment(t, f.reader, "", "original")
	_, err := f.comments.FlagCommentByUser(f.ctx, f.other, c.ID, "rude")
	require.NoError(t, err)

	edited, err := f.comments.UpdateComment(f.ctx, f.reader, c.ID, "nicer")
	require.NoError(t, err)
	assert.Equal(t, models.CommentPending, edited.Status)
	assert.Empty(t, edited.FlagReason)
	assert.Nil(t, edited.FlaggedBy)
}

func TestDeleteComment_Leaf(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	leaf := f.addComment(t, f.reader, root.ID, "leaf")

	_, err := f.comments.DeleteComment(f.ctx, f.other, leaf.ID)
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	res, err := f.comments.DeleteComment(f.ctx, f.reader, leaf.ID)
	require.NoError(t, err)
	assert.True(t, res.Hard)

	_, err = f.comments.GetComment(f.ctx, leaf.ID)
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
	assert.Equal(t, 0, f.reloadComment(t, root.ID).ReplyCount)

	post, err := f.store.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, post.CommentCount)
}

func TestDeleteComment_WithRepliesLeavesPlaceholder(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.reader, "", "root")
	f.approve(t, root)
	child := f.addComment(t, f.author, root.ID, "child")

	res, err := f.comments.DeleteComment(f.ctx, f.reader, root.ID)
	require.NoError(t, err)
	assert.False(t, res.Hard)
	assert.Equal(t, models.CommentDeleted, res.Comment.Status)
	assert.Equal(t, models.DeletedCommentContent, res.Comment.Content)

	page, err := f.comments.GetTopLevelComments(f.ctx, nil, f.post.ID, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1, "placeholder stays visible")
	assert.Equal(t, models.CommentDeleted, page.Items[0].Status)

	replies, err := f.comments.GetRepliesByCommentID(f.ctx, nil, root.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{child.ID}, ids(replies.Items))

	_, err = f.comments.UpdateComment(f.ctx, f.reader, root.ID, "resurrect")
	assert.ErrorIs(t, err, services.ErrCommentDeleted)

	_, err = f.comments.DeleteComment(f.ctx, f.reader, root.ID)
	assert.ErrorIs(t, err, services.ErrCommentDeleted)
}

func TestDeleteComment_PlaceholderRemovedOnceLeaf(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	child := f.addComment(t, f.author, root.ID, "child")

	res, err := f.comments.DeleteComment(f.ctx, f.author, root.ID)
	require.NoError(t, err)
	require.False(t, res.Hard)

	res, err = f.comments.DeleteComment(f.ctx, f.author, child.ID)
	require.NoError(t, err)
	require.True(t, res.Hard)

	res, err = f.comments.DeleteComment(f.ctx, f.admin, root.ID)
	require.NoError(t, err)
	assert.True(t, res.Hard)
	_, err = f.comments.GetComment(f.ctx, root.ID)
	assert.ErrorIs(t, err, services.ErrCommentNotFound)
}

func TestModerateComment(t *testing.T) {
	f := newFixture(t)

	c := f.addComment(t, f.reader, "", "needs review")

	_, err := f.comments.ModerateComment(f.ctx, f.author, c.ID, models.CommentApproved, "")
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	_, err = f.comments.ModerateComment(f.ctx, f.admin, c.ID, models.CommentPending, "")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	flagged, err := f.comments.ModerateComment(f.ctx, f.admin, c.ID, models.CommentFlagged, " off topic ")
	require.NoError(t, err)
	assert.Equal(t, models.CommentFlagged, flagged.Status)
	assert.Equal(t, "off topic", flagged.FlagReason)
	require.NotNil(t, flagged.FlaggedBy)
	assert.Equal(t, f.admin.ID, *flagged.FlaggedBy)

	_, err = f.comments.ModerateComment(f.ctx, f.admin, c.ID, models.CommentFlagged, "again")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.True(t, services.IsConflict(err))

	approved, err := f.comments.ModerateComment(f.ctx, f.admin, c.ID, models.CommentApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, approved.Status)
	assert.Empty(t, approved.FlagReason)
	assert.Nil(t, approved.FlaggedBy)

	stored := f.reloadComment(t, c.ID)
	assert.Equal(t, models.CommentApproved, stored.Status)
}

func TestModerateComment_DeletedIsTerminal(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	f.addComment(t, f.author, root.ID, "child")
	_, err := f.comments.DeleteComment(f.ctx, f.author, root.ID)
	require.NoError(t, err)

	_, err = f.comments.ModerateComment(f.ctx, f.admin, root.ID, models.CommentApproved, "")
	assert.ErrorIs(t, err, services.ErrCommentDeleted)

	_, err = f.comments.FlagCommentByUser(f.ctx, f.reader, root.ID, "spam")
	assert.ErrorIs(t, err, services.ErrCommentDeleted)
}

func TestFlagCommentByUser_LatestFlagWins(t *testing.T) {
	f := newFixture(t)

	c := f.addComment(t, f.author, "", "hot take")

	_, err := f.comments.FlagCommentByUser(f.ctx, nil, c.ID, "spam")
	assert.ErrorIs(t, err, services.ErrUnauthenticated)

	_, err = f.comments.FlagCommentByUser(f.ctx, f.reader, c.ID, "spam")
	require.NoError(t, err)
	second, err := f.comments.FlagCommentByUser(f.ctx, f.other, c.ID, "rude")
	require.NoError(t, err)

	assert.Equal(t, models.CommentFlagged, second.Status)
	assert.Equal(t, "rude", second.FlagReason)
	require.NotNil(t, second.FlaggedBy)
	assert.Equal(t, f.other.ID, *second.FlaggedBy)
}

func TestLikeComment(t *testing.T) {
	f := newFixture(t)

	c := f.addComment(t, f.author, "", "like me")

	liked, err := f.comments.LikeComment(f.ctx, f.reader, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, liked.Likes)

	_, err = f.comments.LikeComment(f.ctx, f.reader, c.ID)
	assert.ErrorIs(t, err, services.ErrAlreadyLiked)

	liked, err = f.comments.LikeComment(f.ctx, f.other, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, liked.Likes)

	unliked, err := f.comments.UnlikeComment(f.ctx, f.reader, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unliked.Likes)

	_, err = f.comments.UnlikeComment(f.ctx, f.reader, c.ID)
	assert.ErrorIs(t, err, services.ErrNotLiked)

	_, err = f.comments.LikeComment(f.ctx, nil, c.ID)
	assert.ErrorIs(t, err, services.ErrUnauthenticated)
}

func TestLikeComment_Deleted(t *testing.T) {
	f := newFixture(t)

	root := f.addComment(t, f.author, "", "root")
	f.addComment(t, f.author, root.ID, "child")
	_, err := f.comments.DeleteComment(f.ctx, f.author, root.ID)
	require.NoError(t, err)

	_, err = f.comments.LikeComment(f.ctx, f.reader, root.ID)
	assert.ErrorIs(t, err, services.ErrCommentDeleted)
}

func TestListModerationQueue(t *testing.T) {
	f := newFixture(t)

	p1 := f.addComment(t, f.reader, "", "one")
	p2 := f.addComment(t, f.other, "", "two")
	f.addComment(t, f.author, "", "approved already")

	_, err := f.comments.ListModerationQueue(f.ctx, f.reader, models.CommentPending, "")
	assert.ErrorIs(t, err, services.ErrNotAuthorized)

	_, err = f.comments.ListModerationQueue(f.ctx, f.admin, models.CommentDeleted, "")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	page, err := f.comments.ListModerationQueue(f.ctx, f.admin, models.CommentPending, "")
	require.NoError(t, err)
	assert.Equal(t, []string{p2.ID, p1.ID}, ids(page.Items))
}

func TestListModerationQueue_ApprovedByApprovalTime(t *testing.T) {
	f := newFixture(t)

	first := f.addComment(t, f.reader, "", "written first")
	second := f.addComment(t, f.other, "", "written second")

	f.approve(t, second)
	time.Sleep(time.Millisecond)
	f.approve(t, first)

	page, err := f.comments.ListModerationQueue(f.ctx, f.admin, models.CommentApproved, "")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids(page.Items))
}

func TestCountByStatus(t *testing.T) {
	f := newFixture(t)

	f.addComment(t, f.reader, "", "pending")
	f.addComment(t, f.author, "", "approved")
	c := f.addComment(t, f.author, "", "flag me")
	_, err := f.comments.FlagCommentByUser(f.ctx, f.reader, c.ID, "")
	require.NoError(t, err)

	counts, err := f.comments.CountByStatus(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.CommentPending])
	assert.EqualValues(t, 1, counts[models.CommentApproved])
	assert.EqualValues(t, 1, counts[models.CommentFlagged])
}
