package services

import (
	"context"

	"inkwell/internal/models"
)

// MaxIndentLevel caps the visual nesting of a thread. Deeper replies render
// at this level.
const MaxIndentLevel = 5

// IndentLevel maps a comment depth to its indentation.
func IndentLevel(depth int) int {
	if depth < 0 {
		return 0
	}
	if depth > MaxIndentLevel {
		return MaxIndentLevel
	}
	return depth
}

// CanReply reports whether the comment accepts replies.
func CanReply(c *models.Comment) bool {
	return c != nil && c.Status != models.CommentDeleted && c.Depth < MaxCommentDepth
}

// CanEdit reports whether viewer may edit or delete c.
func CanEdit(viewer *models.User, c *models.Comment) bool {
	if viewer == nil || c == nil || c.Status == models.CommentDeleted {
		return false
	}
	return viewer.ID == c.AuthorID || viewer.IsAdmin()
}

type FormKind string

const (
	FormNone  FormKind = ""
	FormEdit  FormKind = "edit"
	FormReply FormKind = "reply"
)

// ActiveForm is the one inline form open in a thread. Holding a single value
// keeps edit and reply mutually exclusive.
type ActiveForm struct {
	CommentID string   `json:"comment_id,omitempty"`
	Kind      FormKind `json:"kind,omitempty"`
}

type ThreadOptions struct {
	// Expanded holds the ids whose replies should be loaded.
	Expanded map[string]bool
	// ReplyCursors continues the reply list of an expanded node.
	ReplyCursors map[string]string
	ActiveForm   ActiveForm
}

type ThreadNode struct {
	Comment           models.Comment `json:"comment"`
	Indent            int            `json:"indent"`
	CanReply          bool           `json:"can_reply"`
	CanEdit           bool           `json:"can_edit"`
	RepliesLoaded     bool           `json:"replies_loaded"`
	RepliesVisible    bool           `json:"replies_visible"`
	Replies           []*ThreadNode  `json:"replies,omitempty"`
	NextRepliesCursor string         `json:"next_replies_cursor,omitempty"`
	HasMoreReplies    bool           `json:"has_more_replies"`
	Form              FormKind       `json:"form,omitempty"`
}

type Thread struct {
	PostID     string        `json:"post_id"`
	Nodes      []*ThreadNode `json:"nodes"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
	// ActiveForm is the form actually attached, empty if the request named
	// a node that cannot take it.
	ActiveForm ActiveForm `json:"active_form"`
}

// LoadThread builds one page of a post's comment tree. Replies are fetched
// only below nodes listed in opts.Expanded.
func (s *CommentService) LoadThread(ctx context.Context, viewer *models.User, postID, cursor string, opts ThreadOptions) (*Thread, error) {
	page, err := s.GetTopLevelComments(ctx, viewer, postID, cursor)
	if err != nil {
		return nil, err
	}

	t := &Thread{
		PostID:     postID,
		Nodes:      make([]*ThreadNode, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i := range page.Items {
		node, err := s.buildNode(ctx, viewer, page.Items[i], opts, t)
		if err != nil {
			return nil, err
		}
		t.Nodes = append(t.Nodes, node)
	}
	return t, nil
}

// LoadReplies builds the reply subtree of one comment, used when a single
// node is expanded in place.
func (s *CommentService) LoadReplies(ctx context.Context, viewer *models.User, commentID, cursor string, opts ThreadOptions) (*ThreadNode, error) {
	c, err := s.comments.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visiblePost(ctx, viewer, c.PostID); err != nil {
		return nil, err
	}
	if opts.Expanded == nil {
		opts.Expanded = map[string]bool{}
	}
	opts.Expanded[commentID] = true
	if cursor != "" {
		if opts.ReplyCursors == nil {
			opts.ReplyCursors = map[string]string{}
		}
		opts.ReplyCursors[commentID] = cursor
	}
	return s.buildNode(ctx, viewer, *c, opts, &Thread{PostID: c.PostID})
}

func (s *CommentService) buildNode(ctx context.Context, viewer *models.User, c models.Comment, opts ThreadOptions, t *Thread) (*ThreadNode, error) {
	node := &ThreadNode{
		Comment:  c,
		Indent:   IndentLevel(c.Depth),
		CanReply: viewer != nil && CanReply(&c),
		CanEdit:  CanEdit(viewer, &c),
	}

	if opts.ActiveForm.CommentID == c.ID {
		switch opts.ActiveForm.Kind {
		case FormReply:
			if node.CanReply {
				node.Form = FormReply
			}
		case FormEdit:
			if node.CanEdit {
				node.Form = FormEdit
			}
		}
		if node.Form != FormNone {
			t.ActiveForm = ActiveForm{CommentID: c.ID, Kind: node.Form}
		}
	}

	if !opts.Expanded[c.ID] {
		return node, nil
	}
	node.RepliesVisible = true

	if c.ReplyCount == 0 {
		node.RepliesLoaded = true
		return node, nil
	}

	page, err := s.repliesPage(ctx, &c, opts.ReplyCursors[c.ID])
	if err != nil {
		return nil, err
	}
	node.RepliesLoaded = true
	node.NextRepliesCursor = page.NextCursor
	node.HasMoreReplies = page.HasMore
	node.Replies = make([]*ThreadNode, 0, len(page.Items))
	for i := range page.Items {
		child, err := s.buildNode(ctx, viewer, page.Items[i], opts, t)
		if err != nil {
			return nil, err
		}
		node.Replies = append(node.Replies, child)
	}
	return node, nil
}
