package services

import "inkwell/internal/models"

// commentTransitions lists the moderation moves allowed from each status.
// Deleted is terminal. Edits returning a comment to pending bypass this table.
var commentTransitions = map[models.CommentStatus][]models.CommentStatus{
	models.CommentPending:  {models.CommentApproved, models.CommentFlagged, models.CommentDeleted},
	models.CommentApproved: {models.CommentFlagged, models.CommentDeleted},
	models.CommentFlagged:  {models.CommentApproved, models.CommentDeleted},
}

// ValidCommentStatus reports whether s is a known status.
func ValidCommentStatus(s models.CommentStatus) bool {
	switch s {
	case models.CommentPending, models.CommentApproved, models.CommentFlagged, models.CommentDeleted:
		return true
	}
	return false
}

// CanTransition reports whether a comment may move from one status to another.
func CanTransition(from, to models.CommentStatus) bool {
	for _, next := range commentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// visibleStatuses are shown to readers. Deleted placeholders stay so reply
// chains under them remain reachable.
var visibleStatuses = []models.CommentStatus{models.CommentApproved, models.CommentDeleted}

// moderationQueues are the statuses the dashboard pages through.
var moderationQueues = []models.CommentStatus{models.CommentPending, models.CommentFlagged, models.CommentApproved}

func isModerationQueue(s models.CommentStatus) bool {
	for _, q := range moderationQueues {
		if q == s {
			return true
		}
	}
	return false
}
