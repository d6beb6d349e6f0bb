package services

import "errors"

var (
	// ErrCommentNotFound indicates the requested comment doesn't exist
	ErrCommentNotFound = errors.New("comment not found")

	// ErrParentNotFound indicates the parent comment of a reply doesn't exist
	ErrParentNotFound = errors.New("parent comment not found")

	// ErrParentNotVisible indicates a reply to a comment still awaiting moderation
	ErrParentNotVisible = errors.New("parent comment is not available")

	ErrPostNotFound         = errors.New("post not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrChatMessageNotFound  = errors.New("chat message not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrContentEmpty indicates comment content is empty after trimming
	ErrContentEmpty = errors.New("comment content is required")

	// ErrContentTooLong indicates comment content exceeds MaxCommentLength runes
	ErrContentTooLong = errors.New("comment content exceeds 1000 characters")

	// ErrMaxDepthExceeded indicates a reply to a comment already at MaxDepth
	ErrMaxDepthExceeded = errors.New("maximum reply depth reached")

	// ErrParentMismatch indicates the parent belongs to another post
	ErrParentMismatch = errors.New("parent comment belongs to a different post")

	// ErrParentDeleted indicates a reply to a deleted comment
	ErrParentDeleted = errors.New("cannot reply to a deleted comment")

	// ErrCommentDeleted indicates an edit or moderation of a deleted comment
	ErrCommentDeleted = errors.New("comment has been deleted")

	// ErrInvalidStatus indicates an unknown comment status value
	ErrInvalidStatus = errors.New("invalid comment status")

	// ErrInvalidTransition indicates a status change the state machine forbids
	ErrInvalidTransition = errors.New("invalid comment status transition")

	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrPostNotPublished   = errors.New("post is not published")
	ErrFeedbackNotAllowed = errors.New("feedback is only accepted for bot messages")

	// ErrUnauthenticated indicates the action requires a signed-in user
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotAuthorized indicates the user is not allowed to perform this action
	ErrNotAuthorized = errors.New("not authorized")

	ErrSelfRoleChange = errors.New("admins cannot change their own role")
	ErrUserMuted      = errors.New("account is muted")
	ErrUserBanned     = errors.New("account is banned")

	ErrEmailTaken    = errors.New("email already registered")
	ErrAlreadyLiked  = errors.New("comment already liked")
	ErrNotLiked      = errors.New("comment not liked")
	ErrFeedbackGiven = errors.New("feedback already recorded for this message")

	// ErrConcurrentModification indicates the row changed since it was loaded
	ErrConcurrentModification = errors.New("comment was modified by another operation")
)

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCommentNotFound) ||
		errors.Is(err, ErrParentNotFound) ||
		errors.Is(err, ErrParentNotVisible) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrChatMessageNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsConflict checks if an error is a conflict/already exists error
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrAlreadyLiked) ||
		errors.Is(err, ErrNotLiked) ||
		errors.Is(err, ErrFeedbackGiven) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrContentEmpty) ||
		errors.Is(err, ErrContentTooLong) ||
		errors.Is(err, ErrMaxDepthExceeded) ||
		errors.Is(err, ErrParentMismatch) ||
		errors.Is(err, ErrParentDeleted) ||
		errors.Is(err, ErrCommentDeleted) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrPostNotPublished) ||
		errors.Is(err, ErrFeedbackNotAllowed) ||
		errors.Is(err, ErrSelfRoleChange)
}

// IsPermissionError checks if an error is an authentication or authorization error
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNotAuthorized) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUserMuted) ||
		errors.Is(err, ErrUserBanned)
}

// UserMessage translates an error into copy suitable for end users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "The email or password you entered is incorrect."
	case errors.Is(err, ErrEmailTaken):
		return "An account with this email already exists."
	case errors.Is(err, ErrWeakPassword):
		return "Please choose a password with at least 6 characters."
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.Is(err, ErrNotAuthorized):
		return "You don't have permission to do that."
	case errors.Is(err, ErrUserMuted):
		return "Your account is muted and cannot post right now."
	case errors.Is(err, ErrUserBanned):
		return "Your account has been banned."
	case errors.Is(err, ErrContentEmpty):
		return "Comment cannot be empty."
	case errors.Is(err, ErrContentTooLong):
		return "Comments are limited to 1000 characters."
	case errors.Is(err, ErrMaxDepthExceeded):
		return "This thread is too deep to reply to."
	case errors.Is(err, ErrParentNotVisible):
		return "The comment you replied to is not available."
	case errors.Is(err, ErrConcurrentModification):
		return "This comment was changed by someone else. Please reload and try again."
	case IsNotFound(err):
		return "We couldn't find what you were looking for."
	case IsValidationError(err), IsConflict(err):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}
