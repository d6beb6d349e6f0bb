package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"inkwell/internal/models"
)

const CheckUserKey = "user"
const UnreadCountKey = "unread_count"

// SessionUserKey is the session field holding the signed-in user id.
const SessionUserKey = "user_id"

type UserLoader interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
}

type UnreadCounter interface {
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

// LoadUser resolves the current user from the session cookie or, failing
// that, an "Authorization: Bearer" token, and stores it on the context.
func LoadUser(users UserLoader, notes UnreadCounter, tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok && tokens != nil {
			userID, ok = bearerUserID(c, tokens)
		}

		if ok {
			user, err := users.GetUser(c.Request.Context(), userID)
			if err == nil && user.Status != models.UserStatusBanned {
				c.Set(CheckUserKey, user)
				if notes != nil {
					if count, err := notes.UnreadCount(c.Request.Context(), user.ID); err == nil {
						c.Set(UnreadCountKey, count)
					}
				}
			}
		}
		c.Next()
	}
}

func sessionUserID(c *gin.Context) (uint, bool) {
	session := sessions.Default(c)
	switch v := session.Get(SessionUserKey).(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	}
	return 0, false
}

func bearerUserID(c *gin.Context, tokens *TokenIssuer) (uint, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return 0, false
	}
	userID, err := tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return 0, false
	}
	return userID, true
}

// CurrentUser returns the user set by LoadUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	u, exists := c.Get(CheckUserKey)
	if !exists {
		return nil
	}
	user, _ := u.(*models.User)
	return user
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "Please sign in to continue.",
			})
			return
		}
		c.Next()
	}
}

// AdminRequired lets only admins through.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthenticated",
				"message": "Please sign in to continue.",
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access required.",
			})
			return
		}
		c.Next()
	}
}

// LoginRedirect sends anonymous visitors of HTML pages to the login page.
func LoginRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, "/login?next="+c.Request.URL.Path)
			c.Abort()
			return
		}
		c.Next()
	}
}
