package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
		if count, ok := c.Get(middleware.UnreadCountKey); ok {
			obj["UnreadCount"] = int(count.(int64))
		} else {
			obj["UnreadCount"] = 0
		}
	}

	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// HTMX Redirect helper
func HtmxRedirect(c *gin.Context, path string) {
	c.Header("HX-Redirect", path)
	c.Status(http.StatusOK)
}

func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message, "Code": code})
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: message})
}

// errorStatus maps a service error onto an HTTP status and a short code.
func errorStatus(err error) (int, string) {
	switch {
	case services.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrUnauthenticated), errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated"
	case services.IsPermissionError(err):
		return http.StatusForbidden, "forbidden"
	case services.IsValidationError(err):
		return http.StatusBadRequest, "invalid_request"
	case services.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, services.ErrUploadNotConfigured):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// handleServiceError writes the JSON error body for err. Unexpected errors
// are attached to the context so the request logger records them.
func handleServiceError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	writeError(c, status, code, services.UserMessage(err))
}

// renderServiceError is handleServiceError for HTML pages.
func renderServiceError(c *gin.Context, err error) {
	status, _ := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	RenderError(c, status, services.UserMessage(err))
}

func bindError(c *gin.Context, err error) {
	writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// uintParam parses a numeric path parameter; it writes a 400 and returns
// false when the value is not a positive integer.
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		writeError(c, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return uint(v), true
}
