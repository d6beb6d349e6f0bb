package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/services"
)

type AuthHandler struct {
	users  *services.UserService
	mail   *services.MailService
	tokens *middleware.TokenIssuer
	google *GoogleOAuth
	log    *zap.Logger
}

func NewAuthHandler(users *services.UserService, mail *services.MailService, tokens *middleware.TokenIssuer, google *GoogleOAuth, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		users:  users,
		mail:   mail,
		tokens: tokens,
		google: google,
		log:    logger.Named("auth"),
	}
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// signIn stores the user in the session and issues a bearer token.
func (h *AuthHandler) signIn(c *gin.Context, user *models.User) (string, error) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		return "", err
	}
	return h.tokens.GenerateToken(user.ID)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if h.mail.Enabled() {
		h.mail.SendWelcomeEmail(user.Email, user.Username)
	}

	token, err := h.signIn(c, user)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	token, err := h.signIn(c, user)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var in services.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c), in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	Render(c, http.StatusOK, "auth/login.html", gin.H{
		"Title":         "Sign in",
		"Next":          safeNext(c.Query("next")),
		"GoogleEnabled": h.google.Enabled(),
	})
}

// LoginForm is the HTML form counterpart of Login.
func (h *AuthHandler) LoginForm(c *gin.Context) {
	var in loginRequest
	next := safeNext(c.PostForm("next"))
	if err := c.ShouldBind(&in); err != nil {
		Render(c, http.StatusBadRequest, "auth/login.html", gin.H{"Error": "Email and password are required.", "Next": next})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		status, _ := errorStatus(err)
		Render(c, status, "auth/login.html", gin.H{"Error": services.UserMessage(err), "Next": next, "Email": in.Email})
		return
	}
	if _, err := h.signIn(c, user); err != nil {
		renderServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, next)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/blog"
	}
	return next
}
