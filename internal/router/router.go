package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"inkwell/internal/config"
	"inkwell/internal/handlers"
	"inkwell/internal/middleware"
	"inkwell/internal/services"
)

const sessionName = "inkwell_session"

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	Users         *services.UserService
	Posts         *services.PostService
	Comments      *services.CommentService
	Dashboard     *services.ModerationDashboard
	Notifications *services.NotificationService
	Chat          *services.ChatService
	Importer      *services.FeedImporter
	Uploader      *services.ImageUploader
	Mail          *services.MailService
	Tokens        *middleware.TokenIssuer
}

// New builds the engine with the global middleware stack and all routes.
// HTML pages are served only when cfg.TemplateDir is set.
func New(d Deps) (*gin.Engine, error) {
	cfg := d.Config
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger.Named("http")))

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.TemplateDir != "" {
		render, err := LoadTemplates(cfg.TemplateDir)
		if err != nil {
			return nil, err
		}
		r.HTMLRender = render
	}

	r.Use(middleware.LoadUser(d.Users, d.Notifications, d.Tokens))

	RegisterRoutes(r, d)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config

	google := handlers.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
	authHandler := handlers.NewAuthHandler(d.Users, d.Mail, d.Tokens, google, d.Logger)
	blogHandler := handlers.NewBlogHandler(d.Posts, d.Comments, cfg.SiteURL)
	commentHandler := handlers.NewCommentHandler(d.Comments)
	adminHandler := handlers.NewAdminHandler(d.Comments, d.Dashboard, d.Users, d.Importer, d.Chat)
	chatHandler := handlers.NewChatHandler(d.Chat)
	imageHandler := handlers.NewImageHandler(d.Uploader)
	notificationHandler := handlers.NewNotificationHandler(d.Notifications)
	seoHandler := handlers.NewSEOHandler(d.Posts, cfg.SiteURL, cfg.SiteName)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Pages
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/blog") })
	r.GET("/blog", blogHandler.ListPage)
	r.GET("/blog/:id", blogHandler.DetailPage)
	r.GET("/blog/:id/comments/:cid/replies", blogHandler.RepliesPartial)
	r.GET("/login", authHandler.ShowLogin)
	r.POST("/login", authHandler.LoginForm)
	r.GET("/auth/google/login", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)
	r.GET("/admin/moderation", middleware.LoginRedirect(), adminHandler.ModerationPage)

	r.GET("/sitemap.xml", seoHandler.SitemapXML)
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/feed.xml", seoHandler.RSSFeed)

	api := r.Group("/api")

	// Public API
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	api.GET("/posts", blogHandler.ListPosts)
	api.GET("/posts/trending", blogHandler.Trending)
	api.GET("/posts/:id", blogHandler.GetPost)
	api.GET("/posts/:id/share", blogHandler.Share)
	api.GET("/posts/:id/comments", commentHandler.List)
	api.GET("/posts/:id/thread", commentHandler.Thread)
	api.GET("/comments/:id/replies", commentHandler.Replies)

	api.POST("/chat/messages", chatHandler.Send)
	api.POST("/chat/messages/:id/feedback", chatHandler.Feedback)
	api.GET("/chat/sessions/:id", chatHandler.History)

	// Signed-in API
	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/auth/me", authHandler.Me)
		authorized.PATCH("/user/profile", authHandler.UpdateProfile)
		authorized.GET("/user/posts", blogHandler.MyPosts)

		authorized.POST("/posts", blogHandler.CreatePost)
		authorized.PUT("/posts/:id", blogHandler.UpdatePost)
		authorized.DELETE("/posts/:id", blogHandler.DeletePost)

		authorized.POST("/posts/:id/comments", commentHandler.Create)
		authorized.PATCH("/comments/:id", commentHandler.Update)
		authorized.DELETE("/comments/:id", commentHandler.Delete)
		authorized.POST("/comments/:id/flag", commentHandler.Flag)
		authorized.POST("/comments/:id/like", commentHandler.Like)
		authorized.DELETE("/comments/:id/like", commentHandler.Unlike)

		authorized.POST("/upload", imageHandler.Upload)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
	}

	// Admin API
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/moderation/:queue", adminHandler.Queue)
		admin.POST("/moderation/:queue/more", adminHandler.QueueMore)
		admin.POST("/moderation/:queue/reload", adminHandler.QueueReload)
		admin.POST("/comments/:id/moderate", adminHandler.Moderate)
		admin.GET("/stats", adminHandler.Stats)
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/role", adminHandler.ChangeRole)
		admin.GET("/users/:id/role-audit", adminHandler.RoleAudit)
		admin.POST("/users/:id/punish", adminHandler.PunishUser)
		admin.POST("/import-feed", adminHandler.ImportFeed)
		admin.GET("/chat/analytics", adminHandler.ChatAnalytics)
	}
}
