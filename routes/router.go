package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/cppla/ephembbs/config"
	"github.com/cppla/ephembbs/controllers"
	"github.com/cppla/ephembbs/middleware"
	"github.com/cppla/ephembbs/models"
	"github.com/cppla/ephembbs/services"
	"github.com/cppla/ephembbs/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, eng *services.Engine) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := controllers.NewAuthController(db, eng)
	contentController := controllers.NewContentController(eng)
	moderationController := controllers.NewModerationController(eng)
	popupController := controllers.NewPopupController(eng)
	mentionController := controllers.NewMentionController(eng)
	pollController := controllers.NewPollController(eng)
	notificationController := controllers.NewNotificationController(eng)

	requireAuth := middleware.AuthRequired(eng)
	elevated := middleware.RequireRole(models.RoleModerator, models.RoleAdmin)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware("auth"))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", requireAuth, authController.Logout)
	authGroup.GET("/me", requireAuth, authController.Me)

	// Public reads; a token, when present, widens visibility for authors and moderators
	public := api.Group("")
	public.Use(middleware.OptionalAuth(eng))
	public.GET("/contents", contentController.ListFeed)
	public.GET("/contents/:id", contentController.GetContent)
	public.GET("/contents/:id/replies", contentController.ListReplies)
	public.GET("/contents/:id/render", mentionController.Render)
	public.GET("/contents/:id/popup", popupController.Status)
	public.GET("/polls/:id", pollController.Get)
	public.GET("/users/:username/contents", contentController.ListUserContent)
	public.GET("/user/by-username/:username", authController.GetUserPublicByUsername)

	protected := api.Group("")
	protected.Use(requireAuth, middleware.RateLimitMiddleware("write"))
	protected.POST("/contents", contentController.CreateContent)
	protected.POST("/contents/:id/replies", contentController.CreateReply)
	protected.POST("/contents/:id/repost", contentController.Repost)
	protected.DELETE("/contents/:id", contentController.DeleteContent)
	protected.PUT("/contents/:id/replies-disabled", contentController.SetRepliesDisabled)
	protected.POST("/contents/:id/popup", popupController.Enable)
	protected.POST("/contents/:id/popup/close", popupController.Close)
	protected.POST("/contents/:id/flags", moderationController.FileFlag)
	protected.POST("/contents/:id/mentions", mentionController.Create)
	protected.GET("/mentions", mentionController.List)
	protected.POST("/mentions/:id/respond", mentionController.Respond)
	protected.POST("/polls/:id/votes", pollController.Vote)
	protected.GET("/notifications", notificationController.List)
	protected.GET("/notifications/unread-count", notificationController.UnreadCount)
	protected.POST("/notifications/:id/read", notificationController.MarkRead)
	protected.POST("/notifications/read-all", notificationController.MarkAllRead)

	mod := api.Group("/moderation")
	mod.Use(requireAuth, elevated)
	mod.GET("/flagged", moderationController.ListFlagged)
	mod.GET("/contents/:id/flags", moderationController.ListFlags)
	mod.GET("/contents/:id/flags/summary", moderationController.FlagSummary)
	mod.POST("/contents/:id/quarantine", moderationController.Quarantine)
	mod.DELETE("/contents/:id/quarantine", moderationController.Unquarantine)
	mod.POST("/users/:id/mute", moderationController.Mute)
	mod.DELETE("/users/:id/mute", moderationController.Unmute)
	mod.POST("/users/:id/ban", moderationController.Ban)
	mod.DELETE("/users/:id/ban", moderationController.Unban)
	mod.GET("/mutes", moderationController.ListMutes)
	mod.GET("/bans", moderationController.ListBans)
	mod.GET("/stats", moderationController.Stats)

	admin := api.Group("/admin")
	admin.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
	admin.PUT("/contents/:id/pin", contentController.SetPinned)
	admin.PUT("/users/:id/role", authController.UpdateRole)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
