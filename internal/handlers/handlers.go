package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vorbereitung/api/internal/config"
	"vorbereitung/api/internal/middleware"
	"vorbereitung/api/internal/ratelimit"
	"vorbereitung/api/internal/repository"
	"vorbereitung/api/internal/service"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	userService *service.UserService
	db          *pgxpool.Pool
	cache       *redis.Client
	users       *repository.UserRepository
	sessions    *repository.SessionRepository
	settings    *repository.SettingRepository
	results     *repository.QuizResultRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	resultRepo := repository.NewQuizResultRepository(db)

	limiter := ratelimit.NewLimiter(cache, cfg.Auth.MaxLoginAttempts, cfg.Auth.RateLimitWindow)
	auth := service.NewAuthService(userRepo, sessionRepo, limiter, cfg, log)
	users := service.NewUserService(userRepo, sessionRepo, resultRepo, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: auth,
		userService: users,
		db:          db,
		cache:       cache,
		users:       userRepo,
		sessions:    sessionRepo,
		settings:    settingRepo,
		results:     resultRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authn := middleware.Auth(h.cfg, h.users, h.sessions)
	gate := middleware.Maintenance(h.settings, h.log)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		// Admin login and logout stay reachable during maintenance so an
		// administrator can always get in to turn the flag off.
		auth.POST("/admin", h.AdminLogin)
		auth.POST("/logout", h.Logout)
		auth.POST("/register", gate, h.RegisterUser)
		auth.POST("/login", gate, h.Login)

		session := v1.Group("/auth", authn, gate)
		session.GET("/session", h.CheckSession)
		session.POST("/ping", h.Ping)

		users := v1.Group("/users", authn, gate)
		users.PATCH("/profile", h.UpdateProfile)
		users.PUT("/password", h.UpdatePassword)

		quiz := v1.Group("/quiz", authn, gate)
		quiz.GET("/access/:level", h.QuizAccess)
		quiz.POST("/results", h.SaveQuizResult)
		quiz.GET("/results", h.ListQuizResults)
		quiz.GET("/stats", h.QuizStats)

		v1.GET("/maintenance/status", h.MaintenanceStatus)

		admin := v1.Group("/admin", authn, middleware.RequireAdmin())
		admin.GET("/users", h.AdminListUsers)
		admin.GET("/users/pending", h.AdminListPendingUsers)
		admin.POST("/users", h.AdminCreateUser)
		admin.GET("/users/:id", h.AdminGetUser)
		admin.PATCH("/users/:id", h.AdminUpdateUser)
		admin.POST("/users/:id/activate", h.AdminActivateUser)
		admin.POST("/users/:id/deactivate", h.AdminDeactivateUser)
		admin.POST("/users/:id/access", h.AdminSetAccess)
		admin.POST("/users/:id/device-limit", h.AdminSetDeviceLimit)
		admin.DELETE("/users/:id", h.AdminDeleteUser)
		admin.GET("/settings", h.AdminListSettings)
		admin.PUT("/maintenance", h.AdminSetMaintenance)
		admin.PUT("/logout-timer", h.AdminSetLogoutTimer)
	}
}
