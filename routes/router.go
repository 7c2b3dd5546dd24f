package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/earlywake/backend/config"
	"github.com/earlywake/backend/controllers"
	"github.com/earlywake/backend/middleware"
	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	DB       *gorm.DB
	Calendar *services.Calendar
	Days     *services.DayService
	Users    *services.UserService
	Gifts    *services.GiftService
	Auth     *services.AuthService
	Backfill controllers.BackfillTrigger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Dependencies) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = int64(max(cfg.UploadMaxMB, 1)) << 20
	// Replace default console logger with file-based zap logger
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err == nil {
			r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
			r.Use(ginzap.RecoveryWithZap(gl, true))
		} else {
			utils.Sugar.Warnf("gin log file unavailable, falling back to default recovery: %v", err)
			r.Use(gin.Recovery())
		}
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestMetrics())

	if cfg.PhotoStore == "" || cfg.PhotoStore == "local" {
		r.Static(cfg.UploadURLPrefix, cfg.UploadDir)
	}

	appController := controllers.NewAppController(deps.DB)
	authController := controllers.NewAuthController(deps.Auth)
	dayController := controllers.NewDayController(deps.Days, deps.Calendar, deps.Backfill)
	userController := controllers.NewUserController(deps.Users)
	giftController := controllers.NewGiftController(deps.Gifts)

	authed := middleware.AuthRequired(cfg.JWTSecret)
	adminOnly := middleware.AdminRequired()

	r.GET("/wake-up", appController.WakeUp)
	r.GET("/health", appController.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/admin-login", authController.AdminLogin)
	authGroup.POST("/user-login", authController.UserLogin)
	authGroup.POST("/logout", authed, authController.Logout)

	daysGroup := r.Group("/days", authed)
	daysGroup.POST("", middleware.UserRequired(), dayController.Create)
	daysGroup.POST("/admin", adminOnly, dayController.CreateByAdmin)
	daysGroup.GET("", dayController.FindAll)
	daysGroup.GET("/default-days", adminOnly, dayController.CreateDefaultDays)
	daysGroup.GET("/:id", dayController.FindOne)
	daysGroup.PATCH("/:id", dayController.Update)
	daysGroup.DELETE("/:id", adminOnly, dayController.Remove)

	userGroup := r.Group("/user", authed)
	userGroup.GET("", userController.FindAll)
	userGroup.POST("", adminOnly, userController.Create)
	userGroup.GET("/leaderboard", userController.Leaderboard)
	userGroup.GET("/me", userController.GetMe)
	userGroup.DELETE("/reset-all-data", adminOnly, userController.ResetAllData)
	userGroup.GET("/:id", userController.FindOne)
	userGroup.PATCH("/:id", adminOnly, userController.Update)
	userGroup.DELETE("/:id", adminOnly, userController.Remove)
	userGroup.DELETE("/:id/days", adminOnly, userController.RemoveAllDays)

	r.POST("/gift", giftController.Create)
	r.GET("/gift", authed, giftController.Find)
	r.PATCH("/gift", authed, adminOnly, giftController.Update)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
