package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/earlywake/backend/utils"
)

// AppController serves liveness endpoints.
type AppController struct {
	db *gorm.DB
}

// NewAppController creates a new AppController instance.
func NewAppController(db *gorm.DB) *AppController {
	return &AppController{db: db}
}

// WakeUp answers keep-alive pings from the hosting platform.
func (a *AppController) WakeUp(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "Server is awake and ready!"})
}

// Health reports database and cache reachability.
func (a *AppController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
	healthy := true

	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(pingCtx) != nil {
		status["database"] = "unreachable"
		healthy = false
	}
	if rc := utils.GetRedis(); rc != nil {
		status["redis"] = "ok"
		if err := rc.Ping(pingCtx).Err(); err != nil {
			status["redis"] = "unreachable"
		}
	}

	if !healthy {
		status["status"] = "degraded"
		utils.Respond(ctx, http.StatusServiceUnavailable, 50300, "service unavailable", status)
		return
	}
	utils.Success(ctx, status)
}
