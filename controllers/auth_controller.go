package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/earlywake/backend/middleware"
	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// AuthController issues and revokes bearer tokens.
type AuthController struct {
	auth *services.AuthService
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

// AdminLogin verifies admin credentials and issues a JWT.
func (a *AuthController) AdminLogin(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	admin, err := a.auth.ValidateAdmin(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}

	token, err := a.auth.IssueToken(services.Principal{ID: admin.ID, Username: admin.Username, Role: utils.RoleAdmin})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token})
}

// UserLogin signs a participant in by username.
func (a *AuthController) UserLogin(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	user, err := a.auth.ValidateUser(ctx.Request.Context(), req.Username)
	if err != nil {
		respondError(ctx, err)
		return
	}

	token, err := a.auth.IssueToken(services.Principal{ID: user.ID, Username: user.Username, Role: utils.RoleUser})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": token})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.auth.Logout(ctx.GetString(middleware.ContextTokenKey)); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}
