package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// UserController exposes the user ledger.
type UserController struct {
	users *services.UserService
}

// NewUserController creates a new UserController instance.
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

// Create registers a participant. Only admins reach this handler.
func (u *UserController) Create(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" form:"username" binding:"required"`
		Password string `json:"password" form:"password"`
		Name     string `json:"name" form:"name"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload: username is required")
		return
	}

	photo, closePhoto, err := formPhoto(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid photo upload")
		return
	}
	defer closePhoto()

	user, err := u.users.Create(ctx.Request.Context(), services.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	}, photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, user)
}

func (u *UserController) FindAll(ctx *gin.Context) {
	users, err := u.users.FindAll(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, users)
}

func (u *UserController) Leaderboard(ctx *gin.Context) {
	board, err := u.users.Leaderboard(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, board)
}

// GetMe returns the signed-in user with rank and days.
func (u *UserController) GetMe(ctx *gin.Context) {
	user, err := u.users.GetMe(ctx.Request.Context(), principal(ctx).Username)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

func (u *UserController) FindOne(ctx *gin.Context) {
	user, err := u.users.FindOne(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// Update overwrites the supplied fields; points and totalAmount must be integers.
func (u *UserController) Update(ctx *gin.Context) {
	var req struct {
		Username    *string `json:"username" form:"username"`
		Password    *string `json:"password" form:"password"`
		Name        *string `json:"name" form:"name"`
		Points      *int    `json:"points" form:"points"`
		TotalAmount *int    `json:"totalAmount" form:"totalAmount"`
	}
	if err := bindOptional(ctx, &req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload: points and totalAmount must be integers")
		return
	}

	photo, closePhoto, err := formPhoto(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid photo upload")
		return
	}
	defer closePhoto()

	user, err := u.users.Update(ctx.Request.Context(), ctx.Param("id"), services.UpdateUserInput{
		Username:    req.Username,
		Password:    req.Password,
		Name:        req.Name,
		Points:      req.Points,
		TotalAmount: req.TotalAmount,
	}, photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// ResetAllData wipes every day and zeroes all counters.
func (u *UserController) ResetAllData(ctx *gin.Context) {
	removed, err := u.users.ResetAllData(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "All data has been reset", "deletedDays": removed})
}

func (u *UserController) RemoveAllDays(ctx *gin.Context) {
	removed, err := u.users.RemoveAllDays(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deletedDays": removed})
}

func (u *UserController) Remove(ctx *gin.Context) {
	user, err := u.users.Remove(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}
