package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// GiftController exposes the shared reward.
type GiftController struct {
	gifts *services.GiftService
}

// NewGiftController creates a new GiftController instance.
func NewGiftController(gifts *services.GiftService) *GiftController {
	return &GiftController{gifts: gifts}
}

// Create seeds the gift row; repeated calls leave the existing gift alone.
func (g *GiftController) Create(ctx *gin.Context) {
	gift, created, err := g.gifts.Create(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !created {
		utils.Success(ctx, gin.H{"message": "Gift already exists", "gift": gift})
		return
	}
	utils.Created(ctx, gin.H{"message": "Gift created", "gift": gift})
}

func (g *GiftController) Find(ctx *gin.Context) {
	gift, err := g.gifts.Find(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gift)
}

// Update changes the gift description and/or photo.
func (g *GiftController) Update(ctx *gin.Context) {
	var req struct {
		Description *string `json:"description" form:"description"`
	}
	if err := bindOptional(ctx, &req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	photo, closePhoto, err := formPhoto(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid photo upload")
		return
	}
	defer closePhoto()

	gift, err := g.gifts.Update(ctx.Request.Context(), req.Description, photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gift)
}
