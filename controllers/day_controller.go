package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/utils"
)

// BackfillTrigger runs the missed-day backfill on demand.
type BackfillTrigger interface {
	Run(ctx context.Context) (services.BackfillResult, error)
}

// DayController exposes the day ledger.
type DayController struct {
	days     *services.DayService
	cal      *services.Calendar
	backfill BackfillTrigger
}

// NewDayController creates a new DayController instance.
func NewDayController(days *services.DayService, cal *services.Calendar, backfill BackfillTrigger) *DayController {
	return &DayController{days: days, cal: cal, backfill: backfill}
}

// Create records today's wake-up for the signed-in user.
func (d *DayController) Create(ctx *gin.Context) {
	day, err := d.days.Create(ctx.Request.Context(), principal(ctx).ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, day)
}

// CreateByAdmin records a day for any user, with an optional proof photo.
func (d *DayController) CreateByAdmin(ctx *gin.Context) {
	var req struct {
		UserID          string `json:"userId" form:"userId" binding:"required"`
		Date            string `json:"date" form:"date" binding:"required"`
		WakeUp          *bool  `json:"wakeUp" form:"wakeUp" binding:"required"`
		PrayInTheMosque bool   `json:"prayInTheMosque" form:"prayInTheMosque"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload: userId, date and wakeUp are required")
		return
	}
	date, err := d.cal.ParseDate(req.Date)
	if err != nil {
		respondError(ctx, err)
		return
	}

	photo, closePhoto, err := formPhoto(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid photo upload")
		return
	}
	defer closePhoto()

	day, err := d.days.CreateByAdmin(ctx.Request.Context(), services.AdminDayInput{
		UserID:          req.UserID,
		Date:            date,
		WakeUp:          *req.WakeUp,
		PrayInTheMosque: req.PrayInTheMosque,
	}, photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, day)
}

func (d *DayController) FindAll(ctx *gin.Context) {
	days, err := d.days.FindAll(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, days)
}

func (d *DayController) FindOne(ctx *gin.Context) {
	day, err := d.days.FindOne(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, day)
}

// Update changes the date or mosque flag of a day, or attaches a proof photo.
func (d *DayController) Update(ctx *gin.Context) {
	var req struct {
		Date            *string `json:"date" form:"date"`
		PrayInTheMosque *bool   `json:"prayInTheMosque" form:"prayInTheMosque"`
	}
	if err := bindOptional(ctx, &req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	in := services.DayUpdate{PrayInTheMosque: req.PrayInTheMosque}
	if req.Date != nil && *req.Date != "" {
		date, err := d.cal.ParseDate(*req.Date)
		if err != nil {
			respondError(ctx, err)
			return
		}
		in.Date = &date
	}

	photo, closePhoto, err := formPhoto(ctx)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid photo upload")
		return
	}
	defer closePhoto()

	day, err := d.days.Update(ctx.Request.Context(), ctx.Param("id"), in, principal(ctx), photo)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, day)
}

func (d *DayController) Remove(ctx *gin.Context) {
	day, err := d.days.Remove(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, day)
}

// CreateDefaultDays runs the missed-day backfill immediately.
func (d *DayController) CreateDefaultDays(ctx *gin.Context) {
	runCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Minute)
	defer cancel()

	res, err := d.backfill.Run(runCtx)
	if err != nil && res.Created+res.Skipped+res.Failed == 0 {
		respondError(ctx, err)
		return
	}
	if err != nil {
		utils.Sugar.Warnw("backfill finished with errors", "error", err)
		utils.Respond(ctx, http.StatusOK, 0, "completed with failures", res)
		return
	}
	utils.Success(ctx, res)
}
