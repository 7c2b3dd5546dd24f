package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/earlywake/backend/config"
	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/routes"
	"github.com/earlywake/backend/scheduler"
	"github.com/earlywake/backend/services"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	utils.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	db := config.InitDatabase(cfg, models.All()...)

	ctx := context.Background()
	store, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		utils.Sugar.Fatalf("photo store: %v", err)
	}
	cal, err := services.NewCalendar(cfg.Timezone, cfg.DayNoonHour, services.SystemClock{})
	if err != nil {
		utils.Sugar.Fatalf("calendar: %v", err)
	}

	auth := services.NewAuthService(db, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	if created, err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		utils.Sugar.Fatalf("seed admin: %v", err)
	} else if created {
		utils.Sugar.Infof("admin account %q created", cfg.AdminUsername)
	}

	gifts := services.NewGiftService(db, store, cfg.DefaultPhotoURL)
	if _, created, err := gifts.Create(ctx); err != nil {
		utils.Sugar.Warnf("seed gift: %v", err)
	} else if created {
		utils.Sugar.Info("default gift created")
	}

	days := services.NewDayService(db, cal, store, cfg.DefaultPhotoURL)
	backfill, err := scheduler.NewBackfill(days, cfg.BackfillCron, cal.Location())
	if err != nil {
		utils.Sugar.Fatalf("backfill schedule: %v", err)
	}
	if cfg.BackfillEnabled {
		backfill.Start()
	}

	r := routes.SetupRouter(cfg, routes.Dependencies{
		DB:       db,
		Calendar: cal,
		Days:     days,
		Users:    services.NewUserService(db, store, cfg.DefaultPhotoURL),
		Gifts:    gifts,
		Auth:     auth,
		Backfill: backfill,
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err = utils.GraceServer(":"+cfg.AppPort, r, func() { backfill.Stop() })
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}

	select {
	case <-backfill.Stop().Done():
	case <-time.After(30 * time.Second):
		utils.Sugar.Warn("backfill did not stop in time")
	}
	utils.CloseRedis()
}
