package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

const (
	WakeUpPoints  = 10
	PhotoPoints   = 20
	MissedDayCost = 5
)

const (
	leaderboardCacheKey      = "cache:leaderboard"
	leaderboardGenerationKey = "gen:leaderboard"
)

var errAlreadyRecorded = errors.New("day already recorded")

// contribution is the number of points a day is worth to its owner.
func contribution(d models.Day) int {
	switch {
	case d.HasPhoto():
		return PhotoPoints
	case d.WakeUp:
		return WakeUpPoints
	default:
		return 0
	}
}

// leaderboardKey is the cache key for the board of generation gen.
func leaderboardKey(gen int64) string {
	return fmt.Sprintf("%s:%d", leaderboardCacheKey, gen)
}

// invalidateLeaderboard moves readers to a new generation before dropping old boards,
// so a board computed before a points change can no longer be served.
func invalidateLeaderboard() {
	utils.BumpGeneration(leaderboardGenerationKey)
	utils.InvalidateByPrefix(leaderboardCacheKey + ":")
}

// DayService records check-ins and keeps user points in step with them.
type DayService struct {
	db     *gorm.DB
	cal    *Calendar
	photos photoKeeper
}

func NewDayService(db *gorm.DB, cal *Calendar, store storage.PhotoStore, placeholder string) *DayService {
	return &DayService{db: db, cal: cal, photos: photoKeeper{store: store, placeholder: placeholder}}
}

// AdminDayInput describes a day recorded on a user's behalf.
type AdminDayInput struct {
	UserID          string
	Date            time.Time
	WakeUp          bool
	PrayInTheMosque bool
}

// DayUpdate holds the optional fields of a day update.
type DayUpdate struct {
	Date            *time.Time
	PrayInTheMosque *bool
}

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// dayOn returns the user's day on date's calendar date, or gorm.ErrRecordNotFound.
func (s *DayService) dayOn(tx *gorm.DB, userID string, date time.Time, excludeID string) (*models.Day, error) {
	start, end := s.cal.Bounds(date)
	q := tx.Where("user_id = ? AND date >= ? AND date < ?", userID, start, end)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var day models.Day
	if err := q.Take(&day).Error; err != nil {
		return nil, err
	}
	return &day, nil
}

// ensureFree reports ErrConflict when the user already has a day on date.
func (s *DayService) ensureFree(tx *gorm.DB, userID string, date time.Time, excludeID string) error {
	_, err := s.dayOn(tx, userID, date, excludeID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: a day already exists for %s", ErrConflict, date.In(s.cal.Location()).Format("2006-01-02"))
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// adjustUser applies relative changes to a user's counters, reporting ErrNotFound for a missing user.
func adjustUser(tx *gorm.DB, userID string, points, totalAmount int) error {
	updates := map[string]interface{}{}
	if points != 0 {
		updates["points"] = gorm.Expr("points + ?", points)
	}
	if totalAmount != 0 {
		updates["total_amount"] = gorm.Expr("total_amount + ?", totalAmount)
	}
	if len(updates) == 0 {
		var n int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil
	}
	res := tx.Model(&models.User{}).Where("id = ?", userID).UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return nil
}

// Create records today's wake-up for the calling user and grants the wake-up points.
func (s *DayService) Create(ctx context.Context, userID string) (*models.Day, error) {
	day := models.Day{UserID: userID, Date: s.cal.Today(), WakeUp: true}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensureFree(tx, userID, day.Date, ""); err != nil {
			return err
		}
		if err := adjustUser(tx, userID, WakeUpPoints, 0); err != nil {
			return err
		}
		return storeError(tx.Create(&day).Error, "day")
	})
	if err != nil {
		return nil, err
	}

	daysCreated.WithLabelValues("self").Inc()
	pointsAwarded.Add(WakeUpPoints)
	invalidateLeaderboard()
	return &day, nil
}

// CreateByAdmin records a day for any user and date. A missed wake-up costs the
// user MissedDayCost of totalAmount; a proof photo makes the day worth PhotoPoints.
func (s *DayService) CreateByAdmin(ctx context.Context, in AdminDayInput, photo *storage.Upload) (*models.Day, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}
	date := s.cal.Normalize(in.Date)
	db := s.db.WithContext(ctx)

	if err := db.Select("id").Where("id = ?", in.UserID).Take(&models.User{}).Error; err != nil {
		return nil, storeError(err, "user "+in.UserID)
	}
	if err := s.ensureFree(db, in.UserID, date, ""); err != nil {
		return nil, err
	}

	points, totalAmount := 0, 0
	if in.WakeUp {
		points = WakeUpPoints
	} else {
		totalAmount = MissedDayCost
	}

	url, err := s.photos.save(ctx, photo)
	if err != nil {
		return nil, err
	}
	day := models.Day{UserID: in.UserID, Date: date, WakeUp: in.WakeUp, PrayInTheMosque: in.PrayInTheMosque}
	if url != "" {
		day.Photo = &url
		points = PhotoPoints
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := s.ensureFree(tx, in.UserID, date, ""); err != nil {
			return err
		}
		if err := adjustUser(tx, in.UserID, points, totalAmount); err != nil {
			return err
		}
		return storeError(tx.Create(&day).Error, "day")
	})
	if err != nil {
		s.photos.discard(ctx, url)
		return nil, err
	}

	daysCreated.WithLabelValues("admin").Inc()
	pointsAwarded.Add(float64(points))
	invalidateLeaderboard()
	return &day, nil
}

// FindAll lists every day, oldest first.
func (s *DayService) FindAll(ctx context.Context) ([]models.Day, error) {
	var days []models.Day
	if err := s.db.WithContext(ctx).Order("date ASC").Order("id ASC").Find(&days).Error; err != nil {
		return nil, err
	}
	return days, nil
}

func (s *DayService) FindOne(ctx context.Context, id string) (*models.Day, error) {
	var day models.Day
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&day).Error; err != nil {
		return nil, storeError(err, "day "+id)
	}
	return &day, nil
}

// Update changes a day's date or mosque flag. Attaching a photo re-scores the day
// and credits the owner with the difference: +20 on a missed day, +10 on a wake-up
// and nothing when a photo is replaced.
func (s *DayService) Update(ctx context.Context, id string, in DayUpdate, actor Principal, photo *storage.Upload) (*models.Day, error) {
	existing, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && existing.UserID != actor.ID {
		return nil, fmt.Errorf("%w: day %s belongs to another user", ErrForbidden, id)
	}

	url, err := s.photos.save(ctx, photo)
	if err != nil {
		return nil, err
	}

	var day models.Day
	var replaced string
	delta := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&day).Error; err != nil {
			return storeError(err, "day "+id)
		}
		before := contribution(day)
		updates := map[string]interface{}{}

		if in.Date != nil {
			date := s.cal.Normalize(*in.Date)
			if !s.cal.sameDay(date, day.Date) {
				if err := s.ensureFree(tx, day.UserID, date, day.ID); err != nil {
					return err
				}
			}
			updates["date"] = date
			day.Date = date
		}
		if in.PrayInTheMosque != nil {
			updates["pray_in_the_mosque"] = *in.PrayInTheMosque
			day.PrayInTheMosque = *in.PrayInTheMosque
		}
		if url != "" {
			replaced = deref(day.Photo)
			updates["photo"] = url
			day.Photo = &url
			delta = contribution(day) - before
		}
		if len(updates) == 0 {
			return nil
		}

		if delta != 0 {
			if err := adjustUser(tx, day.UserID, delta, 0); err != nil {
				return err
			}
		}
		return storeError(tx.Model(&day).Updates(updates).Error, "day")
	})
	if err != nil {
		s.photos.discard(ctx, url)
		return nil, err
	}

	s.photos.discard(ctx, replaced)
	if delta != 0 {
		if delta > 0 {
			pointsAwarded.Add(float64(delta))
		}
		invalidateLeaderboard()
	}
	return &day, nil
}

// Remove deletes a day and takes its points back from the owner.
func (s *DayService) Remove(ctx context.Context, id string) (*models.Day, error) {
	var day models.Day
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&day).Error; err != nil {
			return storeError(err, "day "+id)
		}
		if points := contribution(day); points != 0 {
			if err := adjustUser(tx, day.UserID, -points, 0); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return tx.Delete(&day).Error
	})
	if err != nil {
		return nil, err
	}

	s.photos.discard(ctx, deref(day.Photo))
	invalidateLeaderboard()
	return &day, nil
}

// CreateDefaultUserDays records a missed day for every user without a day today.
// Each user is handled in its own transaction so one failure does not stop the run.
func (s *DayService) CreateDefaultUserDays(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult
	today := s.cal.Today()
	start, end := s.cal.Bounds(today)

	var userIDs []string
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("NOT EXISTS (SELECT 1 FROM days WHERE days.user_id = users.id AND days.date >= ? AND days.date < ?)", start, end).
		Order("id ASC").
		Pluck("id", &userIDs).Error
	if err != nil {
		backfillRuns.WithLabelValues("error").Inc()
		return result, fmt.Errorf("list users without a day: %w", err)
	}

	var errs error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := s.dayOn(tx, userID, today, ""); err == nil {
				return errAlreadyRecorded
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if err := adjustUser(tx, userID, 0, MissedDayCost); err != nil {
				return err
			}
			day := models.Day{UserID: userID, Date: today}
			if err := tx.Create(&day).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errAlreadyRecorded
				}
				return err
			}
			return nil
		})
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, errAlreadyRecorded), errors.Is(err, ErrNotFound):
			result.Skipped++
		default:
			result.Failed++
			utils.Sugar.Errorw("backfill failed for user", "userId", userID, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
		}
	}

	daysCreated.WithLabelValues("backfill").Add(float64(result.Created))
	if errs != nil {
		backfillRuns.WithLabelValues("partial").Inc()
	} else {
		backfillRuns.WithLabelValues("ok").Inc()
	}
	utils.Sugar.Infow("backfill finished", "date", today.In(s.cal.Location()).Format("2006-01-02"),
		"created", result.Created, "skipped", result.Skipped, "failed", result.Failed)
	return result, errs
}
