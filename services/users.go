package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

// UserService manages participants, their counters and ranking.
type UserService struct {
	db     *gorm.DB
	photos photoKeeper
}

func NewUserService(db *gorm.DB, store storage.PhotoStore, placeholder string) *UserService {
	return &UserService{db: db, photos: photoKeeper{store: store, placeholder: placeholder}}
}

type CreateUserInput struct {
	Username string
	Password string
	Name     string
}

// UpdateUserInput holds optional overwrites. Points and TotalAmount replace the stored values.
type UpdateUserInput struct {
	Username    *string
	Password    *string
	Name        *string
	Points      *int
	TotalAmount *int
}

type DaySummary struct {
	ID     string    `json:"id"`
	Date   time.Time `json:"date"`
	WakeUp bool      `json:"wakeUp"`
	Photo  string    `json:"photo"`
}

type UserSummary struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Name        string       `json:"name"`
	Photo       string       `json:"photo"`
	Points      int          `json:"points"`
	TotalAmount int          `json:"totalAmount"`
	Days        []DaySummary `json:"days"`
}

type LeaderboardEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Photo  string `json:"photo"`
	Points int    `json:"points"`
	Rank   int    `json:"rank"`
}

// UserDetail is a single user with their days and current rank.
type UserDetail struct {
	ID          string       `json:"id"`
	Username    string       `json:"username"`
	Name        string       `json:"name"`
	Photo       string       `json:"photo"`
	Points      int          `json:"points"`
	TotalAmount int          `json:"totalAmount"`
	Rank        int          `json:"rank"`
	Days        []models.Day `json:"days"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func byStanding(db *gorm.DB) *gorm.DB {
	return db.Order("points DESC").Order("name ASC").Order("id ASC")
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput, photo *storage.Upload) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	db := s.db.WithContext(ctx)

	var n int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, username)
	}

	user := models.User{Username: username, Name: utils.Sanitize(in.Name)}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = hash
	}

	url, err := s.photos.save(ctx, photo)
	if err != nil {
		return nil, err
	}
	if url != "" {
		user.Photo = &url
	}

	if err := db.Create(&user).Error; err != nil {
		s.photos.discard(ctx, url)
		return nil, storeError(err, "username "+username)
	}
	invalidateLeaderboard()
	return &user, nil
}

// FindAll lists users by standing with a summary of their days.
func (s *UserService) FindAll(ctx context.Context) ([]UserSummary, error) {
	var users []models.User
	err := byStanding(s.db.WithContext(ctx)).
		Preload("Days", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		days := make([]DaySummary, 0, len(u.Days))
		for _, d := range u.Days {
			days = append(days, DaySummary{ID: d.ID, Date: d.Date, WakeUp: d.WakeUp, Photo: s.photos.orPlaceholder(d.Photo)})
		}
		out = append(out, UserSummary{
			ID:          u.ID,
			Username:    u.Username,
			Name:        u.Name,
			Photo:       s.photos.orPlaceholder(u.Photo),
			Points:      u.Points,
			TotalAmount: u.TotalAmount,
			Days:        days,
		})
	}
	return out, nil
}

// Leaderboard ranks users by points. Equal points share a rank and the next rank is skipped.
func (s *UserService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	key := leaderboardKey(utils.CacheGeneration(leaderboardGenerationKey))
	var cached []LeaderboardEntry
	if utils.CacheGetJSON(key, &cached) {
		return cached, nil
	}

	var users []models.User
	if err := byStanding(s.db.WithContext(ctx)).Select("id", "name", "photo", "points").Find(&users).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		rank := i + 1
		if i > 0 && users[i-1].Points == u.Points {
			rank = entries[i-1].Rank
		}
		entries = append(entries, LeaderboardEntry{
			ID:     u.ID,
			Name:   u.Name,
			Photo:  s.photos.orPlaceholder(u.Photo),
			Points: u.Points,
			Rank:   rank,
		})
	}

	utils.CacheSetJSON(key, entries, 10*time.Minute)
	return entries, nil
}

func (s *UserService) GetMe(ctx context.Context, username string) (*UserDetail, error) {
	return s.detail(ctx, "username = ?", username)
}

func (s *UserService) FindOne(ctx context.Context, id string) (*UserDetail, error) {
	return s.detail(ctx, "id = ?", id)
}

func (s *UserService) detail(ctx context.Context, cond string, arg string) (*UserDetail, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	err := db.Preload("Days", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Where(cond, arg).Take(&user).Error
	if err != nil {
		return nil, storeError(err, "user "+arg)
	}

	var ahead int64
	if err := db.Model(&models.User{}).Where("points > ?", user.Points).Count(&ahead).Error; err != nil {
		return nil, err
	}

	days := user.Days
	if days == nil {
		days = []models.Day{}
	}
	return &UserDetail{
		ID:          user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Photo:       s.photos.orPlaceholder(user.Photo),
		Points:      user.Points,
		TotalAmount: user.TotalAmount,
		Rank:        int(ahead) + 1,
		Days:        days,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}, nil
}

// Update overwrites the supplied fields. A new photo replaces and deletes the old one.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput, photo *storage.Upload) (*models.User, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, storeError(err, "user "+id)
	}

	updates := map[string]interface{}{}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrValidation)
		}
		var n int64
		if err := db.Model(&models.User{}).Where("username = ? AND id <> ?", username, id).Count(&n).Error; err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, username)
		}
		updates["username"] = username
	}
	if in.Name != nil {
		updates["name"] = utils.Sanitize(*in.Name)
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password"] = hash
	}
	if in.Points != nil {
		updates["points"] = *in.Points
	}
	if in.TotalAmount != nil {
		updates["total_amount"] = *in.TotalAmount
	}

	url, err := s.photos.save(ctx, photo)
	if err != nil {
		return nil, err
	}
	replaced := ""
	if url != "" {
		replaced = deref(user.Photo)
		updates["photo"] = url
	}
	if len(updates) == 0 {
		return &user, nil
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		s.photos.discard(ctx, url)
		return nil, storeError(err, "username")
	}
	if err := db.Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, storeError(err, "user "+id)
	}

	s.photos.discard(ctx, replaced)
	invalidateLeaderboard()
	return &user, nil
}

// ResetAllData deletes every day and zeroes every user's counters.
func (s *UserService) ResetAllData(ctx context.Context) (int64, error) {
	var photos []string
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Day{}).Where("photo IS NOT NULL AND photo <> ''").Pluck("photo", &photos).Error; err != nil {
			return err
		}
		res := tx.Where("1 = 1").Delete(&models.Day{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return tx.Model(&models.User{}).Where("1 = 1").
			UpdateColumns(map[string]interface{}{"points": 0, "total_amount": 0}).Error
	})
	if err != nil {
		return 0, err
	}

	s.photos.discard(ctx, photos...)
	invalidateLeaderboard()
	return removed, nil
}

// RemoveAllDays deletes a user's days. Counters are left as they are.
func (s *UserService) RemoveAllDays(ctx context.Context, id string) (int64, error) {
	var photos []string
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Where("id = ?", id).Take(&models.User{}).Error; err != nil {
			return storeError(err, "user "+id)
		}
		if err := tx.Model(&models.Day{}).Where("user_id = ? AND photo IS NOT NULL AND photo <> ''", id).Pluck("photo", &photos).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ?", id).Delete(&models.Day{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}

	s.photos.discard(ctx, photos...)
	return removed, nil
}

// Remove deletes a user together with their days.
func (s *UserService) Remove(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	var photos []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			return storeError(err, "user "+id)
		}
		if err := tx.Model(&models.Day{}).Where("user_id = ? AND photo IS NOT NULL AND photo <> ''", id).Pluck("photo", &photos).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Day{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.photos.discard(ctx, append(photos, deref(user.Photo))...)
	invalidateLeaderboard()
	return &user, nil
}
