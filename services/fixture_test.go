package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

const placeholder = "/uploads/default.png"

type fakeStore struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
	saveErr error
}

func (f *fakeStore) Save(ctx context.Context, upload *storage.Upload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	url := fmt.Sprintf("https://photos.test/%d.png", len(f.saved)+1)
	f.saved = append(f.saved, url)
	return url, nil
}

func (f *fakeStore) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func (f *fakeStore) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fixture struct {
	db    *gorm.DB
	cal   *Calendar
	store *fakeStore
	days  *DayService
	users *UserService
	gifts *GiftService
	auth  *AuthService
}

// cairoMorning is 08:00 on 9 March 2024 in Cairo (UTC+2).
var cairoMorning = time.Date(2024, 3, 9, 6, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	cal, err := NewCalendar("Africa/Cairo", 12, FixedClock(cairoMorning))
	require.NoError(t, err)
	store := &fakeStore{}
	return &fixture{
		db:    db,
		cal:   cal,
		store: store,
		days:  NewDayService(db, cal, store, placeholder),
		users: NewUserService(db, store, placeholder),
		gifts: NewGiftService(db, store, placeholder),
		auth:  NewAuthService(db, "test-secret", time.Hour),
	}
}

func (f *fixture) seedUser(t *testing.T, username string, points int) *models.User {
	t.Helper()
	u := &models.User{Username: username, Name: username, Points: points}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) counters(t *testing.T, userID string) (points, totalAmount int) {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.Where("id = ?", userID).Take(&u).Error)
	return u.Points, u.TotalAmount
}

// requireLedgerConsistent checks that points equal the sum of the user's day contributions.
func (f *fixture) requireLedgerConsistent(t *testing.T, userID string) {
	t.Helper()
	var days []models.Day
	require.NoError(t, f.db.Where("user_id = ?", userID).Find(&days).Error)
	sum := 0
	for _, d := range days {
		sum += contribution(d)
	}
	points, _ := f.counters(t, userID)
	require.Equal(t, sum, points)
}

func photo() *storage.Upload {
	return &storage.Upload{Filename: "proof.png"}
}

// useRedis points the shared Redis client at an in-memory server for the test.
func useRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	m := miniredis.RunT(t)
	require.NotNil(t, utils.InitRedis(m.Addr(), "", 0))
	t.Cleanup(utils.CloseRedis)
	return m
}
