package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/utils"
)

func TestUserCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Create(ctx, CreateUserInput{Username: " amr ", Password: "s3cret", Name: "<b>Amr</b>"}, photo())
	require.NoError(t, err)
	assert.Equal(t, "amr", u.Username)
	assert.Equal(t, "Amr", u.Name)
	assert.True(t, utils.CheckPassword(u.Password, "s3cret"))
	require.NotNil(t, u.Photo)
	assert.Equal(t, "https://photos.test/1.png", *u.Photo)

	_, err = f.users.Create(ctx, CreateUserInput{Username: "amr"}, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.users.Create(ctx, CreateUserInput{Username: "  "}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserFindAllOrdersAndSubstitutesPhotos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	low := f.seedUser(t, "low", 5)
	f.seedUser(t, "bravo", 30)
	f.seedUser(t, "alpha", 30)

	_, err := f.days.CreateByAdmin(ctx, AdminDayInput{UserID: low.ID, Date: cairoMorning, WakeUp: true}, nil)
	require.NoError(t, err)

	users, err := f.users.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"alpha", "bravo", "low"}, []string{users[0].Username, users[1].Username, users[2].Username})
	assert.Equal(t, placeholder, users[0].Photo)
	assert.Empty(t, users[0].Days)
	require.Len(t, users[2].Days, 1)
	assert.Equal(t, placeholder, users[2].Days[0].Photo)
	assert.True(t, users[2].Days[0].WakeUp)
}

func TestUserLeaderboardUsesCompetitionRanking(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "a", 50)
	f.seedUser(t, "b", 30)
	f.seedUser(t, "c", 30)
	f.seedUser(t, "d", 10)

	board, err := f.users.Leaderboard(context.Background())
	require.NoError(t, err)
	ranks := make([]int, 0, len(board))
	for _, e := range board {
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []int{1, 2, 2, 4}, ranks)
	assert.Equal(t, "b", board[1].Name)
	assert.Equal(t, placeholder, board[0].Photo)
}

func TestUserLeaderboardCacheFollowsPointChanges(t *testing.T) {
	f := newFixture(t)
	m := useRedis(t)
	ctx := context.Background()
	amr := f.seedUser(t, "amr", 0)
	f.seedUser(t, "bob", 5)

	board, err := f.users.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Name)
	assert.True(t, m.Exists(leaderboardKey(0)))

	// served from the cache while the ledger has not moved
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", amr.ID).Update("points", 100).Error)
	board, err = f.users.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", board[0].Name)

	_, err = f.days.Create(ctx, amr.ID)
	require.NoError(t, err)
	assert.False(t, m.Exists(leaderboardKey(0)))

	board, err = f.users.Leaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "amr", board[0].Name)
	assert.Equal(t, 100+WakeUpPoints, board[0].Points)
}

func TestUserLeaderboardIgnoresBoardsFromAnOldGeneration(t *testing.T) {
	f := newFixture(t)
	useRedis(t)
	ctx := context.Background()
	amr := f.seedUser(t, "amr", 0)

	// a reader computes its board, then a points change lands before the reader stores it
	staleKey := leaderboardKey(utils.CacheGeneration(leaderboardGenerationKey))
	stale := []LeaderboardEntry{{ID: amr.ID, Name: "amr", Photo: placeholder, Points: 0, Rank: 1}}
	_, err := f.days.Create(ctx, amr.ID)
	require.NoError(t, err)
	utils.CacheSetJSON(staleKey, stale, time.Minute)

	board, err := f.users.Leaderboard(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, WakeUpPoints, board[0].Points)

	detail, err := f.users.FindOne(ctx, amr.ID)
	require.NoError(t, err)
	assert.Equal(t, board[0].Points, detail.Points)
}

func TestUserFindOneAndGetMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "top", 40)
	tied := f.seedUser(t, "tied", 40)
	me := f.seedUser(t, "me", 10)

	_, err := f.days.Create(ctx, me.ID)
	require.NoError(t, err)

	detail, err := f.users.FindOne(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Rank)
	assert.Equal(t, 20, detail.Points)
	require.Len(t, detail.Days, 1)

	detail, err = f.users.GetMe(ctx, "tied")
	require.NoError(t, err)
	assert.Equal(t, tied.ID, detail.ID)
	assert.Equal(t, 1, detail.Rank)
	assert.NotNil(t, detail.Days)

	_, err = f.users.FindOne(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.users.GetMe(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserUpdateOverwritesCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.users.Create(ctx, CreateUserInput{Username: "amr", Name: "Amr"}, photo())
	require.NoError(t, err)
	f.seedUser(t, "taken", 0)

	points, total, name := 99, 7, "Amr A."
	updated, err := f.users.Update(ctx, u.ID, UpdateUserInput{Points: &points, TotalAmount: &total, Name: &name}, photo())
	require.NoError(t, err)
	assert.Equal(t, 99, updated.Points)
	assert.Equal(t, 7, updated.TotalAmount)
	assert.Equal(t, "Amr A.", updated.Name)
	assert.Equal(t, "https://photos.test/2.png", *updated.Photo)
	assert.Equal(t, []string{"https://photos.test/1.png"}, f.store.deletedURLs())

	taken := "taken"
	_, err = f.users.Update(ctx, u.ID, UpdateUserInput{Username: &taken}, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.users.Update(ctx, "missing", UpdateUserInput{Name: &name}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserResetAllData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seedUser(t, "a", 0)
	b := f.seedUser(t, "b", 0)

	_, err := f.days.CreateByAdmin(ctx, AdminDayInput{UserID: a.ID, Date: cairoMorning, WakeUp: true}, photo())
	require.NoError(t, err)
	_, err = f.days.CreateDefaultUserDays(ctx)
	require.NoError(t, err)

	removed, err := f.users.ResetAllData(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	for _, u := range []*models.User{a, b} {
		points, total := f.counters(t, u.ID)
		assert.Zero(t, points)
		assert.Zero(t, total)
	}
	var n int64
	require.NoError(t, f.db.Model(&models.Day{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, []string{"https://photos.test/1.png"}, f.store.deletedURLs())
}

func TestUserRemoveAllDaysKeepsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "amr", 0)

	_, err := f.days.Create(ctx, u.ID)
	require.NoError(t, err)

	removed, err := f.users.RemoveAllDays(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
	points, _ := f.counters(t, u.ID)
	assert.Equal(t, WakeUpPoints, points)

	_, err = f.users.RemoveAllDays(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.users.Create(ctx, CreateUserInput{Username: "amr"}, photo())
	require.NoError(t, err)
	_, err = f.days.Create(ctx, u.ID)
	require.NoError(t, err)

	removed, err := f.users.Remove(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, removed.ID)

	var n int64
	require.NoError(t, f.db.Model(&models.Day{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, []string{"https://photos.test/1.png"}, f.store.deletedURLs())

	_, err = f.users.Remove(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
