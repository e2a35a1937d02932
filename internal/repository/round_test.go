package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
)

func newRound(roundID, state string) *models.GameRound {
	return &models.GameRound{
		RoundID:    roundID,
		PlayerID:   "p1",
		Currency:   "XPP",
		Wager:      10,
		State:      state,
		CommitHash: "hash",
		ClientSeed: "client",
	}
}

func TestRoundRepository_SaveAndFind(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoundRepository(db)
	ctx := context.Background()

	round := newRound("round-1", "seed_committed")
	require.NoError(t, repo.Save(ctx, round))
	require.NotZero(t, round.ID)

	round.State = "settled"
	round.Payout = 25
	round.Result = models.JSONMap{"grid": []interface{}{"A", "B"}}
	require.NoError(t, repo.Save(ctx, round))

	found, err := repo.FindByRoundID(ctx, "round-1")
	require.NoError(t, err)
	assert.Equal(t, "settled", found.State)
	assert.Equal(t, int64(25), found.Payout)
	assert.Equal(t, []interface{}{"A", "B"}, found.Result["grid"])

	_, err = repo.FindByRoundID(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, repo.Save(ctx, newRound("round-2", "failed")))
	page := NewPagination(1, 10)
	rounds, err := repo.ListByPlayer(ctx, "p1", page)
	require.NoError(t, err)
	assert.Len(t, rounds, 2)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, "round-2", rounds[0].RoundID)
}

func TestCachedRoundRepository(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	cached := NewCachedRoundRepository(NewRoundRepository(db), 8, time.Minute)
	ctx := context.Background()

	t.Run("未到终态不缓存", func(t *testing.T) {
		round := newRound("round-open", "wager_debited")
		require.NoError(t, cached.Save(ctx, round))
		_, err := cached.FindByRoundID(ctx, "round-open")
		require.NoError(t, err)
		assert.Equal(t, 0, cached.Len())
	})

	t.Run("终态写入缓存", func(t *testing.T) {
		round := newRound("round-done", "wager_debited")
		require.NoError(t, cached.Save(ctx, round))
		round.State = "settled"
		require.NoError(t, cached.Save(ctx, round))
		assert.Equal(t, 1, cached.Len())

		// 直接删库后仍能从缓存读到
		require.NoError(t, db.Unscoped().Where("round_id = ?", "round-done").Delete(&models.GameRound{}).Error)
		found, err := cached.FindByRoundID(ctx, "round-done")
		require.NoError(t, err)
		assert.Equal(t, "settled", found.State)
	})

	t.Run("查库命中终态后缓存", func(t *testing.T) {
		require.NoError(t, NewRoundRepository(db).Save(ctx, newRound("round-db", "failed")))
		_, err := cached.FindByRoundID(ctx, "round-db")
		require.NoError(t, err)
		assert.Equal(t, 2, cached.Len())
	})
}
