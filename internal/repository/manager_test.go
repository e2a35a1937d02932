package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/fair-slot/internal/models"
	"gorm.io/gorm"
)

func TestManager(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	ctx := context.Background()

	t.Run("懒加载返回同一实例", func(t *testing.T) {
		m := NewManager(db)
		assert.Same(t, db, m.GetDB())
		assert.Equal(t, m.Wallet(), m.Wallet())
		assert.Equal(t, m.LedgerEntry(), m.LedgerEntry())
		assert.Equal(t, m.SettlementIssue(), m.SettlementIssue())

		_, cached := m.Round().(*CachedRoundRepository)
		assert.False(t, cached)
	})

	t.Run("启用回合缓存", func(t *testing.T) {
		m := NewManager(db, WithRoundCache(16, time.Minute))
		rounds, ok := m.Round().(*CachedRoundRepository)
		require.True(t, ok)

		require.NoError(t, rounds.Save(ctx, newRound("cached-1", "settled")))
		assert.Equal(t, 1, rounds.Len())
	})

	t.Run("事务回滚", func(t *testing.T) {
		m := NewManager(db)
		err := m.Transaction(ctx, func(tx *gorm.DB) error {
			if _, err := m.Wallet().WithTx(tx).FindOrCreate(ctx, "tx-player", "USD"); err != nil {
				return err
			}
			return gorm.ErrInvalidData
		})
		assert.ErrorIs(t, err, gorm.ErrInvalidData)

		var count int64
		require.NoError(t, db.Model(&models.Wallet{}).Where("player_id = ?", "tx-player").Count(&count).Error)
		assert.Zero(t, count)
	})
}
