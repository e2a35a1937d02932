package repository

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
	"gorm.io/gorm"
)

// RoundRepository 回合审计仓储接口
type RoundRepository interface {
	Save(ctx context.Context, round *models.GameRound) error
	FindByRoundID(ctx context.Context, roundID string) (*models.GameRound, error)
	ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.GameRound, error)
}

// roundRepo 回合仓储实现
type roundRepo struct {
	*BaseRepo
}

// NewRoundRepository 创建回合仓储
func NewRoundRepository(db *gorm.DB) RoundRepository {
	return &roundRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Save 首次插入，之后按主键整行更新
func (r *roundRepo) Save(ctx context.Context, round *models.GameRound) error {
	db := r.db.WithContext(ctx)
	if round.ID == 0 {
		if err := db.Create(round).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseInsert, "保存回合失败")
		}
		return nil
	}
	if err := db.Save(round).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "更新回合失败")
	}
	return nil
}

// FindByRoundID 按回合ID查找
func (r *roundRepo) FindByRoundID(ctx context.Context, roundID string) (*models.GameRound, error) {
	var round models.GameRound
	err := r.db.WithContext(ctx).Where("round_id = ?", roundID).First(&round).Error
	if err != nil {
		return nil, wrapQueryError(err, "回合不存在: "+roundID)
	}
	return &round, nil
}

// ListByPlayer 分页查询玩家回合
func (r *roundRepo) ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.GameRound, error) {
	var rounds []*models.GameRound
	query := r.db.WithContext(ctx).Model(&models.GameRound{}).Where("player_id = ?", playerID).Session(&gorm.Session{})
	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, wrapQueryError(err, "统计回合失败")
	}
	err := query.Order("id DESC").Scopes(Paginate(pagination)).Find(&rounds).Error
	if err != nil {
		return nil, wrapQueryError(err, "查询回合失败")
	}
	return rounds, nil
}

// CachedRoundRepository 带LRU缓存的回合仓储
// 只缓存已到终态的回合，终态记录不再变化
type CachedRoundRepository struct {
	inner RoundRepository
	cache *expirable.LRU[string, *models.GameRound]
}

// NewCachedRoundRepository 创建带缓存的回合仓储
func NewCachedRoundRepository(inner RoundRepository, size int, ttl time.Duration) *CachedRoundRepository {
	if size <= 0 {
		size = 1024
	}
	return &CachedRoundRepository{
		inner: inner,
		cache: expirable.NewLRU[string, *models.GameRound](size, nil, ttl),
	}
}

// Save 保存并刷新缓存
func (c *CachedRoundRepository) Save(ctx context.Context, round *models.GameRound) error {
	if err := c.inner.Save(ctx, round); err != nil {
		c.cache.Remove(round.RoundID)
		return err
	}
	if round.IsTerminal() {
		cached := *round
		c.cache.Add(round.RoundID, &cached)
	} else {
		c.cache.Remove(round.RoundID)
	}
	return nil
}

// FindByRoundID 先查缓存
func (c *CachedRoundRepository) FindByRoundID(ctx context.Context, roundID string) (*models.GameRound, error) {
	if round, ok := c.cache.Get(roundID); ok {
		cached := *round
		return &cached, nil
	}
	round, err := c.inner.FindByRoundID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round.IsTerminal() {
		cached := *round
		c.cache.Add(roundID, &cached)
	}
	return round, nil
}

// ListByPlayer 不走缓存
func (c *CachedRoundRepository) ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.GameRound, error) {
	return c.inner.ListByPlayer(ctx, playerID, pagination)
}

// Len 缓存条目数
func (c *CachedRoundRepository) Len() int {
	return c.cache.Len()
}
