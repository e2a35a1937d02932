package game

import (
	"context"
	"sync"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
)

// RoundPersister 回合持久化，每次状态转换后调用
// repository.RoundRepository 直接满足该接口
type RoundPersister interface {
	Save(ctx context.Context, round *models.GameRound) error
}

// MemoryRoundPersister 内存回合持久化（用于测试和无数据库运行）
type MemoryRoundPersister struct {
	mu      sync.RWMutex
	rounds  map[string]*models.GameRound
	history map[string][]string
}

// NewMemoryRoundPersister 创建内存持久化器
func NewMemoryRoundPersister() *MemoryRoundPersister {
	return &MemoryRoundPersister{
		rounds:  make(map[string]*models.GameRound),
		history: make(map[string][]string),
	}
}

// Save 保存回合副本
func (p *MemoryRoundPersister) Save(ctx context.Context, round *models.GameRound) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	roundCopy := *round
	p.rounds[round.RoundID] = &roundCopy
	p.history[round.RoundID] = append(p.history[round.RoundID], round.State)
	return nil
}

// FindByRoundID 返回回合副本
func (p *MemoryRoundPersister) FindByRoundID(ctx context.Context, roundID string) (*models.GameRound, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	round, ok := p.rounds[roundID]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "回合不存在: %s", roundID)
	}
	roundCopy := *round
	return &roundCopy, nil
}

// History 回合经历过的状态
func (p *MemoryRoundPersister) History(roundID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.history[roundID]...)
}
