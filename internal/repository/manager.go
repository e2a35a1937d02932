package repository

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 回合缓存参数，size为0时不缓存
	roundCacheSize int
	roundCacheTTL  time.Duration

	// 仓储实例（使用懒加载）
	walletOnce sync.Once
	wallet     WalletRepository

	ledgerEntryOnce sync.Once
	ledgerEntry     LedgerEntryRepository

	roundOnce sync.Once
	round     RoundRepository

	settlementIssueOnce sync.Once
	settlementIssue     SettlementIssueRepository
}

// ManagerOption 管理器选项
type ManagerOption func(*Manager)

// WithRoundCache 回合查询走LRU缓存
func WithRoundCache(size int, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.roundCacheSize = size
		m.roundCacheTTL = ttl
	}
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB, opts ...ManagerOption) *Manager {
	m := &Manager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 在事务中执行
func (m *Manager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

// Wallet 获取钱包仓储
func (m *Manager) Wallet() WalletRepository {
	m.walletOnce.Do(func() {
		m.wallet = NewWalletRepository(m.db)
	})
	return m.wallet
}

// LedgerEntry 获取账本流水仓储
func (m *Manager) LedgerEntry() LedgerEntryRepository {
	m.ledgerEntryOnce.Do(func() {
		m.ledgerEntry = NewLedgerEntryRepository(m.db)
	})
	return m.ledgerEntry
}

// Round 获取回合仓储
func (m *Manager) Round() RoundRepository {
	m.roundOnce.Do(func() {
		var rounds RoundRepository = NewRoundRepository(m.db)
		if m.roundCacheSize > 0 {
			rounds = NewCachedRoundRepository(rounds, m.roundCacheSize, m.roundCacheTTL)
		}
		m.round = rounds
	})
	return m.round
}

// SettlementIssue 获取对账问题仓储
func (m *Manager) SettlementIssue() SettlementIssueRepository {
	m.settlementIssueOnce.Do(func() {
		m.settlementIssue = NewSettlementIssueRepository(m.db)
	})
	return m.settlementIssue
}
