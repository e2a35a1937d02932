package repository

import (
	"context"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository 钱包仓储接口
type WalletRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) WalletRepository
	Find(ctx context.Context, playerID, currency string) (*models.Wallet, error)
	FindOrCreate(ctx context.Context, playerID, currency string) (*models.Wallet, error)
	LockForUpdate(ctx context.Context, playerID, currency string) (*models.Wallet, error)
	AddBalance(ctx context.Context, walletID uint, amount int64) error
	DeductBalance(ctx context.Context, walletID uint, amount int64) error
}

// walletRepo 钱包仓储实现
type walletRepo struct {
	*BaseRepo
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// WithTx 使用事务
func (r *walletRepo) WithTx(tx *gorm.DB) WalletRepository {
	return &walletRepo{
		BaseRepo: NewBaseRepo(tx),
	}
}

// Find 查找玩家某币种的钱包
func (r *walletRepo) Find(ctx context.Context, playerID, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND currency = ?", playerID, currency).
		First(&wallet).Error
	if err != nil {
		return nil, wrapQueryError(err, "钱包不存在: "+playerID+"/"+currency)
	}
	return &wallet, nil
}

// FindOrCreate 查找钱包，不存在则创建零余额钱包
func (r *walletRepo) FindOrCreate(ctx context.Context, playerID, currency string) (*models.Wallet, error) {
	wallet := models.Wallet{PlayerID: playerID, Currency: currency}
	err := r.db.WithContext(ctx).
		Where("player_id = ? AND currency = ?", playerID, currency).
		FirstOrCreate(&wallet).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert, "创建钱包失败")
	}
	return &wallet, nil
}

// LockForUpdate 锁定钱包用于更新（悲观锁）
// sqlite不支持FOR UPDATE，由gorm方言忽略
func (r *walletRepo) LockForUpdate(ctx context.Context, playerID, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ? AND currency = ?", playerID, currency).
		First(&wallet).Error
	if err != nil {
		return nil, wrapQueryError(err, "钱包不存在: "+playerID+"/"+currency)
	}
	return &wallet, nil
}

// AddBalance 增加余额
func (r *walletRepo) AddBalance(ctx context.Context, walletID uint, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_credit": gorm.Expr("total_credit + ?", amount),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrNotFound, "钱包不存在: %d", walletID)
	}
	return nil
}

// DeductBalance 扣减余额，余额不足时不修改
func (r *walletRepo) DeductBalance(ctx context.Context, walletID uint, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]interface{}{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_debit": gorm.Expr("total_debit + ?", amount),
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		return errors.Newf(errors.ErrInsufficientFunds, "wallet=%d amount=%d", walletID, amount)
	}
	return nil
}

// LedgerEntryRepository 账本流水仓储接口
type LedgerEntryRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) LedgerEntryRepository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByKey(ctx context.Context, entryType, transactionID, roundID string) (*models.LedgerEntry, error)
	ListByRound(ctx context.Context, roundID string) ([]*models.LedgerEntry, error)
	ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.LedgerEntry, error)
}

// ledgerEntryRepo 账本流水仓储实现
type ledgerEntryRepo struct {
	*BaseRepo
}

// NewLedgerEntryRepository 创建账本流水仓储
func NewLedgerEntryRepository(db *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// WithTx 使用事务
func (r *ledgerEntryRepo) WithTx(tx *gorm.DB) LedgerEntryRepository {
	return &ledgerEntryRepo{
		BaseRepo: NewBaseRepo(tx),
	}
}

// Create 创建流水
func (r *ledgerEntryRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "创建流水失败")
	}
	return nil
}

// FindByKey 按幂等键查找流水
func (r *ledgerEntryRepo) FindByKey(ctx context.Context, entryType, transactionID, roundID string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("type = ? AND transaction_id = ? AND round_id = ?", entryType, transactionID, roundID).
		First(&entry).Error
	if err != nil {
		return nil, wrapQueryError(err, "流水不存在")
	}
	return &entry, nil
}

// ListByRound 回合相关的全部流水
func (r *ledgerEntryRepo) ListByRound(ctx context.Context, roundID string) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, wrapQueryError(err, "查询流水失败")
	}
	return entries, nil
}

// ListByPlayer 分页查询玩家流水
func (r *ledgerEntryRepo) ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	query := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("player_id = ?", playerID).Session(&gorm.Session{})
	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, wrapQueryError(err, "统计流水失败")
	}
	err := query.Order("id DESC").Scopes(Paginate(pagination)).Find(&entries).Error
	if err != nil {
		return nil, wrapQueryError(err, "查询流水失败")
	}
	return entries, nil
}
