package repository

import (
	"context"
	"time"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
	"gorm.io/gorm"
)

// SettlementIssueRepository 对账问题仓储接口
type SettlementIssueRepository interface {
	Create(ctx context.Context, issue *models.SettlementIssue) error
	FindByID(ctx context.Context, id uint) (*models.SettlementIssue, error)
	ListUnresolved(ctx context.Context, pagination *Pagination) ([]*models.SettlementIssue, error)
	Resolve(ctx context.Context, id uint, resolvedBy, note string) (*models.SettlementIssue, error)
}

// settlementIssueRepo 对账问题仓储实现
type settlementIssueRepo struct {
	*BaseRepo
	now func() time.Time
}

// NewSettlementIssueRepository 创建对账问题仓储
func NewSettlementIssueRepository(db *gorm.DB) SettlementIssueRepository {
	return &settlementIssueRepo{
		BaseRepo: NewBaseRepo(db),
		now:      time.Now,
	}
}

// Create 记录问题
func (r *settlementIssueRepo) Create(ctx context.Context, issue *models.SettlementIssue) error {
	if err := r.db.WithContext(ctx).Create(issue).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "记录对账问题失败")
	}
	return nil
}

// FindByID 按ID查找
func (r *settlementIssueRepo) FindByID(ctx context.Context, id uint) (*models.SettlementIssue, error) {
	var issue models.SettlementIssue
	if err := r.db.WithContext(ctx).First(&issue, id).Error; err != nil {
		return nil, wrapQueryError(err, "对账问题不存在")
	}
	return &issue, nil
}

// ListUnresolved 分页查询未处理问题，最早的在前
func (r *settlementIssueRepo) ListUnresolved(ctx context.Context, pagination *Pagination) ([]*models.SettlementIssue, error) {
	var issues []*models.SettlementIssue
	query := r.db.WithContext(ctx).Model(&models.SettlementIssue{}).Where("resolved = ?", false).Session(&gorm.Session{})
	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, wrapQueryError(err, "统计对账问题失败")
	}
	err := query.Order("id ASC").Scopes(Paginate(pagination)).Find(&issues).Error
	if err != nil {
		return nil, wrapQueryError(err, "查询对账问题失败")
	}
	return issues, nil
}

// Resolve 标记为已处理，重复处理返回ErrAlreadyExists
func (r *settlementIssueRepo) Resolve(ctx context.Context, id uint, resolvedBy, note string) (*models.SettlementIssue, error) {
	now := r.now()
	result := r.db.WithContext(ctx).
		Model(&models.SettlementIssue{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": resolvedBy,
			"resolved_at": now,
			"note":        note,
		})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		issue, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return issue, errors.Newf(errors.ErrAlreadyExists, "对账问题 %d 已处理", id)
	}
	return r.FindByID(ctx, id)
}
