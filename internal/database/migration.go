package database

import (
	"fmt"
	"time"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/logger"
	"github.com/wfunc/fair-slot/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrationModels 需要迁移的全部模型
func MigrationModels() []interface{} {
	return []interface{}{
		// 账本
		&models.Wallet{},
		&models.LedgerEntry{},

		// 回合审计与对账
		&models.GameRound{},
		&models.SettlementIssue{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}
	if log == nil {
		log = zap.NewNop()
	}

	// 文件型sqlite需要迁移锁，避免多个进程同时迁移
	if dbPath := sqliteFilePath(db); dbPath != "" {
		CleanupStaleLocks(dbPath, log)
		lockFile, err := acquireMigrationLock(dbPath, log)
		if err != nil {
			log.Error("无法获取迁移锁", zap.Error(err))
			return errors.Wrap(err, errors.ErrDatabaseConnect, "获取迁移锁失败")
		}
		defer releaseMigrationLock(lockFile, log)
	}

	log.Info("开始数据库迁移...")
	for _, model := range MigrationModels() {
		start := time.Now()
		err := db.AutoMigrate(model)
		logger.LogDatabaseOperation("migrate", tableName(db, model), time.Since(start), err)
		if err != nil {
			log.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return errors.Wrapf(err, errors.ErrDatabaseConnect, "迁移 %T 失败", model)
		}
		log.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db, log)

	log.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建查询用索引，失败只告警
func createIndexes(db *gorm.DB, log *zap.Logger) {
	indexes := []struct {
		name string
		sql  string
	}{
		{"idx_game_rounds_created_at", "CREATE INDEX IF NOT EXISTS idx_game_rounds_created_at ON game_rounds(created_at)"},
		{"idx_ledger_entries_round_id", "CREATE INDEX IF NOT EXISTS idx_ledger_entries_round_id ON ledger_entries(round_id)"},
		{"idx_settlement_issues_created_at", "CREATE INDEX IF NOT EXISTS idx_settlement_issues_created_at ON settlement_issues(created_at)"},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			log.Warn("创建索引失败", zap.String("index", idx.name), zap.Error(err))
		}
	}
}

func tableName(db *gorm.DB, model interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil || stmt.Schema == nil {
		return fmt.Sprintf("%T", model)
	}
	return stmt.Schema.Table
}
