package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
	"gorm.io/gorm"
)

// WalletRepositoryTestSuite 钱包仓储测试套件
type WalletRepositoryTestSuite struct {
	suite.Suite
	db         *gorm.DB
	walletRepo WalletRepository
	entryRepo  LedgerEntryRepository
}

func (suite *WalletRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.walletRepo = NewWalletRepository(suite.db)
	suite.entryRepo = NewLedgerEntryRepository(suite.db)
}

func (suite *WalletRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// TestFindOrCreate 测试查找或创建钱包
func (suite *WalletRepositoryTestSuite) TestFindOrCreate() {
	ctx := context.Background()

	_, err := suite.walletRepo.Find(ctx, "p1", "XPP")
	assert.True(suite.T(), errors.Is(err, errors.ErrNotFound))

	wallet, err := suite.walletRepo.FindOrCreate(ctx, "p1", "XPP")
	suite.Require().NoError(err)
	assert.NotZero(suite.T(), wallet.ID)
	assert.Equal(suite.T(), int64(0), wallet.Balance)

	again, err := suite.walletRepo.FindOrCreate(ctx, "p1", "XPP")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), wallet.ID, again.ID)

	other, err := suite.walletRepo.FindOrCreate(ctx, "p1", "GOLD")
	suite.Require().NoError(err)
	assert.NotEqual(suite.T(), wallet.ID, other.ID)
}

// TestAddAndDeduct 测试加减余额
func (suite *WalletRepositoryTestSuite) TestAddAndDeduct() {
	ctx := context.Background()
	wallet, err := suite.walletRepo.FindOrCreate(ctx, "p1", "XPP")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.walletRepo.AddBalance(ctx, wallet.ID, 100))
	suite.Require().NoError(suite.walletRepo.DeductBalance(ctx, wallet.ID, 30))

	err = suite.walletRepo.DeductBalance(ctx, wallet.ID, 71)
	assert.True(suite.T(), errors.Is(err, errors.ErrInsufficientFunds))

	found, err := suite.walletRepo.LockForUpdate(ctx, "p1", "XPP")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(70), found.Balance)
	assert.Equal(suite.T(), int64(30), found.TotalDebit)
	assert.Equal(suite.T(), int64(100), found.TotalCredit)

	err = suite.walletRepo.AddBalance(ctx, 9999, 1)
	assert.True(suite.T(), errors.Is(err, errors.ErrNotFound))
}

// TestWithTxRollback 事务回滚后余额不变
func (suite *WalletRepositoryTestSuite) TestWithTxRollback() {
	ctx := context.Background()
	wallet, err := suite.walletRepo.FindOrCreate(ctx, "p1", "XPP")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.walletRepo.AddBalance(ctx, wallet.ID, 50))

	txErr := suite.db.Transaction(func(tx *gorm.DB) error {
		if err := suite.walletRepo.WithTx(tx).DeductBalance(ctx, wallet.ID, 20); err != nil {
			return err
		}
		return errors.New(errors.ErrUnknown, "rollback")
	})
	suite.Error(txErr)

	found, err := suite.walletRepo.Find(ctx, "p1", "XPP")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), int64(50), found.Balance)
}

// TestLedgerEntryIdempotencyKey 幂等键唯一
func (suite *WalletRepositoryTestSuite) TestLedgerEntryIdempotencyKey() {
	ctx := context.Background()
	entry := &models.LedgerEntry{
		PlayerID:      "p1",
		Currency:      "XPP",
		Type:          models.EntryTypeDebit,
		TransactionID: "tx-1",
		RoundID:       "round-1",
		Amount:        10,
	}
	suite.Require().NoError(suite.entryRepo.Create(ctx, entry))

	dup := *entry
	dup.ID = 0
	err := suite.entryRepo.Create(ctx, &dup)
	assert.True(suite.T(), errors.Is(err, errors.ErrDatabaseInsert))

	credit := *entry
	credit.ID = 0
	credit.Type = models.EntryTypeCredit
	suite.Require().NoError(suite.entryRepo.Create(ctx, &credit))

	found, err := suite.entryRepo.FindByKey(ctx, models.EntryTypeDebit, "tx-1", "round-1")
	suite.Require().NoError(err)
	assert.Equal(suite.T(), entry.ID, found.ID)

	entries, err := suite.entryRepo.ListByRound(ctx, "round-1")
	suite.Require().NoError(err)
	assert.Len(suite.T(), entries, 2)

	page := NewPagination(1, 1)
	byPlayer, err := suite.entryRepo.ListByPlayer(ctx, "p1", page)
	suite.Require().NoError(err)
	assert.Len(suite.T(), byPlayer, 1)
	assert.Equal(suite.T(), int64(2), page.Total)
}

func TestWalletRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(WalletRepositoryTestSuite))
}

func TestPagination(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"默认值", 0, 0, 1, 20, 0},
		{"第三页", 3, 10, 3, 10, 20},
		{"超过上限", 1, 500, 1, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.PageSize)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}
