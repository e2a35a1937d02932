package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/config"
	"github.com/wfunc/fair-slot/internal/fairness"
	"github.com/wfunc/fair-slot/internal/game/slot"
	"github.com/wfunc/fair-slot/internal/models"
	"github.com/wfunc/fair-slot/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LedgerIntegrationTestSuite 真实钱包账本上的完整回合
type LedgerIntegrationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ctx     context.Context
	ledger  *adapter.WalletLedger
	rounds  repository.RoundRepository
	entries repository.LedgerEntryRepository
	player  adapter.PlayerContext
}

func (suite *LedgerIntegrationTestSuite) SetupTest() {
	suite.db = repository.SetupTestDB()
	suite.ctx = context.Background()
	suite.ledger = adapter.NewWalletLedger(suite.db, config.LedgerConfig{}, zap.NewNop())
	suite.rounds = repository.NewRoundRepository(suite.db)
	suite.entries = repository.NewLedgerEntryRepository(suite.db)
	suite.player = adapter.PlayerContext{PlayerID: "player-1", SessionID: "session-1"}

	_, err := suite.ledger.Deposit(suite.ctx, &adapter.PaymentRequest{
		Player: suite.player, Currency: "USD", Amount: 100, TransactionID: "seed-balance", RoundID: "deposit",
	})
	suite.Require().NoError(err)
}

func (suite *LedgerIntegrationTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *LedgerIntegrationTestSuite) orchestrator(cfg *slot.SlotConfig) *RoundOrchestrator {
	return suite.orchestratorWith(cfg, suite.ledger)
}

func (suite *LedgerIntegrationTestSuite) orchestratorWith(cfg *slot.SlotConfig, payments adapter.PaymentsAdapter) *RoundOrchestrator {
	engine, err := slot.NewSlotRoundEngine(cfg)
	suite.Require().NoError(err)

	def := &Definition{StudioID: testStudio, GameID: testGame, Config: cfg}
	players := &staticPlayers{player: &suite.player}
	bridge := NewSessionBridge(def, players, payments, zap.NewNop())
	coordinator := fairness.NewCoordinator(fairness.NewMemoryCommitmentStore(4), zap.NewNop())
	return NewRoundOrchestrator(bridge, coordinator, engine, suite.rounds,
		repository.NewSettlementIssueRepository(suite.db), zap.NewNop(), Options{DefaultCurrency: "USD"})
}

func (suite *LedgerIntegrationTestSuite) balance() int64 {
	resp, err := suite.ledger.Balance(suite.ctx, &adapter.BalanceRequest{Player: suite.player, Currency: "USD"})
	suite.Require().NoError(err)
	return resp.Balance
}

// 测试未中奖：余额100下注10后为90，只有扣款流水
func (suite *LedgerIntegrationTestSuite) TestNoWinRound() {
	result, err := suite.orchestrator(noWinConfig()).Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)

	suite.Equal(int64(90), result.Balance)
	suite.Equal(int64(90), suite.balance())

	entries, err := suite.entries.ListByRound(suite.ctx, result.RoundID)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Equal(models.EntryTypeDebit, entries[0].Type)

	round, err := suite.rounds.FindByRoundID(suite.ctx, result.RoundID)
	suite.Require().NoError(err)
	suite.Equal("settled", round.State)
	suite.Equal(result.ServerSeed, round.ServerSeed)
	suite.Equal(result.CommitHash, round.CommitHash)
	suite.NotEmpty(round.Result)
}

// 测试头奖：恰好一笔派彩，回合ID与扣款一致
func (suite *LedgerIntegrationTestSuite) TestJackpotRound() {
	result, err := suite.orchestrator(jackpotConfig()).Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)

	suite.Equal(int64(500), result.Payout)
	suite.Equal(int64(590), suite.balance())

	entries, err := suite.entries.ListByRound(suite.ctx, result.RoundID)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 2)
	suite.Equal(models.EntryTypeDebit, entries[0].Type)
	suite.Equal(models.EntryTypeCredit, entries[1].Type)
	suite.Equal(entries[0].TransactionID, entries[1].TransactionID)
	suite.Equal(int64(500), entries[1].Amount)

	round, err := suite.rounds.FindByRoundID(suite.ctx, result.RoundID)
	suite.Require().NoError(err)
	suite.True(round.HasJackpot)
}

// 测试余额不足：回合失败，无对账问题
func (suite *LedgerIntegrationTestSuite) TestInsufficientFunds() {
	_, err := suite.orchestrator(noWinConfig()).Play(suite.ctx, playRequest(500))
	suite.Error(err)
	suite.Equal(int64(100), suite.balance())

	issues, err := repository.NewSettlementIssueRepository(suite.db).ListUnresolved(suite.ctx, repository.NewPagination(1, 10))
	suite.Require().NoError(err)
	suite.Empty(issues)
}

// cancelOnDebit 扣款时客户端断开，请求上下文被取消
type cancelOnDebit struct {
	adapter.PaymentsAdapter
	cancel context.CancelFunc
}

func (c *cancelOnDebit) Debit(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	c.cancel()
	return nil, ctx.Err()
}

// 测试扣款时请求取消：回合记录仍进入failed
func (suite *LedgerIntegrationTestSuite) TestDebitCanceledPersistsFailed() {
	ctx, cancel := context.WithCancel(suite.ctx)
	defer cancel()
	payments := &cancelOnDebit{PaymentsAdapter: suite.ledger, cancel: cancel}

	_, err := suite.orchestratorWith(noWinConfig(), payments).Play(ctx, playRequest(10))
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(int64(100), suite.balance())

	rounds, err := suite.rounds.ListByPlayer(suite.ctx, suite.player.PlayerID, repository.NewPagination(1, 10))
	suite.Require().NoError(err)
	suite.Require().Len(rounds, 1)
	suite.Equal(string(StateFailed), rounds[0].State)
	suite.NotEmpty(rounds[0].Error)
}

func TestLedgerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LedgerIntegrationTestSuite))
}
