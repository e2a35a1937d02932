package game

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/fairness"
	"github.com/wfunc/fair-slot/internal/game/slot"
	"github.com/wfunc/fair-slot/internal/models"
	"go.uber.org/zap"
)

const (
	testStudio = "studio"
	testGame   = "fruit"
)

// staticPlayers 固定返回同一个玩家
type staticPlayers struct {
	player *adapter.PlayerContext
	err    error
}

func (s *staticPlayers) Resolve(ctx context.Context, query *adapter.PlayerQuery) (*adapter.PlayerContext, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := *s.player
	return &p, nil
}

// fakePayments 内存账本，记录全部调用
type fakePayments struct {
	mu        sync.Mutex
	balance   int64
	debits    []adapter.PaymentRequest
	credits   []adapter.PaymentRequest
	debitErr  error
	creditErr error
	onDebit   func()
}

func (f *fakePayments) Balance(ctx context.Context, req *adapter.BalanceRequest) (*adapter.BalanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &adapter.BalanceResponse{Currency: req.Currency, Balance: f.balance}, nil
}

func (f *fakePayments) Debit(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	f.debits = append(f.debits, *req)
	f.balance -= req.Amount
	if f.onDebit != nil {
		f.onDebit()
	}
	return &adapter.PaymentResponse{TransactionID: req.TransactionID, Currency: req.Currency, Balance: f.balance}, nil
}

func (f *fakePayments) Credit(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	f.credits = append(f.credits, *req)
	f.balance += req.Amount
	return &adapter.PaymentResponse{TransactionID: req.TransactionID, Currency: req.Currency, Balance: f.balance}, nil
}

// recordingIssues 记录对账问题
type recordingIssues struct {
	mu     sync.Mutex
	issues []*models.SettlementIssue
}

func (r *recordingIssues) Create(ctx context.Context, issue *models.SettlementIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, issue)
	return nil
}

// panicEngine 出结果时panic
type panicEngine struct{}

func (panicEngine) Play(rng slot.RandomSource, wager int64) (*slot.Outcome, error) {
	panic("engine exploded")
}

// noWinConfig 没有任何赔付规则能命中
func noWinConfig() *slot.SlotConfig {
	return &slot.SlotConfig{
		Rows:  3,
		Reels: 3,
		Symbols: []slot.SymbolWeight{
			{Symbol: "A", Weight: 1},
			{Symbol: "J", Weight: 0},
		},
		Jackpot: slot.JackpotRule{Symbol: "J", Count: 3, Multiplier: 50},
	}
}

// jackpotConfig 每一格都是头奖符号
func jackpotConfig() *slot.SlotConfig {
	return &slot.SlotConfig{
		Rows:  3,
		Reels: 3,
		Symbols: []slot.SymbolWeight{
			{Symbol: "A", Weight: 0},
			{Symbol: "J", Weight: 1},
		},
		Horizontal: []slot.PayRule{{Symbol: "J", Count: 3, Multiplier: 2}},
		Jackpot:    slot.JackpotRule{Symbol: "J", Count: 3, Multiplier: 50},
	}
}

type testEnv struct {
	orchestrator *RoundOrchestrator
	coordinator  *fairness.Coordinator
	players      *staticPlayers
	payments     *fakePayments
	persister    *MemoryRoundPersister
	issues       *recordingIssues
}

func newTestEnv(t *testing.T, cfg *slot.SlotConfig, engine slot.RoundEngine) *testEnv {
	t.Helper()
	def := &Definition{StudioID: testStudio, GameID: testGame, Config: cfg}
	require.NoError(t, def.Validate())

	if engine == nil {
		var err error
		engine, err = slot.NewSlotRoundEngine(cfg)
		require.NoError(t, err)
	}

	env := &testEnv{
		coordinator: fairness.NewCoordinator(fairness.NewMemoryCommitmentStore(4), zap.NewNop()),
		players:     &staticPlayers{player: &adapter.PlayerContext{PlayerID: "player-1", SessionID: "session-1"}},
		payments:    &fakePayments{balance: 100},
		persister:   NewMemoryRoundPersister(),
		issues:      &recordingIssues{},
	}
	bridge := NewSessionBridge(def, env.players, env.payments, zap.NewNop())
	env.orchestrator = NewRoundOrchestrator(bridge, env.coordinator, engine, env.persister, env.issues, zap.NewNop(),
		Options{DefaultCurrency: "USD", MaxBet: 1000})
	return env
}

func playRequest(wager int64) *PlayRequest {
	return &PlayRequest{
		StudioID:   testStudio,
		GameID:     testGame,
		Query:      &adapter.PlayerQuery{Token: "t"},
		Wager:      wager,
		ClientSeed: "lucky-client-seed",
	}
}

// OrchestratorTestSuite 回合编排测试套件
type OrchestratorTestSuite struct {
	suite.Suite
	ctx context.Context
}

func (suite *OrchestratorTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

// 测试未中奖：扣款后余额90，不派彩
func (suite *OrchestratorTestSuite) TestPlayNoWin() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)

	suite.Equal(StateSettled, result.State)
	suite.Equal(int64(0), result.Payout)
	suite.Equal(int64(90), result.Balance)
	suite.Equal(int64(90), env.payments.balance)
	suite.Len(env.payments.debits, 1)
	suite.Empty(env.payments.credits)
	suite.Empty(env.issues.issues)

	// 揭示的种子与承诺一致，且承诺已被消耗
	suite.True(fairness.VerifyCommitment(result.ServerSeed, result.CommitHash))
	_, live := env.coordinator.CommittedHash("player-1")
	suite.False(live)

	suite.Equal([]string{"seed_committed", "wager_debited", "result_computed", "settled"},
		env.persister.History(result.RoundID))

	round, err := env.persister.FindByRoundID(suite.ctx, result.RoundID)
	suite.Require().NoError(err)
	suite.Equal(result.ServerSeed, round.ServerSeed)
	suite.Equal(9, round.Draws)
	suite.NotNil(round.SettledAt)
}

// 测试头奖：派彩一次，幂等键与扣款相同
func (suite *OrchestratorTestSuite) TestPlayJackpot() {
	env := newTestEnv(suite.T(), jackpotConfig(), nil)

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)

	suite.Equal(StateSettled, result.State)
	suite.Require().NotNil(result.Result)
	suite.True(result.Result.HasJackpot)
	suite.True(result.Outcome.HasJackpot)
	suite.Equal(int64(500), result.Payout)
	suite.Equal(int64(590), result.Balance)

	suite.Require().Len(env.payments.debits, 1)
	suite.Require().Len(env.payments.credits, 1)
	debit, credit := env.payments.debits[0], env.payments.credits[0]
	suite.Equal(debit.RoundID, credit.RoundID)
	suite.Equal(debit.TransactionID, credit.TransactionID)
	suite.Equal(result.RoundID, credit.RoundID)
	suite.Equal(int64(500), credit.Amount)
	suite.Equal("USD", credit.Currency)
}

// 测试结果可由揭示的种子复算
func (suite *OrchestratorTestSuite) TestPlayIsReproducible() {
	cfg := slot.GetDefaultConfig()
	env := newTestEnv(suite.T(), cfg, nil)

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)

	engine, err := slot.NewResultEngine(cfg)
	suite.Require().NoError(err)
	replayed, err := engine.Spin(fairness.CreateRNGFromSeeds(result.ServerSeed, result.ClientSeed), 10)
	suite.Require().NoError(err)

	suite.Equal(replayed.Grid, result.Result.Grid)
	suite.Equal(replayed.Payout, result.Payout)

	verify := env.orchestrator.VerifySeed(&VerifyRequest{
		ServerSeed: result.ServerSeed,
		ClientSeed: result.ClientSeed,
		Draw:       fairness.FirstDraw(result.ServerSeed, result.ClientSeed),
		CommitHash: result.CommitHash,
	})
	suite.True(verify.Valid)
	suite.Require().NotNil(verify.HashMatches)
	suite.True(*verify.HashMatches)
}

// 测试使用预先公布的承诺
func (suite *OrchestratorTestSuite) TestPlayWithPublishedCommitment() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)

	commit, err := env.orchestrator.CommitServerSeed(suite.ctx, &CommitRequest{
		StudioID: testStudio, GameID: testGame, Query: &adapter.PlayerQuery{Token: "t"},
	})
	suite.Require().NoError(err)

	req := playRequest(10)
	req.CommitHash = commit.CommitHash
	result, err := env.orchestrator.Play(suite.ctx, req)
	suite.Require().NoError(err)
	suite.Equal(commit.CommitHash, result.CommitHash)
	suite.Equal(commit.CommitHash, fairness.HashSeed(result.ServerSeed))

	// 承诺已消耗，再用同一个哈希失败
	_, err = env.orchestrator.Play(suite.ctx, req)
	suite.True(errors.Is(err, errors.ErrNoCommittedSeed))
}

// 测试校验失败不产生副作用
func (suite *OrchestratorTestSuite) TestValidationFailures() {
	providerErr := stderrors.New("provider down")

	cases := []struct {
		name   string
		mutate func(env *testEnv, req *PlayRequest)
		code   errors.ErrorCode
		err    error
	}{
		{"游戏不匹配", func(env *testEnv, req *PlayRequest) { req.GameID = "other" }, errors.ErrUnsupportedGame, nil},
		{"玩家缺少会话", func(env *testEnv, req *PlayRequest) {
			env.players.player = &adapter.PlayerContext{PlayerID: "player-1"}
		}, errors.ErrPlayerUnauthorized, nil},
		{"解析失败原样返回", func(env *testEnv, req *PlayRequest) { env.players.err = providerErr }, 0, providerErr},
		{"下注为零", func(env *testEnv, req *PlayRequest) { req.Wager = 0 }, errors.ErrInvalidBet, nil},
		{"下注超过上限", func(env *testEnv, req *PlayRequest) { req.Wager = 1001 }, errors.ErrInvalidBet, nil},
		{"客户端种子为空", func(env *testEnv, req *PlayRequest) { req.ClientSeed = "  " }, errors.ErrInvalidClientSeed, nil},
		{"没有承诺", func(env *testEnv, req *PlayRequest) { req.CommitHash = "abc" }, errors.ErrNoCommittedSeed, nil},
		{"承诺不一致", func(env *testEnv, req *PlayRequest) {
			_, err := env.coordinator.CommitServerSeed("player-1")
			suite.Require().NoError(err)
			req.CommitHash = fairness.HashSeed("something-else")
		}, errors.ErrSeedHashMismatch, nil},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			env := newTestEnv(suite.T(), noWinConfig(), nil)
			req := playRequest(10)
			tc.mutate(env, req)

			result, err := env.orchestrator.Play(suite.ctx, req)
			suite.Nil(result)
			suite.Require().Error(err)
			if tc.err != nil {
				suite.Same(tc.err, err)
			} else {
				suite.Equal(tc.code, errors.GetCode(err))
			}
			suite.Empty(env.payments.debits)
			suite.Equal(int64(100), env.payments.balance)
			suite.Empty(env.issues.issues)
		})
	}
}

// 测试扣款失败：回合失败，错误原样返回，无对账问题
func (suite *OrchestratorTestSuite) TestDebitFailure() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)
	ledgerErr := errors.New(errors.ErrInsufficientFunds)
	env.payments.debitErr = ledgerErr

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Nil(result)
	suite.Same(ledgerErr, err)
	suite.Empty(env.issues.issues)
	suite.Empty(env.payments.credits)

	// 承诺未被消耗
	_, live := env.coordinator.CommittedHash("player-1")
	suite.True(live)
}

// 测试派彩失败：记为待对账，不重试不退款
func (suite *OrchestratorTestSuite) TestCreditFailureReportsInconsistency() {
	env := newTestEnv(suite.T(), jackpotConfig(), nil)
	ledgerErr := errors.New(errors.ErrLedger, "timeout")
	env.payments.creditErr = ledgerErr

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Nil(result)
	suite.Same(ledgerErr, err)
	suite.Equal(int64(90), env.payments.balance)
	suite.Len(env.payments.debits, 1)
	suite.Empty(env.payments.credits)

	suite.Require().Len(env.issues.issues, 1)
	issue := env.issues.issues[0]
	suite.Equal(stageCredit, issue.Stage)
	suite.Equal(int64(10), issue.Wager)
	suite.Equal(int64(500), issue.Payout)
	suite.Equal(env.payments.debits[0].RoundID, issue.RoundID)

	history := env.persister.History(issue.RoundID)
	suite.Equal("failed", history[len(history)-1])
}

// 测试引擎panic：回合失败并记为待对账
func (suite *OrchestratorTestSuite) TestEnginePanic() {
	env := newTestEnv(suite.T(), noWinConfig(), panicEngine{})

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Nil(result)
	suite.True(errors.Is(err, errors.ErrRoundStateError))
	suite.Equal(int64(90), env.payments.balance)

	suite.Require().Len(env.issues.issues, 1)
	suite.Equal(stageCompute, env.issues.issues[0].Stage)
}

// 测试扣款后取消上下文仍会派彩
func (suite *OrchestratorTestSuite) TestCancelAfterDebit() {
	env := newTestEnv(suite.T(), jackpotConfig(), nil)
	ctx, cancel := context.WithCancel(suite.ctx)
	defer cancel()
	env.payments.onDebit = cancel

	result, err := env.orchestrator.Play(ctx, playRequest(10))
	suite.Require().NoError(err)
	suite.Equal(StateSettled, result.State)
	suite.Len(env.payments.credits, 1)
}

// 测试扣款期间同一玩家重新承诺：本局待对账，新承诺保留
func (suite *OrchestratorTestSuite) TestRecommitDuringDebit() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)
	var newer string
	env.payments.onDebit = func() {
		h, err := env.coordinator.CommitServerSeed("player-1")
		suite.Require().NoError(err)
		newer = h
	}

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Nil(result)
	suite.True(errors.Is(err, errors.ErrSeedHashMismatch))
	suite.Len(env.issues.issues, 1)

	live, ok := env.coordinator.CommittedHash("player-1")
	suite.True(ok)
	suite.Equal(newer, live)

	// 新承诺仍可用于下一局
	req := playRequest(10)
	req.CommitHash = newer
	env.payments.onDebit = nil
	next, err := env.orchestrator.Play(suite.ctx, req)
	suite.Require().NoError(err)
	suite.Equal(newer, next.CommitHash)
	suite.True(fairness.VerifyCommitment(next.ServerSeed, newer))
}

// 测试热更新下注限额
func (suite *OrchestratorTestSuite) TestUpdateOptions() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)
	opts := env.orchestrator.Options()
	opts.MaxBet = 5
	env.orchestrator.UpdateOptions(opts)

	_, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.True(errors.Is(err, errors.ErrInvalidBet))
	suite.Empty(env.payments.debits)

	result, err := env.orchestrator.Play(suite.ctx, playRequest(5))
	suite.Require().NoError(err)
	suite.Equal(int64(5), result.Wager)
}

// 测试结算回调
func (suite *OrchestratorTestSuite) TestObservers() {
	env := newTestEnv(suite.T(), noWinConfig(), nil)
	var seen []*RoundResult
	env.orchestrator.OnRoundSettled(func(r *RoundResult) { seen = append(seen, r) })

	result, err := env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Require().NoError(err)
	suite.Require().Len(seen, 1)
	suite.Equal(result.RoundID, seen[0].RoundID)

	// 失败的回合不通知
	env.payments.debitErr = errors.New(errors.ErrInsufficientFunds)
	_, err = env.orchestrator.Play(suite.ctx, playRequest(10))
	suite.Error(err)
	suite.Len(seen, 1)
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func TestVerifySeed(t *testing.T) {
	env := newTestEnv(t, noWinConfig(), nil)
	server, client := "server-seed", "client-seed"
	draw := fairness.FirstDraw(server, client)

	t.Run("正确", func(t *testing.T) {
		resp := env.orchestrator.VerifySeed(&VerifyRequest{ServerSeed: server, ClientSeed: client, Draw: draw})
		assert.True(t, resp.Valid)
		assert.Nil(t, resp.HashMatches)
		assert.Equal(t, fairness.HashSeed(server), resp.CommitHash)
	})

	t.Run("抽取值不一致", func(t *testing.T) {
		resp := env.orchestrator.VerifySeed(&VerifyRequest{ServerSeed: server, ClientSeed: client, Draw: draw + 0.01})
		assert.False(t, resp.Valid)
		assert.False(t, resp.DrawMatches)
	})

	t.Run("哈希不一致", func(t *testing.T) {
		resp := env.orchestrator.VerifySeed(&VerifyRequest{
			ServerSeed: server, ClientSeed: client, Draw: draw, CommitHash: fairness.HashSeed("other"),
		})
		assert.True(t, resp.DrawMatches)
		assert.False(t, resp.Valid)
		require.NotNil(t, resp.HashMatches)
		assert.False(t, *resp.HashMatches)
	})

	t.Run("重放抽取序列", func(t *testing.T) {
		resp := env.orchestrator.VerifySeed(&VerifyRequest{ServerSeed: server, ClientSeed: client, Draw: draw, Replay: 9})
		require.Len(t, resp.Draws, 9)
		assert.Equal(t, draw, resp.Draws[0])

		rng := fairness.CreateRNGFromSeeds(server, client)
		for _, d := range resp.Draws {
			assert.Equal(t, rng.Next(), d)
		}

		capped := env.orchestrator.VerifySeed(&VerifyRequest{ServerSeed: server, ClientSeed: client, Replay: 5000})
		assert.Len(t, capped.Draws, maxReplayDraws)
	})
}
