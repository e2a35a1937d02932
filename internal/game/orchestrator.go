package game

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/fairness"
	"github.com/wfunc/fair-slot/internal/game/slot"
	"github.com/wfunc/fair-slot/internal/logger"
	"github.com/wfunc/fair-slot/internal/metrics"
	"github.com/wfunc/fair-slot/internal/models"
	"go.uber.org/zap"
)

// 扣款之后出错的阶段
const (
	stageDebit   = "debit"
	stageReveal  = "reveal"
	stageCompute = "compute"
	stageCredit  = "credit"
	stageSettle  = "settle"
)

// IssueReporter 对账问题记录
// repository.SettlementIssueRepository 直接满足该接口
type IssueReporter interface {
	Create(ctx context.Context, issue *models.SettlementIssue) error
}

// RoundObserver 回合结束通知
type RoundObserver func(result *RoundResult)

// Options 编排器选项
type Options struct {
	DefaultCurrency string
	MinBet          int64
	MaxBet          int64
}

// RoundOrchestrator 把承诺、扣款、出结果、派彩组合成一次原子的play
// 同一玩家的回合需要由调用方串行化
type RoundOrchestrator struct {
	bridge      *SessionBridge
	coordinator *fairness.Coordinator
	engine      slot.RoundEngine
	persister   RoundPersister
	issues      IssueReporter
	logger      *zap.Logger
	opts        Options
	newID       func() string

	mu        sync.RWMutex
	observers []RoundObserver
}

// NewRoundOrchestrator 创建回合编排器，persister 和 issues 可以为空
func NewRoundOrchestrator(bridge *SessionBridge, coordinator *fairness.Coordinator, engine slot.RoundEngine,
	persister RoundPersister, issues IssueReporter, log *zap.Logger, opts Options) *RoundOrchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoundOrchestrator{
		bridge:      bridge,
		coordinator: coordinator,
		engine:      engine,
		persister:   persister,
		issues:      issues,
		logger:      log,
		opts:        opts,
		newID:       func() string { return uuid.New().String() },
	}
}

// OnRoundSettled 注册回合结算回调
func (o *RoundOrchestrator) OnRoundSettled(fn RoundObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// UpdateOptions 热更新下注限额和默认币种，对之后开始的回合生效
func (o *RoundOrchestrator) UpdateOptions(opts Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts = opts
}

// Options 当前选项
func (o *RoundOrchestrator) Options() Options {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.opts
}

// Bridge 会话桥
func (o *RoundOrchestrator) Bridge() *SessionBridge {
	return o.bridge
}

// Init 进入游戏
func (o *RoundOrchestrator) Init(ctx context.Context, req *InitRequest) (*InitResponse, error) {
	if req.Currency == "" {
		req.Currency = o.Options().DefaultCurrency
	}
	return o.bridge.Init(ctx, req)
}

// CommitServerSeed 为玩家承诺新种子，返回哈希供玩家在下注前保存
func (o *RoundOrchestrator) CommitServerSeed(ctx context.Context, req *CommitRequest) (*CommitResponse, error) {
	if err := o.bridge.EnsureGame(req.StudioID, req.GameID); err != nil {
		return nil, err
	}
	player, err := o.bridge.ResolvePlayer(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hash, err := o.coordinator.CommitServerSeed(player.PlayerID)
	if err != nil {
		return nil, err
	}
	return &CommitResponse{PlayerID: player.PlayerID, CommitHash: hash}, nil
}

// VerifySeed 玩家侧校验：重算第一次抽取，可选校验承诺哈希
func (o *RoundOrchestrator) VerifySeed(req *VerifyRequest) *VerifyResponse {
	resp := &VerifyResponse{
		FirstDraw:   fairness.FirstDraw(req.ServerSeed, req.ClientSeed),
		DrawMatches: fairness.VerifySeed(req.ServerSeed, req.ClientSeed, req.Draw),
		CommitHash:  fairness.HashSeed(req.ServerSeed),
	}
	resp.Valid = resp.DrawMatches
	if n := req.Replay; n > 0 {
		if n > maxReplayDraws {
			n = maxReplayDraws
		}
		resp.Draws = fairness.Replay(req.ServerSeed, req.ClientSeed, n)
	}
	if req.CommitHash != "" {
		matches := fairness.VerifyCommitment(req.ServerSeed, req.CommitHash)
		resp.HashMatches = &matches
		resp.Valid = resp.Valid && matches
	}

	result := "valid"
	if !resp.Valid {
		result = "invalid"
	}
	metrics.VerificationsTotal.WithLabelValues(result).Inc()
	return resp
}

// Play 执行一局：承诺 -> 扣款 -> 揭示并出结果 -> 派彩
func (o *RoundOrchestrator) Play(ctx context.Context, req *PlayRequest) (*RoundResult, error) {
	// 校验阶段的错误不产生任何副作用
	player, currency, err := o.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	round := &models.GameRound{
		RoundID:       o.newID(),
		TransactionID: o.newID(),
		PlayerID:      player.PlayerID,
		SessionID:     player.SessionID,
		StudioID:      req.StudioID,
		GameID:        req.GameID,
		Currency:      currency,
		Wager:         req.Wager,
		ClientSeed:    req.ClientSeed,
	}

	hash, err := o.commit(player.PlayerID, req.CommitHash)
	if err != nil {
		return nil, err
	}
	round.CommitHash = hash

	sm := NewRoundStateMachine(round, o.logger, o.persister)
	if err := sm.Trigger(ctx, EventCommitSeed); err != nil {
		return nil, err
	}
	logger.LogRoundEvent(o.logger, EventCommitSeed, round.RoundID, round.PlayerID,
		zap.String("commit_hash", hash))

	debit, err := o.bridge.Debit(ctx, o.paymentRequest(player, round, round.Wager))
	if err != nil {
		// 未扣款，无需回滚；承诺保留给下一次请求
		// 请求可能已取消，失败状态仍要落库
		_ = sm.Fail(context.WithoutCancel(ctx), err)
		o.finish(sm)
		return nil, err
	}
	if err := sm.Trigger(ctx, EventDebit); err != nil {
		o.reportInconsistency(context.WithoutCancel(ctx), sm, round, stageDebit, err)
		return nil, err
	}
	metrics.WageredTotal.WithLabelValues(round.Currency).Add(float64(round.Wager))
	logger.LogRoundEvent(o.logger, EventDebit, round.RoundID, round.PlayerID,
		zap.Int64("wager", round.Wager),
		zap.Int64("balance", debit.Balance),
	)

	// 扣款之后不再响应取消，必须走到终态
	result, err := o.settle(context.WithoutCancel(ctx), sm, player, round, debit.Balance)
	if err != nil {
		return nil, err
	}

	o.notify(result)
	return result, nil
}

func (o *RoundOrchestrator) validate(ctx context.Context, req *PlayRequest) (*adapter.PlayerContext, string, error) {
	if req == nil {
		return nil, "", errors.New(errors.ErrInvalidParam, "空请求")
	}
	if err := o.bridge.EnsureGame(req.StudioID, req.GameID); err != nil {
		return nil, "", err
	}
	player, err := o.bridge.ResolvePlayer(ctx, req.Query)
	if err != nil {
		return nil, "", err
	}

	if req.Wager <= 0 {
		return nil, "", errors.Newf(errors.ErrInvalidBet, "下注必须为正数: %d", req.Wager)
	}
	opts := o.Options()
	if opts.MinBet > 0 && req.Wager < opts.MinBet {
		return nil, "", errors.Newf(errors.ErrInvalidBet, "下注低于最小值 %d", opts.MinBet)
	}
	if opts.MaxBet > 0 && req.Wager > opts.MaxBet {
		return nil, "", errors.Newf(errors.ErrInvalidBet, "下注高于最大值 %d", opts.MaxBet)
	}
	if strings.TrimSpace(req.ClientSeed) == "" || len(req.ClientSeed) > maxClientSeedLength {
		return nil, "", errors.Newf(errors.ErrInvalidClientSeed, "客户端种子长度须在1到%d之间", maxClientSeedLength)
	}

	currency := req.Currency
	if currency == "" {
		currency = opts.DefaultCurrency
	}
	if currency == "" {
		return nil, "", errors.New(errors.ErrCurrencyNotSupported, "缺少币种")
	}
	return player, strings.ToUpper(currency), nil
}

// commit 没有预先公布的哈希时重新承诺，否则校验现有承诺
func (o *RoundOrchestrator) commit(playerID, published string) (string, error) {
	if published == "" {
		return o.coordinator.CommitServerSeed(playerID)
	}
	live, ok := o.coordinator.CommittedHash(playerID)
	if !ok {
		return "", errors.New(errors.ErrNoCommittedSeed, playerID)
	}
	if !strings.EqualFold(live, published) {
		return "", errors.Newf(errors.ErrSeedHashMismatch, "已承诺 %s，请求 %s", live, published)
	}
	return live, nil
}

// settle 扣款之后的全部步骤，任何错误或panic都会记为待对账
func (o *RoundOrchestrator) settle(ctx context.Context, sm *RoundStateMachine, player *adapter.PlayerContext,
	round *models.GameRound, balance int64) (result *RoundResult, err error) {
	stage := stageReveal
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(o.logger, r, debug.Stack())
			result = nil
			err = errors.Newf(errors.ErrRoundStateError, "%s阶段panic: %v", stage, r)
		}
		if err != nil {
			o.reportInconsistency(ctx, sm, round, stage, err)
		}
	}()

	// 扣款期间承诺可能被同一玩家的并发请求替换，此时保留新承诺
	seed, err := o.coordinator.RevealCommitted(round.PlayerID, round.CommitHash)
	if err != nil {
		return nil, err
	}
	round.ServerSeed = seed

	stage = stageCompute
	rng := fairness.CreateRNGFromSeeds(seed, round.ClientSeed)
	outcome, err := o.engine.Play(rng, round.Wager)
	if err != nil {
		return nil, err
	}
	slotResult, _ := outcome.Result.(*slot.SlotResult)

	round.Payout = outcome.Payout
	round.HasJackpot = outcome.HasJackpot
	round.Draws = rng.Draws()
	if snapshot, jsonErr := models.NewJSONMap(outcome.Result); jsonErr == nil {
		round.Result = snapshot
	} else {
		o.logger.Warn("序列化回合结果失败", zap.String("round_id", round.RoundID), zap.Error(jsonErr))
	}
	if err := sm.Trigger(ctx, EventCompute); err != nil {
		return nil, err
	}
	logger.LogRoundEvent(o.logger, EventCompute, round.RoundID, round.PlayerID,
		zap.Int64("payout", round.Payout),
		zap.Bool("jackpot", round.HasJackpot),
		zap.Int("draws", round.Draws),
	)

	stage = stageCredit
	if round.Payout > 0 {
		credit, err := o.bridge.Credit(ctx, o.paymentRequest(player, round, round.Payout))
		if err != nil {
			return nil, err
		}
		balance = credit.Balance
		metrics.PaidOutTotal.WithLabelValues(round.Currency).Add(float64(round.Payout))
	}

	stage = stageSettle
	if err := sm.Trigger(ctx, EventSettle); err != nil {
		return nil, err
	}
	if round.HasJackpot {
		metrics.JackpotsTotal.Inc()
	}
	o.finish(sm)

	return &RoundResult{
		RoundID:       round.RoundID,
		TransactionID: round.TransactionID,
		PlayerID:      round.PlayerID,
		State:         sm.State(),
		Currency:      round.Currency,
		Wager:         round.Wager,
		Payout:        round.Payout,
		CommitHash:    round.CommitHash,
		ServerSeed:    round.ServerSeed,
		ClientSeed:    round.ClientSeed,
		Draws:         round.Draws,
		Outcome:       outcome,
		Result:        slotResult,
		Balance:       balance,
	}, nil
}

// reportInconsistency 已扣款的回合失败：记日志、落库、计数，不自动重试也不退款
func (o *RoundOrchestrator) reportInconsistency(ctx context.Context, sm *RoundStateMachine, round *models.GameRound, stage string, cause error) {
	if sm.CanTransition(EventFail) {
		if err := sm.Fail(ctx, cause); err != nil {
			o.logger.Error("回合无法进入失败状态", zap.String("round_id", round.RoundID), zap.Error(err))
		}
	}
	o.finish(sm)

	logger.LogSettlementIssue(o.logger, round.RoundID, round.TransactionID, round.PlayerID, round.Wager, cause)
	metrics.SettlementInconsistencies.Inc()

	if o.issues == nil {
		return
	}
	issue := &models.SettlementIssue{
		RoundID:       round.RoundID,
		TransactionID: round.TransactionID,
		PlayerID:      round.PlayerID,
		Currency:      round.Currency,
		Wager:         round.Wager,
		Payout:        round.Payout,
		Stage:         stage,
		Error:         truncate(fmt.Sprint(cause), 1000),
	}
	if err := o.issues.Create(ctx, issue); err != nil {
		o.logger.Error("记录对账问题失败",
			zap.String("round_id", round.RoundID),
			zap.Error(err),
		)
	}
}

func (o *RoundOrchestrator) finish(sm *RoundStateMachine) {
	metrics.RoundsTotal.WithLabelValues(string(sm.State())).Inc()
	metrics.RoundDuration.Observe(sm.Elapsed().Seconds())
}

func (o *RoundOrchestrator) paymentRequest(player *adapter.PlayerContext, round *models.GameRound, amount int64) *adapter.PaymentRequest {
	return &adapter.PaymentRequest{
		Player:        *player,
		Currency:      round.Currency,
		Amount:        amount,
		TransactionID: round.TransactionID,
		RoundID:       round.RoundID,
		GameID:        round.GameID,
	}
}

func (o *RoundOrchestrator) notify(result *RoundResult) {
	o.mu.RLock()
	observers := append([]RoundObserver(nil), o.observers...)
	o.mu.RUnlock()

	for _, fn := range observers {
		fn(result)
	}
}
