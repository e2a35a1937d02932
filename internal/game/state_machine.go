package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/models"
	"go.uber.org/zap"
)

// RoundState 回合状态
type RoundState string

const (
	StateIdle           RoundState = "idle"
	StateSeedCommitted  RoundState = "seed_committed"
	StateWagerDebited   RoundState = "wager_debited"
	StateResultComputed RoundState = "result_computed"
	StateSettled        RoundState = "settled"
	StateFailed         RoundState = "failed"
)

// 回合事件
const (
	EventCommitSeed = "commit_seed"
	EventDebit      = "debit"
	EventCompute    = "compute"
	EventSettle     = "settle"
	EventFail       = "fail"
)

// IsTerminal 终态
func (s RoundState) IsTerminal() bool {
	return s == StateSettled || s == StateFailed
}

// RoundTransition 状态转换定义
type RoundTransition struct {
	From   RoundState
	Event  string
	To     RoundState
	Action func(ctx context.Context, sm *RoundStateMachine) error
}

// RoundStateMachine 单局回合状态机
type RoundStateMachine struct {
	mu          sync.RWMutex
	state       RoundState
	round       *models.GameRound
	transitions map[string]RoundTransition
	logger      *zap.Logger
	persister   RoundPersister
	startTime   time.Time
	now         func() time.Time

	onStateChange func(roundID string, from, to RoundState)
}

// NewRoundStateMachine 创建回合状态机，round 由状态机维护状态字段
func NewRoundStateMachine(round *models.GameRound, logger *zap.Logger, persister RoundPersister) *RoundStateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &RoundStateMachine{
		state:       StateIdle,
		round:       round,
		transitions: make(map[string]RoundTransition),
		logger:      logger,
		persister:   persister,
		startTime:   time.Now(),
		now:         time.Now,
	}
	round.State = string(StateIdle)
	sm.initTransitions()
	return sm
}

func (sm *RoundStateMachine) initTransitions() {
	// 待机 -> 已承诺
	sm.addTransition(RoundTransition{
		From:  StateIdle,
		Event: EventCommitSeed,
		To:    StateSeedCommitted,
		Action: func(ctx context.Context, sm *RoundStateMachine) error {
			if sm.round.CommitHash == "" {
				return fmt.Errorf("缺少承诺哈希")
			}
			return nil
		},
	})

	// 已承诺 -> 已扣款
	sm.addTransition(RoundTransition{
		From:  StateSeedCommitted,
		Event: EventDebit,
		To:    StateWagerDebited,
		Action: func(ctx context.Context, sm *RoundStateMachine) error {
			if sm.round.Wager <= 0 {
				return fmt.Errorf("下注金额无效: %d", sm.round.Wager)
			}
			return nil
		},
	})

	// 已扣款 -> 已出结果
	sm.addTransition(RoundTransition{
		From:  StateWagerDebited,
		Event: EventCompute,
		To:    StateResultComputed,
		Action: func(ctx context.Context, sm *RoundStateMachine) error {
			if sm.round.ServerSeed == "" {
				return fmt.Errorf("服务端种子未揭示")
			}
			if sm.round.Payout < 0 {
				return fmt.Errorf("赔付金额无效: %d", sm.round.Payout)
			}
			return nil
		},
	})

	// 已出结果 -> 已结算
	sm.addTransition(RoundTransition{
		From:  StateResultComputed,
		Event: EventSettle,
		To:    StateSettled,
		Action: func(ctx context.Context, sm *RoundStateMachine) error {
			settledAt := sm.now()
			sm.round.SettledAt = &settledAt
			return nil
		},
	})

	// 非终态 -> 失败
	for _, state := range []RoundState{StateIdle, StateSeedCommitted, StateWagerDebited, StateResultComputed} {
		sm.addTransition(RoundTransition{
			From:  state,
			Event: EventFail,
			To:    StateFailed,
			Action: func(ctx context.Context, sm *RoundStateMachine) error {
				sm.logger.Error("回合失败",
					zap.String("round_id", sm.round.RoundID),
					zap.String("player_id", sm.round.PlayerID),
					zap.String("error", sm.round.Error),
				)
				return nil
			},
		})
	}
}

func (sm *RoundStateMachine) addTransition(transition RoundTransition) {
	sm.transitions[transitionKey(transition.From, transition.Event)] = transition
}

func transitionKey(state RoundState, event string) string {
	return fmt.Sprintf("%s:%s", state, event)
}

// Trigger 触发事件
func (sm *RoundStateMachine) Trigger(ctx context.Context, event string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	transition, ok := sm.transitions[transitionKey(sm.state, event)]
	if !ok {
		return errors.Newf(errors.ErrRoundStateError, "无效的状态转换: 状态=%s, 事件=%s", sm.state, event)
	}

	if transition.Action != nil {
		if err := transition.Action(ctx, sm); err != nil {
			// 转换失败，保持原状态
			return errors.Wrapf(err, errors.ErrRoundStateError, "状态转换失败: %s", event)
		}
	}

	from := sm.state
	sm.state = transition.To
	sm.round.State = string(transition.To)

	if sm.persister != nil {
		if err := sm.persister.Save(ctx, sm.round); err != nil {
			sm.logger.Error("持久化回合失败",
				zap.Error(err),
				zap.String("round_id", sm.round.RoundID),
				zap.String("state", string(sm.state)),
			)
		}
	}

	if sm.onStateChange != nil {
		sm.onStateChange(sm.round.RoundID, from, sm.state)
	}

	sm.logger.Debug("状态转换",
		zap.String("round_id", sm.round.RoundID),
		zap.String("from", string(from)),
		zap.String("to", string(sm.state)),
		zap.String("event", event),
	)
	return nil
}

// Fail 记录错误并进入失败状态
func (sm *RoundStateMachine) Fail(ctx context.Context, cause error) error {
	sm.mu.Lock()
	if cause != nil {
		sm.round.Error = truncate(cause.Error(), 1000)
	}
	sm.mu.Unlock()
	return sm.Trigger(ctx, EventFail)
}

// State 当前状态
func (sm *RoundStateMachine) State() RoundState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Elapsed 从创建到现在的耗时
func (sm *RoundStateMachine) Elapsed() time.Duration {
	return time.Since(sm.startTime)
}

// CanTransition 当前状态下事件是否有效
func (sm *RoundStateMachine) CanTransition(event string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.transitions[transitionKey(sm.state, event)]
	return ok
}

// ValidEvents 当前状态下的有效事件
func (sm *RoundStateMachine) ValidEvents() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var events []string
	for _, t := range sm.transitions {
		if t.From == sm.state {
			events = append(events, t.Event)
		}
	}
	sort.Strings(events)
	return events
}

// OnStateChange 设置状态变更回调
func (sm *RoundStateMachine) OnStateChange(fn func(roundID string, from, to RoundState)) {
	sm.onStateChange = fn
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
