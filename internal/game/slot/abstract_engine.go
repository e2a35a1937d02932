package slot

import (
	"github.com/wfunc/fair-slot/internal/errors"
)

// GameLogic 具体游戏需要提供的三个步骤
type GameLogic[R any] interface {
	// Run 用给定随机源和下注产生结果
	Run(rng RandomSource, wager int64) (R, error)
	IsWin(result R) bool
	GetPayout(result R) int64
}

// JackpotReporter 可选，游戏支持头奖时实现
type JackpotReporter[R any] interface {
	HasJackpot(result R) bool
}

// Outcome 与具体玩法无关的结算视图
type Outcome struct {
	IsWin      bool  `json:"is_win"`
	Payout     int64 `json:"payout"`
	HasJackpot bool  `json:"has_jackpot"`
	Result     any   `json:"result"`
}

// RoundEngine 回合引擎能力，编排器只依赖它
type RoundEngine interface {
	Play(rng RandomSource, wager int64) (*Outcome, error)
}

type templateEngine[R any] struct {
	logic GameLogic[R]
}

// NewTemplateEngine 把GameLogic包装成RoundEngine
func NewTemplateEngine[R any](logic GameLogic[R]) RoundEngine {
	return &templateEngine[R]{logic: logic}
}

// Play 固定流程：Run -> IsWin -> GetPayout
func (t *templateEngine[R]) Play(rng RandomSource, wager int64) (*Outcome, error) {
	if rng == nil {
		return nil, errors.New(errors.ErrInvalidParam, "rng为空")
	}
	result, err := t.logic.Run(rng, wager)
	if err != nil {
		return nil, err
	}

	payout := t.logic.GetPayout(result)
	if payout < 0 {
		return nil, errors.Newf(errors.ErrRoundStateError, "负赔付: %d", payout)
	}

	outcome := &Outcome{
		IsWin:  t.logic.IsWin(result),
		Payout: payout,
		Result: result,
	}
	if reporter, ok := t.logic.(JackpotReporter[R]); ok {
		outcome.HasJackpot = reporter.HasJackpot(result)
	}
	return outcome, nil
}

// SlotGame 老虎机玩法
type SlotGame struct {
	engine *ResultEngine
}

// NewSlotGame 创建老虎机玩法
func NewSlotGame(engine *ResultEngine) *SlotGame {
	return &SlotGame{engine: engine}
}

// NewSlotRoundEngine 由配置直接构建回合引擎
func NewSlotRoundEngine(config *SlotConfig) (RoundEngine, error) {
	engine, err := NewResultEngine(config)
	if err != nil {
		return nil, err
	}
	return NewTemplateEngine[*SlotResult](NewSlotGame(engine)), nil
}

func (g *SlotGame) Run(rng RandomSource, wager int64) (*SlotResult, error) {
	return g.engine.Spin(rng, wager)
}

func (g *SlotGame) IsWin(result *SlotResult) bool {
	return result.IsWin
}

func (g *SlotGame) GetPayout(result *SlotResult) int64 {
	return result.Payout
}

func (g *SlotGame) HasJackpot(result *SlotResult) bool {
	return result.HasJackpot
}
