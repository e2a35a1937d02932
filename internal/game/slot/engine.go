package slot

import (
	"math"

	"github.com/wfunc/fair-slot/internal/errors"
)

// ResultEngine 老虎机结果引擎
// 纯计算，无内部状态，同一配置可被多个回合并发使用
type ResultEngine struct {
	config      *SlotConfig
	totalWeight float64
}

// NewResultEngine 创建结果引擎
func NewResultEngine(config *SlotConfig) (*ResultEngine, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	var total float64
	for _, sw := range config.Symbols {
		total += sw.Weight
	}
	return &ResultEngine{
		config:      config,
		totalWeight: total,
	}, nil
}

// GetConfig 获取配置
func (e *ResultEngine) GetConfig() *SlotConfig {
	return e.config
}

// Spin 抽取网格并计算结果
func (e *ResultEngine) Spin(rng RandomSource, wager int64) (*SlotResult, error) {
	if wager <= 0 {
		return nil, errors.Newf(errors.ErrInvalidBet, "wager=%d", wager)
	}
	grid := e.DrawGrid(rng)
	return e.Evaluate(grid, wager), nil
}

// DrawGrid 按行优先顺序为每个格子抽取一个符号
func (e *ResultEngine) DrawGrid(rng RandomSource) [][]Symbol {
	grid := make([][]Symbol, e.config.Rows)
	for row := range grid {
		grid[row] = make([]Symbol, e.config.Reels)
		for reel := range grid[row] {
			grid[row][reel] = e.pickSymbol(rng.Next())
		}
	}
	return grid
}

// pickSymbol 累积权重反演：第一个累积权重大于 r*total 的符号
func (e *ResultEngine) pickSymbol(r float64) Symbol {
	target := r * e.totalWeight
	var cumulative float64
	var last Symbol
	for _, sw := range e.config.Symbols {
		if sw.Weight <= 0 {
			continue
		}
		cumulative += sw.Weight
		last = sw.Symbol
		if cumulative > target {
			return sw.Symbol
		}
	}
	// 浮点累加误差
	return last
}

// Evaluate 按优先级计算网格结果：头奖 > 水平 > 对角线 > 全盘计数
func (e *ResultEngine) Evaluate(grid [][]Symbol, wager int64) *SlotResult {
	result := &SlotResult{
		Grid:                grid,
		Wager:               wager,
		WinningCombinations: []WinningCombination{},
	}

	if combo, ok := e.checkJackpot(grid, wager); ok {
		result.HasJackpot = true
		result.WinningCombinations = append(result.WinningCombinations, combo)
		result.Payout = combo.Payout
		result.IsWin = result.Payout > 0
		return result
	}

	combos := e.checkHorizontal(grid, wager)
	combos = append(combos, e.checkDiagonals(grid, wager)...)
	combos = append(combos, e.checkSymbolCounts(grid, wager)...)

	for _, combo := range combos {
		result.Payout += combo.Payout
	}
	result.WinningCombinations = append(result.WinningCombinations, combos...)
	result.IsWin = result.Payout > 0
	return result
}

func (e *ResultEngine) checkJackpot(grid [][]Symbol, wager int64) (WinningCombination, bool) {
	jackpot := e.config.Jackpot
	positions := findSymbol(grid, jackpot.Symbol)
	if jackpot.Count <= 0 || len(positions) < jackpot.Count {
		return WinningCombination{}, false
	}
	return WinningCombination{
		Type:       LineTypeJackpot,
		Line:       -1,
		Symbol:     jackpot.Symbol,
		Count:      len(positions),
		RuleCount:  jackpot.Count,
		Positions:  positions,
		Multiplier: jackpot.Multiplier,
		Payout:     scaleWager(jackpot.Multiplier, wager),
	}, true
}

func (e *ResultEngine) checkHorizontal(grid [][]Symbol, wager int64) []WinningCombination {
	var combos []WinningCombination
	for row := range grid {
		line := make([]Position, len(grid[row]))
		for reel := range grid[row] {
			line[reel] = Position{Row: row, Reel: reel}
		}
		if combo, ok := e.scoreLine(grid, line, e.config.Horizontal, LineTypeHorizontal, row, wager); ok {
			combos = append(combos, combo)
		}
	}
	return combos
}

func (e *ResultEngine) checkDiagonals(grid [][]Symbol, wager int64) []WinningCombination {
	rows, reels := e.config.Rows, e.config.Reels
	n := rows
	if reels < n {
		n = reels
	}

	downRight := make([]Position, n)
	upRight := make([]Position, n)
	for i := 0; i < n; i++ {
		downRight[i] = Position{Row: i, Reel: i}
		upRight[i] = Position{Row: rows - 1 - i, Reel: i}
	}

	var combos []WinningCombination
	if combo, ok := e.scoreLine(grid, downRight, e.config.Diagonal, LineTypeDiagonal, DiagonalDownRight, wager); ok {
		combos = append(combos, combo)
	}
	if combo, ok := e.scoreLine(grid, upRight, e.config.Diagonal, LineTypeDiagonal, DiagonalUpRight, wager); ok {
		combos = append(combos, combo)
	}
	return combos
}

func (e *ResultEngine) checkSymbolCounts(grid [][]Symbol, wager int64) []WinningCombination {
	var combos []WinningCombination
	for _, sw := range e.config.Symbols {
		positions := findSymbol(grid, sw.Symbol)
		if len(positions) == 0 {
			continue
		}
		rule, ok := matchRule(e.config.SymbolCount, sw.Symbol, len(positions))
		if !ok {
			continue
		}
		combos = append(combos, e.buildCombination(LineTypeSymbolCount, -1, rule, positions, wager))
	}
	return combos
}

// scoreLine 取一条线上最长的同符号连续段去匹配规则表
func (e *ResultEngine) scoreLine(grid [][]Symbol, line []Position, rules []PayRule, lineType LineType, lineID int, wager int64) (WinningCombination, bool) {
	if len(rules) == 0 || len(line) == 0 {
		return WinningCombination{}, false
	}
	start, length := longestRun(grid, line)
	symbol := grid[line[start].Row][line[start].Reel]
	rule, ok := matchRule(rules, symbol, length)
	if !ok {
		return WinningCombination{}, false
	}
	positions := make([]Position, length)
	copy(positions, line[start:start+length])
	return e.buildCombination(lineType, lineID, rule, positions, wager), true
}

func (e *ResultEngine) buildCombination(lineType LineType, lineID int, rule PayRule, positions []Position, wager int64) WinningCombination {
	combo := WinningCombination{
		Type:       lineType,
		Line:       lineID,
		Symbol:     rule.Symbol,
		Count:      len(positions),
		RuleCount:  rule.Count,
		Positions:  positions,
		Multiplier: rule.Multiplier,
		RewardKey:  rule.RewardKey,
	}
	if rule.RewardKey != "" {
		combo.Reward = e.config.Rewards[rule.RewardKey]
	}
	combo.Payout = scaleWager(rule.Multiplier, wager) + combo.Reward
	return combo
}

// scaleWager 倍率乘下注，向下取整到最小货币单位
func scaleWager(multiplier float64, wager int64) int64 {
	return int64(math.Floor(multiplier * float64(wager)))
}
