package slot

// Symbol 游戏符号
type Symbol string

const (
	SymbolCherry     Symbol = "CHERRY"     // 樱桃
	SymbolLemon      Symbol = "LEMON"      // 柠檬
	SymbolOrange     Symbol = "ORANGE"     // 橙子
	SymbolGrape      Symbol = "GRAPE"      // 葡萄
	SymbolWatermelon Symbol = "WATERMELON" // 西瓜
	SymbolBar        Symbol = "BAR"        // BAR
	SymbolSeven      Symbol = "SEVEN"      // 7
	SymbolDiamond    Symbol = "DIAMOND"    // 钻石，默认头奖符号
)

// LineType 中奖组合类型
type LineType string

const (
	LineTypeJackpot     LineType = "jackpot"      // 头奖
	LineTypeHorizontal  LineType = "horizontal"   // 水平连线
	LineTypeDiagonal    LineType = "diagonal"     // 对角线
	LineTypeSymbolCount LineType = "symbol_count" // 全盘计数
)

// 对角线编号
const (
	DiagonalDownRight = 0 // 左上到右下
	DiagonalUpRight   = 1 // 左下到右上
)

// Position 格子位置
type Position struct {
	Row  int `json:"row"`
	Reel int `json:"reel"`
}

// SymbolWeight 符号权重，按配置顺序做累积权重抽样
type SymbolWeight struct {
	Symbol Symbol  `json:"symbol" yaml:"symbol" validate:"required"`
	Weight float64 `json:"weight" yaml:"weight" validate:"gte=0"`
}

// PayRule 赔付规则
// 观察到的连线长度或数量 >= Count 时匹配，同一符号取Count最大的规则
type PayRule struct {
	Symbol     Symbol  `json:"symbol" yaml:"symbol" validate:"required"`
	Count      int     `json:"count" yaml:"count" validate:"gte=1"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier" validate:"gte=0"`
	RewardKey  string  `json:"reward_key,omitempty" yaml:"reward_key,omitempty"`
}

// JackpotRule 头奖规则
type JackpotRule struct {
	Symbol     Symbol  `json:"symbol" yaml:"symbol" validate:"required"`
	Count      int     `json:"count" yaml:"count" validate:"gte=1"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier" validate:"gt=0"`
}

// SlotConfig 老虎机配置
type SlotConfig struct {
	Rows        int              `json:"rows" yaml:"rows" validate:"gte=1,lte=10"`
	Reels       int              `json:"reels" yaml:"reels" validate:"gte=1,lte=10"`
	Symbols     []SymbolWeight   `json:"symbols" yaml:"symbols" validate:"required,min=1,dive"`
	Horizontal  []PayRule        `json:"horizontal" yaml:"horizontal" validate:"dive"`
	Diagonal    []PayRule        `json:"diagonal" yaml:"diagonal" validate:"dive"`
	SymbolCount []PayRule        `json:"symbol_count" yaml:"symbol_count" validate:"dive"`
	Jackpot     JackpotRule      `json:"jackpot" yaml:"jackpot"`
	Rewards     map[string]int64 `json:"rewards,omitempty" yaml:"rewards,omitempty" validate:"dive,gte=0"`
}

// WinningCombination 中奖组合
type WinningCombination struct {
	Type       LineType   `json:"type"`
	Line       int        `json:"line"` // 行号或对角线编号，计数类为-1
	Symbol     Symbol     `json:"symbol"`
	Count      int        `json:"count"`      // 实际连线长度或出现次数
	RuleCount  int        `json:"rule_count"` // 命中规则的要求数量
	Positions  []Position `json:"positions"`
	Multiplier float64    `json:"multiplier"`
	RewardKey  string     `json:"reward_key,omitempty"`
	Reward     int64      `json:"reward,omitempty"`
	Payout     int64      `json:"payout"`
}

// SlotResult 单回合结果，由配置、抽取序列和下注唯一确定
type SlotResult struct {
	Grid                [][]Symbol           `json:"grid"` // [row][reel]
	Wager               int64                `json:"wager"`
	IsWin               bool                 `json:"is_win"`
	Payout              int64                `json:"payout"`
	WinningCombinations []WinningCombination `json:"winning_combinations"`
	HasJackpot          bool                 `json:"has_jackpot"`
}

// RandomSource 随机数来源，返回[0,1)
type RandomSource interface {
	Next() float64
}
