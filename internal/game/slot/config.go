package slot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/wfunc/fair-slot/internal/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// GetDefaultConfig 获取默认配置（3x5水果机）
func GetDefaultConfig() *SlotConfig {
	return &SlotConfig{
		Rows:  3,
		Reels: 5,
		Symbols: []SymbolWeight{
			{Symbol: SymbolCherry, Weight: 30},
			{Symbol: SymbolLemon, Weight: 25},
			{Symbol: SymbolOrange, Weight: 20},
			{Symbol: SymbolGrape, Weight: 15},
			{Symbol: SymbolWatermelon, Weight: 10},
			{Symbol: SymbolBar, Weight: 6},
			{Symbol: SymbolSeven, Weight: 3},
			{Symbol: SymbolDiamond, Weight: 1},
		},

		// 水平连线
		Horizontal: []PayRule{
			{Symbol: SymbolCherry, Count: 3, Multiplier: 0.5},
			{Symbol: SymbolCherry, Count: 4, Multiplier: 1},
			{Symbol: SymbolCherry, Count: 5, Multiplier: 3},
			{Symbol: SymbolLemon, Count: 3, Multiplier: 0.8},
			{Symbol: SymbolLemon, Count: 4, Multiplier: 2},
			{Symbol: SymbolLemon, Count: 5, Multiplier: 5},
			{Symbol: SymbolOrange, Count: 3, Multiplier: 1},
			{Symbol: SymbolOrange, Count: 4, Multiplier: 3},
			{Symbol: SymbolOrange, Count: 5, Multiplier: 8},
			{Symbol: SymbolGrape, Count: 3, Multiplier: 2},
			{Symbol: SymbolGrape, Count: 4, Multiplier: 5},
			{Symbol: SymbolGrape, Count: 5, Multiplier: 12},
			{Symbol: SymbolWatermelon, Count: 3, Multiplier: 3},
			{Symbol: SymbolWatermelon, Count: 4, Multiplier: 8},
			{Symbol: SymbolWatermelon, Count: 5, Multiplier: 20},
			{Symbol: SymbolBar, Count: 3, Multiplier: 5},
			{Symbol: SymbolBar, Count: 4, Multiplier: 15},
			{Symbol: SymbolBar, Count: 5, Multiplier: 40},
			{Symbol: SymbolSeven, Count: 3, Multiplier: 10},
			{Symbol: SymbolSeven, Count: 4, Multiplier: 30},
			{Symbol: SymbolSeven, Count: 5, Multiplier: 100, RewardKey: "seven_line_bonus"},
		},

		// 对角线（3x5网格对角线长度为3）
		Diagonal: []PayRule{
			{Symbol: SymbolCherry, Count: 3, Multiplier: 1},
			{Symbol: SymbolLemon, Count: 3, Multiplier: 1.5},
			{Symbol: SymbolOrange, Count: 3, Multiplier: 2},
			{Symbol: SymbolGrape, Count: 3, Multiplier: 4},
			{Symbol: SymbolWatermelon, Count: 3, Multiplier: 6},
			{Symbol: SymbolBar, Count: 3, Multiplier: 10},
			{Symbol: SymbolSeven, Count: 3, Multiplier: 20},
		},

		// 全盘计数
		SymbolCount: []PayRule{
			{Symbol: SymbolBar, Count: 5, Multiplier: 2},
			{Symbol: SymbolBar, Count: 7, Multiplier: 10},
			{Symbol: SymbolSeven, Count: 4, Multiplier: 5},
			{Symbol: SymbolSeven, Count: 6, Multiplier: 25, RewardKey: "seven_scatter_bonus"},
		},

		Jackpot: JackpotRule{Symbol: SymbolDiamond, Count: 4, Multiplier: 500},

		Rewards: map[string]int64{
			"seven_line_bonus":    1000,
			"seven_scatter_bonus": 500,
		},
	}
}

// ValidateConfig 验证配置
// 结构校验之后检查：权重非负且至少一个大于0，规则引用的符号都在权重表中，奖励键存在
func ValidateConfig(config *SlotConfig) error {
	if config == nil {
		return errors.New(errors.ErrInvalidGameConfig, "配置为空")
	}
	if err := getValidator().Struct(config); err != nil {
		return errors.Wrap(err, errors.ErrInvalidGameConfig, formatValidationError(err))
	}

	known := make(map[Symbol]bool, len(config.Symbols))
	var total float64
	for _, sw := range config.Symbols {
		if known[sw.Symbol] {
			return errors.Newf(errors.ErrInvalidGameConfig, "符号重复: %s", sw.Symbol)
		}
		known[sw.Symbol] = true
		total += sw.Weight
	}
	if total <= 0 {
		return errors.New(errors.ErrInvalidGameConfig, "至少一个符号权重大于0")
	}

	tables := []struct {
		name  string
		rules []PayRule
	}{
		{"horizontal", config.Horizontal},
		{"diagonal", config.Diagonal},
		{"symbol_count", config.SymbolCount},
	}
	for _, table := range tables {
		for i, rule := range table.rules {
			if !known[rule.Symbol] {
				return errors.Newf(errors.ErrInvalidGameConfig, "%s[%d] 引用未知符号 %s", table.name, i, rule.Symbol)
			}
			if rule.RewardKey != "" {
				if _, ok := config.Rewards[rule.RewardKey]; !ok {
					return errors.Newf(errors.ErrInvalidGameConfig, "%s[%d] 引用未知奖励 %s", table.name, i, rule.RewardKey)
				}
			}
		}
	}

	if !known[config.Jackpot.Symbol] {
		return errors.Newf(errors.ErrInvalidGameConfig, "头奖引用未知符号 %s", config.Jackpot.Symbol)
	}
	if config.Jackpot.Count > config.Rows*config.Reels {
		return errors.Newf(errors.ErrInvalidGameConfig, "头奖数量 %d 超过格子总数", config.Jackpot.Count)
	}
	return nil
}

func formatValidationError(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		parts = append(parts, fmt.Sprintf("%s: %s=%s", e.Namespace(), e.Tag(), e.Param()))
	}
	return strings.Join(parts, "; ")
}
