package slot

import (
	"github.com/wfunc/fair-slot/internal/errors"
)

// RTPStatistics 模拟统计，只用于评估配置，不参与任何回合结果
type RTPStatistics struct {
	Spins        int              `json:"spins"`
	TotalBet     int64            `json:"total_bet"`
	TotalWin     int64            `json:"total_win"`
	RTP          float64          `json:"rtp"`
	HitFrequency float64          `json:"hit_frequency"`
	Wins         int              `json:"wins"`
	Jackpots     int              `json:"jackpots"`
	MaxPayout    int64            `json:"max_payout"`
	ByType       map[LineType]int `json:"by_type"`
}

// CalculateRTP 计算返奖率
func CalculateRTP(totalWin, totalBet int64) float64 {
	if totalBet == 0 {
		return 0
	}
	return float64(totalWin) / float64(totalBet)
}

// SimulateRTP 用给定随机源连续旋转spins次
// 随机源可以是由种子派生的确定性序列，相同输入得到相同统计
func (e *ResultEngine) SimulateRTP(rng RandomSource, wager int64, spins int) (*RTPStatistics, error) {
	if spins <= 0 {
		return nil, errors.Newf(errors.ErrInvalidParam, "spins=%d", spins)
	}

	stats := &RTPStatistics{ByType: make(map[LineType]int)}
	for i := 0; i < spins; i++ {
		result, err := e.Spin(rng, wager)
		if err != nil {
			return nil, err
		}
		stats.record(result)
	}

	stats.RTP = CalculateRTP(stats.TotalWin, stats.TotalBet)
	stats.HitFrequency = float64(stats.Wins) / float64(stats.Spins)
	return stats, nil
}

func (s *RTPStatistics) record(result *SlotResult) {
	s.Spins++
	s.TotalBet += result.Wager
	s.TotalWin += result.Payout
	if result.IsWin {
		s.Wins++
	}
	if result.HasJackpot {
		s.Jackpots++
	}
	if result.Payout > s.MaxPayout {
		s.MaxPayout = result.Payout
	}
	for _, combo := range result.WinningCombinations {
		s.ByType[combo.Type]++
	}
}
