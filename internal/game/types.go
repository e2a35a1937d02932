package game

import (
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/game/slot"
)

// InitRequest 进入游戏请求
type InitRequest struct {
	StudioID string
	GameID   string
	Query    *adapter.PlayerQuery
	Currency string
}

// InitResponse 进入游戏响应
type InitResponse struct {
	PlayerID string                   `json:"player_id"`
	Config   *slot.SlotConfig         `json:"config"`
	Balance  *adapter.BalanceResponse `json:"balance"`
}

// CommitRequest 预先承诺服务端种子
type CommitRequest struct {
	StudioID string
	GameID   string
	Query    *adapter.PlayerQuery
}

// CommitResponse 承诺结果，只含哈希
type CommitResponse struct {
	PlayerID   string `json:"player_id"`
	CommitHash string `json:"commit_hash"`
}

// PlayRequest 一局游戏请求
type PlayRequest struct {
	StudioID   string
	GameID     string
	Query      *adapter.PlayerQuery
	Currency   string
	Wager      int64
	ClientSeed string
	// CommitHash 非空时使用已公布的承诺，否则本局重新承诺
	CommitHash string
}

// RoundResult 一局的结算结果
type RoundResult struct {
	RoundID       string           `json:"round_id"`
	TransactionID string           `json:"transaction_id"`
	PlayerID      string           `json:"player_id"`
	State         RoundState       `json:"state"`
	Currency      string           `json:"currency"`
	Wager         int64            `json:"wager"`
	Payout        int64            `json:"payout"`
	CommitHash    string           `json:"commit_hash"`
	ServerSeed    string           `json:"server_seed"`
	ClientSeed    string           `json:"client_seed"`
	Draws         int              `json:"draws"`
	Outcome       *slot.Outcome    `json:"-"`
	Result        *slot.SlotResult `json:"result"`
	Balance       int64            `json:"balance"`
}

// VerifyRequest 玩家侧校验请求
type VerifyRequest struct {
	ServerSeed string  `json:"server_seed" binding:"required"`
	ClientSeed string  `json:"client_seed" binding:"required"`
	Draw       float64 `json:"draw"`
	CommitHash string  `json:"commit_hash,omitempty"`
	// Replay 需要重放的抽取次数，通常为回合记录中的draws
	Replay int `json:"replay,omitempty" binding:"omitempty,min=0,max=1000"`
}

// VerifyResponse 校验结果
type VerifyResponse struct {
	Valid       bool      `json:"valid"`
	DrawMatches bool      `json:"draw_matches"`
	HashMatches *bool     `json:"hash_matches,omitempty"`
	FirstDraw   float64   `json:"first_draw"`
	CommitHash  string    `json:"commit_hash"`
	Draws       []float64 `json:"draws,omitempty"`
}

// maxReplayDraws 单次校验最多重放的抽取次数
const maxReplayDraws = 1000

// maxClientSeedLength 客户端种子长度上限，与回合表字段一致
const maxClientSeedLength = 256
