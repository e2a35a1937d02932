package models

import (
	"time"
)

// GameRound 回合审计记录
// 揭示后的服务端种子与客户端种子足以让玩家复算结果
type GameRound struct {
	BaseModel
	RoundID       string     `gorm:"uniqueIndex;size:64;not null" json:"round_id"`
	TransactionID string     `gorm:"size:64;index" json:"transaction_id"`
	PlayerID      string     `gorm:"size:64;not null;index" json:"player_id"`
	SessionID     string     `gorm:"size:64" json:"session_id"`
	StudioID      string     `gorm:"size:64" json:"studio_id"`
	GameID        string     `gorm:"size:64" json:"game_id"`
	Currency      string     `gorm:"size:16" json:"currency"`
	Wager         int64      `gorm:"not null" json:"wager"`
	Payout        int64      `gorm:"default:0" json:"payout"`
	State         string     `gorm:"size:20;not null;index" json:"state"`
	CommitHash    string     `gorm:"size:64" json:"commit_hash"`
	ServerSeed    string     `gorm:"size:128" json:"server_seed,omitempty"`
	ClientSeed    string     `gorm:"size:256" json:"client_seed"`
	Draws         int        `gorm:"default:0" json:"draws"`
	HasJackpot    bool       `gorm:"default:false" json:"has_jackpot"`
	Result        JSONMap    `gorm:"type:json" json:"result,omitempty"`
	Error         string     `gorm:"size:1000" json:"error,omitempty"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// TableName 指定表名
func (GameRound) TableName() string {
	return "game_rounds"
}

// IsTerminal 是否已到终态
func (r *GameRound) IsTerminal() bool {
	return r.State == "settled" || r.State == "failed"
}

// SettlementIssue 待对账问题：已扣款但回合失败
type SettlementIssue struct {
	BaseModel
	RoundID       string     `gorm:"size:64;not null;index" json:"round_id"`
	TransactionID string     `gorm:"size:64;not null" json:"transaction_id"`
	PlayerID      string     `gorm:"size:64;not null;index" json:"player_id"`
	Currency      string     `gorm:"size:16" json:"currency"`
	Wager         int64      `json:"wager"`
	Payout        int64      `json:"payout"` // 已算出但未派发的金额，未算出为0
	Stage         string     `gorm:"size:32" json:"stage"`
	Error         string     `gorm:"size:1000" json:"error"`
	Resolved      bool       `gorm:"default:false;index" json:"resolved"`
	ResolvedBy    string     `gorm:"size:64" json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Note          string     `gorm:"size:500" json:"note,omitempty"`
}

// TableName 指定表名
func (SettlementIssue) TableName() string {
	return "settlement_issues"
}
