package adapter

import "context"

// PlayerContext 已解析的玩家身份，每个请求解析一次，不缓存
type PlayerContext struct {
	PlayerID  string            `json:"player_id"`
	SessionID string            `json:"session_id"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Complete 玩家ID和会话ID都存在
func (p *PlayerContext) Complete() bool {
	return p != nil && p.PlayerID != "" && p.SessionID != ""
}

// PlayerQuery 玩家解析请求
type PlayerQuery struct {
	Token  string
	Params map[string]string
}

// PlayerProvider 玩家身份解析
type PlayerProvider interface {
	Resolve(ctx context.Context, query *PlayerQuery) (*PlayerContext, error)
}

// BalanceRequest 余额查询请求
type BalanceRequest struct {
	Player   PlayerContext
	Currency string
}

// BalanceResponse 余额查询结果
type BalanceResponse struct {
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

// PaymentRequest 扣款/派彩请求，(TransactionID, RoundID) 为幂等键
type PaymentRequest struct {
	Player        PlayerContext
	Currency      string
	Amount        int64
	TransactionID string
	RoundID       string
	GameID        string
}

// PaymentResponse 扣款/派彩结果
type PaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Currency      string `json:"currency"`
	Balance       int64  `json:"balance"`
}

// PaymentsAdapter 外部账本
type PaymentsAdapter interface {
	Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error)
	Debit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
	Credit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
}
