package game

import (
	"context"

	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/errors"
	"go.uber.org/zap"
)

// SessionBridge 连接传输层与玩家解析、账本适配器
// 本身不保存余额，也不做对账
type SessionBridge struct {
	definition *Definition
	players    adapter.PlayerProvider
	payments   adapter.PaymentsAdapter
	logger     *zap.Logger
}

// NewSessionBridge 创建会话桥
func NewSessionBridge(definition *Definition, players adapter.PlayerProvider, payments adapter.PaymentsAdapter, logger *zap.Logger) *SessionBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionBridge{
		definition: definition,
		players:    players,
		payments:   payments,
		logger:     logger,
	}
}

// Definition 当前游戏定义
func (b *SessionBridge) Definition() *Definition {
	return b.definition
}

// EnsureGame 请求的游戏必须是已配置的游戏
func (b *SessionBridge) EnsureGame(studioID, gameID string) error {
	if !b.definition.Matches(studioID, gameID) {
		b.logger.Warn("请求了未配置的游戏",
			zap.String("studio_id", studioID),
			zap.String("game_id", gameID),
		)
		return errors.Newf(errors.ErrUnsupportedGame, "%s/%s", studioID, gameID)
	}
	return nil
}

// ResolvePlayer 解析玩家，身份不完整视为未授权，其他错误原样返回
func (b *SessionBridge) ResolvePlayer(ctx context.Context, query *adapter.PlayerQuery) (*adapter.PlayerContext, error) {
	player, err := b.players.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if !player.Complete() {
		return nil, errors.New(errors.ErrPlayerUnauthorized, "缺少player_id或session_id")
	}
	return player, nil
}

// Resolve 实现adapter.PlayerProvider，与编排器使用同一解析规则
func (b *SessionBridge) Resolve(ctx context.Context, query *adapter.PlayerQuery) (*adapter.PlayerContext, error) {
	return b.ResolvePlayer(ctx, query)
}

// GetBalance 查询余额
func (b *SessionBridge) GetBalance(ctx context.Context, player *adapter.PlayerContext, currency string) (*adapter.BalanceResponse, error) {
	return b.payments.Balance(ctx, &adapter.BalanceRequest{
		Player:   *player,
		Currency: currency,
	})
}

// Debit 扣款
func (b *SessionBridge) Debit(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	return b.payments.Debit(ctx, req)
}

// Credit 派彩
func (b *SessionBridge) Credit(ctx context.Context, req *adapter.PaymentRequest) (*adapter.PaymentResponse, error) {
	return b.payments.Credit(ctx, req)
}

// Init 校验游戏、解析玩家并返回配置与余额
func (b *SessionBridge) Init(ctx context.Context, req *InitRequest) (*InitResponse, error) {
	if err := b.EnsureGame(req.StudioID, req.GameID); err != nil {
		return nil, err
	}
	player, err := b.ResolvePlayer(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	balance, err := b.GetBalance(ctx, player, req.Currency)
	if err != nil {
		return nil, err
	}
	return &InitResponse{
		PlayerID: player.PlayerID,
		Config:   b.definition.Config,
		Balance:  balance,
	}, nil
}
