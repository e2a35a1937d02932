package websocket

import (
	"encoding/json"
	"time"

	"github.com/wfunc/fair-slot/internal/game"
	"go.uber.org/zap"
)

// RoundEvent 推送给玩家的回合结果
type RoundEvent struct {
	RoundID    string `json:"round_id"`
	State      string `json:"state"`
	Currency   string `json:"currency"`
	Wager      int64  `json:"wager"`
	Payout     int64  `json:"payout"`
	HasJackpot bool   `json:"has_jackpot"`
	Balance    int64  `json:"balance"`
	CommitHash string `json:"commit_hash"`
	ServerSeed string `json:"server_seed"`
	ClientSeed string `json:"client_seed"`
}

// PublishRound 作为回合结算回调，推送给玩家的所有连接
func (h *Hub) PublishRound(result *game.RoundResult) {
	event := RoundEvent{
		RoundID:    result.RoundID,
		State:      string(result.State),
		Currency:   result.Currency,
		Wager:      result.Wager,
		Payout:     result.Payout,
		Balance:    result.Balance,
		CommitHash: result.CommitHash,
		ServerSeed: result.ServerSeed,
		ClientSeed: result.ClientSeed,
	}
	if result.Outcome != nil {
		event.HasJackpot = result.Outcome.HasJackpot
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("序列化回合事件失败", zap.Error(err))
		return
	}

	err = h.SendToPlayer(result.PlayerID, &Message{
		Type:      MessageTypeRoundSettled,
		PlayerID:  result.PlayerID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil && err != ErrPlayerNotConnected {
		h.logger.Warn("推送回合事件失败",
			zap.String("round_id", result.RoundID),
			zap.String("player_id", result.PlayerID),
			zap.Error(err))
	}
}
