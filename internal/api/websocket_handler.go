package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/fair-slot/internal/config"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/middleware"
	ws "github.com/wfunc/fair-slot/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	opts     ws.ClientOptions
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	readSize, writeSize := cfg.ReadBufferSize, cfg.WriteBufferSize
	if readSize <= 0 {
		readSize = 1024
	}
	if writeSize <= 0 {
		writeSize = 1024
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readSize,
			WriteBufferSize: writeSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		opts:   ws.OptionsFromConfig(cfg),
		logger: logger,
	}
}

// Connect 建立回合推送连接，需已认证
func (h *WebSocketHandler) Connect(c *gin.Context) {
	player, ok := middleware.GetPlayer(c)
	if !ok {
		middleware.AbortWithError(c, errors.New(errors.ErrPlayerUnauthorized))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("player_id", player.PlayerID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, player.PlayerID, player.SessionID, h.opts)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("player_id", player.PlayerID),
		zap.String("session_id", player.SessionID))
}

// OnlineCount 在线人数
func (h *WebSocketHandler) OnlineCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online_count":   h.hub.OnlineCount(),
		"online_players": h.hub.OnlinePlayers(),
	})
}
