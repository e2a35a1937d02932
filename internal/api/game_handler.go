package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/game"
	"github.com/wfunc/fair-slot/internal/middleware"
	"go.uber.org/zap"
)

// GameHandler 游戏处理器
type GameHandler struct {
	orchestrator *game.RoundOrchestrator
	logger       *zap.Logger
}

// NewGameHandler 创建游戏处理器
func NewGameHandler(orchestrator *game.RoundOrchestrator, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// InitBody 进入游戏请求体
type InitBody struct {
	Currency string `json:"currency"`
}

// PlayBody 下注请求体
type PlayBody struct {
	ClientSeed string `json:"client_seed" binding:"required"`
	Wager      int64  `json:"wager" binding:"required"`
	Currency   string `json:"currency"`
	CommitHash string `json:"commit_hash"`
}

// Init 进入游戏
// @Summary 进入游戏
// @Description 返回游戏配置与玩家余额
// @Tags Game
// @Accept json
// @Produce json
// @Param studio_id path string true "工作室ID"
// @Param game_id path string true "游戏ID"
// @Param request body InitBody false "币种"
// @Success 200 {object} game.InitResponse
// @Router /api/v1/games/{studio_id}/{game_id}/init [post]
func (h *GameHandler) Init(c *gin.Context) {
	var body InitBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			middleware.AbortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
			return
		}
	}

	resp, err := h.orchestrator.Init(c.Request.Context(), &game.InitRequest{
		StudioID: c.Param("studio_id"),
		GameID:   c.Param("game_id"),
		Query:    middleware.BuildPlayerQuery(c),
		Currency: body.Currency,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Commit 预先承诺服务端种子
// @Summary 承诺服务端种子
// @Description 返回种子哈希，种子在下一局结算后揭示
// @Tags Fairness
// @Produce json
// @Success 200 {object} game.CommitResponse
// @Router /api/v1/games/{studio_id}/{game_id}/commit [post]
func (h *GameHandler) Commit(c *gin.Context) {
	resp, err := h.orchestrator.CommitServerSeed(c.Request.Context(), &game.CommitRequest{
		StudioID: c.Param("studio_id"),
		GameID:   c.Param("game_id"),
		Query:    middleware.BuildPlayerQuery(c),
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Play 下注并结算一局
// @Summary 下注
// @Tags Game
// @Accept json
// @Produce json
// @Param request body PlayBody true "下注请求"
// @Success 200 {object} game.RoundResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 402 {object} errors.ErrorResponse
// @Router /api/v1/games/{studio_id}/{game_id}/play [post]
func (h *GameHandler) Play(c *gin.Context) {
	var body PlayBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	result, err := h.orchestrator.Play(c.Request.Context(), &game.PlayRequest{
		StudioID:   c.Param("studio_id"),
		GameID:     c.Param("game_id"),
		Query:      middleware.BuildPlayerQuery(c),
		Currency:   body.Currency,
		Wager:      body.Wager,
		ClientSeed: body.ClientSeed,
		CommitHash: body.CommitHash,
	})
	if err != nil {
		if errors.GetCode(err) == errors.ErrSettlementInconsistency || errors.GetCode(err) == errors.ErrRoundStateError {
			h.logger.Error("回合结算失败",
				zap.String("studio_id", c.Param("studio_id")),
				zap.String("game_id", c.Param("game_id")),
				zap.Error(err))
		}
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Verify 校验服务端种子
// @Summary 校验公平性
// @Tags Fairness
// @Accept json
// @Produce json
// @Param request body game.VerifyRequest true "校验请求"
// @Success 200 {object} game.VerifyResponse
// @Router /api/v1/fairness/verify [post]
func (h *GameHandler) Verify(c *gin.Context) {
	var req game.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}
	c.JSON(http.StatusOK, h.orchestrator.VerifySeed(&req))
}
