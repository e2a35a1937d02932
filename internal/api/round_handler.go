package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/middleware"
	"github.com/wfunc/fair-slot/internal/repository"
	"go.uber.org/zap"
)

// RoundHandler 回合查询处理器
type RoundHandler struct {
	rounds repository.RoundRepository
}

// NewRoundHandler 创建回合处理器
func NewRoundHandler(rounds repository.RoundRepository) *RoundHandler {
	return &RoundHandler{rounds: rounds}
}

// GetRound 查询回合审计记录，只能查询自己的回合
// @Summary 查询回合
// @Tags Round
// @Security Bearer
// @Produce json
// @Param round_id path string true "回合ID"
// @Success 200 {object} models.GameRound
// @Router /api/v1/rounds/{round_id} [get]
func (h *RoundHandler) GetRound(c *gin.Context) {
	player, ok := middleware.GetPlayer(c)
	if !ok {
		middleware.AbortWithError(c, errors.New(errors.ErrPlayerUnauthorized))
		return
	}

	round, err := h.rounds.FindByRoundID(c.Request.Context(), c.Param("round_id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if round.PlayerID != player.PlayerID {
		middleware.AbortWithError(c, errors.Newf(errors.ErrNotFound, "回合不存在: %s", c.Param("round_id")))
		return
	}
	// 未结算的回合不暴露服务端种子
	if !round.IsTerminal() {
		round.ServerSeed = ""
	}
	c.JSON(http.StatusOK, round)
}

// AdminHandler 对账管理处理器
type AdminHandler struct {
	issues repository.SettlementIssueRepository
	logger *zap.Logger
}

// NewAdminHandler 创建对账管理处理器
func NewAdminHandler(issues repository.SettlementIssueRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{issues: issues, logger: logger}
}

// ResolveBody 处理对账问题请求体
type ResolveBody struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
	Note       string `json:"note"`
}

// ListIssues 未处理的对账问题
func (h *AdminHandler) ListIssues(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	pagination := repository.NewPagination(page, size)

	issues, err := h.issues.ListUnresolved(c.Request.Context(), pagination)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issues":     issues,
		"pagination": pagination,
	})
}

// ResolveIssue 标记对账问题已处理
func (h *AdminHandler) ResolveIssue(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		middleware.AbortWithError(c, errors.Newf(errors.ErrInvalidParam, "无效的ID: %s", c.Param("id")))
		return
	}

	var body ResolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.AbortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	issue, err := h.issues.Resolve(c.Request.Context(), uint(id), body.ResolvedBy, body.Note)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	h.logger.Info("对账问题已处理",
		zap.Uint("id", issue.ID),
		zap.String("round_id", issue.RoundID),
		zap.String("resolved_by", body.ResolvedBy))
	c.JSON(http.StatusOK, issue)
}
