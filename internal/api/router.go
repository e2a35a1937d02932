package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/fair-slot/internal/config"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/game"
	"github.com/wfunc/fair-slot/internal/middleware"
	"github.com/wfunc/fair-slot/internal/repository"
	ws "github.com/wfunc/fair-slot/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB           *gorm.DB
	Orchestrator *game.RoundOrchestrator
	Rounds       repository.RoundRepository
	Issues       repository.SettlementIssueRepository
	Hub          *ws.Hub
	Config       *config.Config
	Logger       *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	cfg            *config.Config
	gameHandler    *GameHandler
	roundHandler   *RoundHandler
	adminHandler   *AdminHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Dependencies) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log))
	if cfg.Metrics.Enabled {
		engine.Use(middleware.Metrics())
	}

	router := &Router{
		engine:         engine,
		db:             deps.DB,
		cfg:            cfg,
		gameHandler:    NewGameHandler(deps.Orchestrator, log),
		roundHandler:   NewRoundHandler(deps.Rounds),
		adminHandler:   NewAdminHandler(deps.Issues, log),
		authMiddleware: middleware.NewAuthMiddleware(deps.Orchestrator.Bridge(), cfg.Security.AdminToken),
		log:            log,
	}
	if deps.Hub != nil && cfg.WebSocket.Enabled {
		router.wsHandler = NewWebSocketHandler(deps.Hub, cfg.WebSocket, log)
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)
	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		// 玩家身份由编排器通过PlayerProvider解析
		games := v1.Group("/games/:studio_id/:game_id")
		{
			games.POST("/init", r.gameHandler.Init)
			games.POST("/commit", r.gameHandler.Commit)
			games.POST("/play", r.gameHandler.Play)
		}

		v1.POST("/fairness/verify", r.gameHandler.Verify)

		rounds := v1.Group("/rounds")
		rounds.Use(r.authMiddleware.RequirePlayer())
		{
			rounds.GET("/:round_id", r.roundHandler.GetRound)
		}

		admin := v1.Group("/admin")
		admin.Use(r.authMiddleware.RequireAdmin())
		{
			admin.GET("/settlement-issues", r.adminHandler.ListIssues)
			admin.POST("/settlement-issues/:id/resolve", r.adminHandler.ResolveIssue)
			if r.wsHandler != nil {
				admin.GET("/online", r.wsHandler.OnlineCount)
			}
		}
	}

	if r.wsHandler != nil {
		path := r.cfg.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		r.engine.GET(path, r.authMiddleware.RequirePlayer(), r.wsHandler.Connect)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, errors.New(errors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			r.log.Warn("健康检查失败", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "数据库连接失败",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// SetAdminToken 热更新管理员令牌
func (r *Router) SetAdminToken(token string) {
	r.authMiddleware.SetAdminToken(token)
}

// Handler 返回http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
