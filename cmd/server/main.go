package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/fair-slot/internal/adapter"
	"github.com/wfunc/fair-slot/internal/api"
	"github.com/wfunc/fair-slot/internal/config"
	"github.com/wfunc/fair-slot/internal/database"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/fairness"
	"github.com/wfunc/fair-slot/internal/game"
	"github.com/wfunc/fair-slot/internal/game/slot"
	"github.com/wfunc/fair-slot/internal/logger"
	"github.com/wfunc/fair-slot/internal/repository"
	"github.com/wfunc/fair-slot/internal/utils"
	ws "github.com/wfunc/fair-slot/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfgMu  sync.RWMutex
	cfg    *config.Config
	logger *zap.Logger

	db           *gorm.DB
	coordinator  *fairness.Coordinator
	orchestrator *game.RoundOrchestrator
	hub          *ws.Hub
	router       *api.Router
	httpServer   *http.Server

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动结算服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}
	s.startServices()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})
	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return err
	}

	definition, err := s.loadDefinition()
	if err != nil {
		return err
	}
	engine, err := slot.NewSlotRoundEngine(definition.Config)
	if err != nil {
		return err
	}

	// 账本与玩家解析
	if s.cfg.Ledger.Type != "" && s.cfg.Ledger.Type != "wallet" {
		return errors.Newf(errors.ErrConfigValidate, "不支持的账本类型: %s", s.cfg.Ledger.Type)
	}
	jwtManager := utils.NewJWTManager(s.cfg.Security.JWT.Secret, s.cfg.Security.JWT.Issuer,
		time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour)
	players := adapter.NewJWTPlayerProvider(jwtManager)
	ledger := adapter.NewWalletLedger(s.db, s.cfg.Ledger, logger.WithModule("ledger"))

	// 回合存储
	var repoOpts []repository.ManagerOption
	if s.cfg.Cache.Enabled {
		repoOpts = append(repoOpts, repository.WithRoundCache(s.cfg.Cache.Size, s.cfg.Cache.TTL))
	}
	repos := repository.NewManager(s.db, repoOpts...)
	rounds := repos.Round()
	issues := repos.SettlementIssue()

	s.coordinator = fairness.NewCoordinator(
		fairness.NewMemoryCommitmentStore(s.cfg.Fairness.Shards),
		logger.WithModule("fairness"),
	)

	bridge := game.NewSessionBridge(definition, players, ledger, logger.WithModule("game"))
	s.orchestrator = game.NewRoundOrchestrator(bridge, s.coordinator, engine, rounds, issues,
		logger.WithModule("game"), gameOptions(s.cfg.Game))

	if s.cfg.WebSocket.Enabled {
		s.hub = ws.NewHub(logger.WithModule("websocket"))
		s.orchestrator.OnRoundSettled(s.hub.PublishRound)
	}

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = api.NewRouter(api.Dependencies{
		DB:           s.db,
		Orchestrator: s.orchestrator,
		Rounds:       rounds,
		Issues:       issues,
		Hub:          s.hub,
		Config:       s.cfg,
		Logger:       logger.WithModule("api"),
	})
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("所有组件初始化完成",
		zap.String("studio_id", definition.StudioID),
		zap.String("game_id", definition.GameID),
	)
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database, logger.WithModule("database")); err != nil {
		return err
	}
	s.db = database.GetDB()

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(s.db, s.logger); err != nil {
			return err
		}
	}

	if !database.IsConnected(s.db) {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}
	return nil
}

// loadDefinition 加载游戏定义，未配置文件时使用默认配置
func (s *Server) loadDefinition() (*game.Definition, error) {
	if s.cfg.Game.DefinitionFile == "" {
		s.logger.Warn("未配置游戏定义文件，使用默认配置")
		definition := game.DefaultDefinition(s.cfg.Game.StudioID, s.cfg.Game.GameID)
		return definition, definition.Validate()
	}
	return game.LoadDefinition(s.cfg.Game.DefinitionFile)
}

// startServices 启动服务
func (s *Server) startServices() {
	if s.hub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Run(s.ctx)
		}()
	}

	// 清理长期未使用的承诺
	s.coordinator.StartCleanupTask(s.ctx, s.cfg.Fairness.CleanupInterval, s.cfg.Fairness.CommitmentTTL)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("HTTP服务启动", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			s.requestShutdown()
		}
	}()
}

func (s *Server) requestShutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
		s.requestShutdown()
	case <-s.shutdownCh:
	}
}

// Shutdown 优雅关闭服务器，进行中的回合在超时内完成
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.currentConfig().Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// reloadConfig 在配置监听协程中调用
// 日志级别、下注限额、默认币种和管理员令牌立即生效，其余配置需要重启
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.cfgMu.Lock()
	old := s.cfg
	s.cfg = newCfg
	s.cfgMu.Unlock()

	logger.SetLevel(newCfg.Log.Level)
	if s.orchestrator != nil {
		s.orchestrator.UpdateOptions(gameOptions(newCfg.Game))
	}
	if s.router != nil {
		s.router.SetAdminToken(newCfg.Security.AdminToken)
	}

	if sections := restartRequired(old, newCfg); len(sections) > 0 {
		s.logger.Warn("以下配置需要重启后生效", zap.Strings("sections", sections))
	}
	s.logger.Info("配置重新加载完成",
		zap.String("log_level", newCfg.Log.Level),
		zap.Int64("min_bet", newCfg.Game.MinBet),
		zap.Int64("max_bet", newCfg.Game.MaxBet),
	)
}

func (s *Server) currentConfig() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

func gameOptions(cfg config.GameConfig) game.Options {
	return game.Options{
		DefaultCurrency: cfg.DefaultCurrency,
		MinBet:          cfg.MinBet,
		MaxBet:          cfg.MaxBet,
	}
}

// restartRequired 返回变更了但运行中无法替换的配置段
func restartRequired(old, cur *config.Config) []string {
	if old == nil || cur == nil {
		return nil
	}
	var sections []string
	if old.Server != cur.Server {
		sections = append(sections, "server")
	}
	if old.Database != cur.Database {
		sections = append(sections, "database")
	}
	if old.WebSocket != cur.WebSocket {
		sections = append(sections, "websocket")
	}
	if old.Game.StudioID != cur.Game.StudioID || old.Game.GameID != cur.Game.GameID ||
		old.Game.DefinitionFile != cur.Game.DefinitionFile {
		sections = append(sections, "game")
	}
	if old.Fairness != cur.Fairness {
		sections = append(sections, "fairness")
	}
	if old.Ledger.Type != cur.Ledger.Type || old.Ledger.InitialBalance != cur.Ledger.InitialBalance ||
		!reflect.DeepEqual(old.Ledger.CurrencyFallbacks, cur.Ledger.CurrencyFallbacks) {
		sections = append(sections, "ledger")
	}
	if old.Security.JWT != cur.Security.JWT {
		sections = append(sections, "security.jwt")
	}
	if old.Cache != cur.Cache {
		sections = append(sections, "cache")
	}
	if old.Metrics != cur.Metrics {
		sections = append(sections, "metrics")
	}
	return sections
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("可验证公平老虎机结算服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
}
