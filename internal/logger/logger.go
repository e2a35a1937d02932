package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfunc/fair-slot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *zap.Logger
	once   sync.Once
	mu     sync.RWMutex

	// 全局级别，配置热更新时调整
	level = zap.NewAtomicLevel()

	// 模块日志器
	moduleLoggers = make(map[string]*zap.Logger)
)

// Init 初始化日志系统
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		level.SetLevel(parseLevel(cfg.Level))
		var l *zap.Logger
		l, err = build(cfg, level)
		if err != nil {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		logger = l
		for module, levelStr := range cfg.Modules {
			moduleLoggers[module] = l.Named(module).WithOptions(
				zap.IncreaseLevel(parseLevel(levelStr)),
			)
		}
	})
	return err
}

// New 按配置构建日志器（stdout / 轮转文件 / 独立错误文件）
func New(cfg *config.LogConfig) (*zap.Logger, error) {
	return build(cfg, zap.NewAtomicLevelAt(parseLevel(cfg.Level)))
}

// SetLevel 调整Init创建的日志器级别
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// Level 当前全局级别
func Level() zapcore.Level {
	return level.Level()
}

func build(cfg *config.LogConfig, level zap.AtomicLevel) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.File.Path, 0755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}

		cores = append(cores,
			zapcore.NewCore(encoder, zapcore.AddSync(rotatingWriter(cfg.File, cfg.File.Filename)), level),
			// 错误日志单独落盘，方便对账排查
			zapcore.NewCore(encoder, zapcore.AddSync(rotatingWriter(cfg.File, "error.log")), zapcore.ErrorLevel),
		)
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func rotatingWriter(cfg config.LogFileConfig, filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Path, filename),
		MaxSize:    cfg.MaxSize, // MB
		MaxAge:     cfg.MaxAge,  // days
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// parseLevel 解析日志级别
func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger 获取日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		// 未初始化时使用默认配置
		defaultLogger, _ := zap.NewProduction()
		return defaultLogger
	}
	return logger
}

// WithModule 获取模块日志器，未单独配置级别的模块共享全局级别
func WithModule(module string) *zap.Logger {
	mu.RLock()
	if moduleLogger, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return moduleLogger
	}
	mu.RUnlock()
	return GetLogger().Named(module)
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogRequest 记录请求日志
func LogRequest(log *zap.Logger, method, path string, statusCode int, latency time.Duration, clientIP string) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", statusCode),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	}
	switch {
	case statusCode >= 500:
		log.Error("request", fields...)
	case statusCode >= 400:
		log.Warn("request", fields...)
	default:
		log.Info("request", fields...)
	}
}

// LogPanic 记录panic日志
func LogPanic(log *zap.Logger, recovered interface{}, stack []byte) {
	log.Error("panic recovered",
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	)
}

// LogRoundEvent 记录回合事件
func LogRoundEvent(log *zap.Logger, event, roundID, playerID string, fields ...zap.Field) {
	log.Info("round_event", append([]zap.Field{
		zap.String("event", event),
		zap.String("round_id", roundID),
		zap.String("player_id", playerID),
	}, fields...)...)
}

// LogSettlementIssue 记录结算不一致（扣款后回合失败）
func LogSettlementIssue(log *zap.Logger, roundID, transactionID, playerID string, wager int64, err error) {
	log.Error("settlement_inconsistency",
		zap.String("round_id", roundID),
		zap.String("transaction_id", transactionID),
		zap.String("player_id", playerID),
		zap.Int64("wager", wager),
		zap.Error(err),
	)
}

// LogDatabaseOperation 记录数据库操作
func LogDatabaseOperation(operation string, table string, duration time.Duration, err error) {
	log := WithModule("database")
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("table", table),
		zap.Duration("duration", duration),
	}
	if err != nil {
		log.Error("database_operation_failed", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("database_operation", fields...)
}
