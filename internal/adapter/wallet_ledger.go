package adapter

import (
	"context"
	"strings"

	"github.com/wfunc/fair-slot/internal/config"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/metrics"
	"github.com/wfunc/fair-slot/internal/models"
	"github.com/wfunc/fair-slot/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WalletLedger 基于本地钱包表的账本实现
type WalletLedger struct {
	db             *gorm.DB
	wallets        repository.WalletRepository
	entries        repository.LedgerEntryRepository
	fallbacks      map[string]string
	initialBalance int64
	logger         *zap.Logger
}

// NewWalletLedger 创建钱包账本
func NewWalletLedger(db *gorm.DB, cfg config.LedgerConfig, logger *zap.Logger) *WalletLedger {
	if logger == nil {
		logger = zap.NewNop()
	}

	// viper会把map的key转成小写
	fallbacks := make(map[string]string, len(cfg.CurrencyFallbacks))
	for from, to := range cfg.CurrencyFallbacks {
		fallbacks[strings.ToUpper(from)] = strings.ToUpper(to)
	}

	return &WalletLedger{
		db:             db,
		wallets:        repository.NewWalletRepository(db),
		entries:        repository.NewLedgerEntryRepository(db),
		fallbacks:      fallbacks,
		initialBalance: cfg.InitialBalance,
		logger:         logger,
	}
}

// Balance 查询余额，币种钱包不存在时按回退币种查询
func (l *WalletLedger) Balance(ctx context.Context, req *BalanceRequest) (*BalanceResponse, error) {
	if req == nil || req.Player.PlayerID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "缺少玩家")
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	resolved := l.resolveCurrency(ctx, l.wallets, req.Player.PlayerID, currency)
	wallet, err := l.wallets.Find(ctx, req.Player.PlayerID, resolved)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			l.observe("balance", nil)
			return &BalanceResponse{Currency: resolved, Balance: l.initialBalance}, nil
		}
		l.observe("balance", err)
		return nil, ledgerError(err)
	}

	l.observe("balance", nil)
	return &BalanceResponse{Currency: resolved, Balance: wallet.Balance}, nil
}

// Debit 扣款，相同幂等键重复调用返回首次结果
func (l *WalletLedger) Debit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	resp, err := l.apply(ctx, models.EntryTypeDebit, req)
	l.observe("debit", err)
	return resp, err
}

// Credit 派彩，相同幂等键重复调用返回首次结果
func (l *WalletLedger) Credit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	resp, err := l.apply(ctx, models.EntryTypeCredit, req)
	l.observe("credit", err)
	return resp, err
}

// Deposit 充值
func (l *WalletLedger) Deposit(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	resp, err := l.apply(ctx, models.EntryTypeDeposit, req)
	l.observe("deposit", err)
	return resp, err
}

func (l *WalletLedger) apply(ctx context.Context, entryType string, req *PaymentRequest) (*PaymentResponse, error) {
	if err := validatePayment(req); err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	var resp *PaymentResponse
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallets := l.wallets.WithTx(tx)
		entries := l.entries.WithTx(tx)

		existing, err := entries.FindByKey(ctx, entryType, req.TransactionID, req.RoundID)
		if err == nil {
			l.logger.Info("重复的账本请求，返回已有流水",
				zap.String("type", entryType),
				zap.String("transaction_id", req.TransactionID),
				zap.String("round_id", req.RoundID),
			)
			resp = &PaymentResponse{
				TransactionID: existing.TransactionID,
				Currency:      existing.Currency,
				Balance:       existing.AfterBalance,
			}
			return nil
		}
		if !errors.Is(err, errors.ErrNotFound) {
			return err
		}

		// 充值直接入账到指定币种
		resolved := currency
		if entryType != models.EntryTypeDeposit {
			resolved = l.resolveCurrency(ctx, wallets, req.Player.PlayerID, currency)
		}
		wallet, err := l.ensureWallet(ctx, wallets, req.Player.PlayerID, resolved)
		if err != nil {
			return err
		}

		before := wallet.Balance
		after := before
		if entryType == models.EntryTypeDebit {
			if err := wallets.DeductBalance(ctx, wallet.ID, req.Amount); err != nil {
				return err
			}
			after -= req.Amount
		} else {
			if err := wallets.AddBalance(ctx, wallet.ID, req.Amount); err != nil {
				return err
			}
			after += req.Amount
		}

		entry := &models.LedgerEntry{
			PlayerID:      req.Player.PlayerID,
			Currency:      resolved,
			Type:          entryType,
			TransactionID: req.TransactionID,
			RoundID:       req.RoundID,
			GameID:        req.GameID,
			Amount:        req.Amount,
			BeforeBalance: before,
			AfterBalance:  after,
			Metadata:      models.JSONMap{"session_id": req.Player.SessionID},
		}
		if err := entries.Create(ctx, entry); err != nil {
			return err
		}

		resp = &PaymentResponse{
			TransactionID: req.TransactionID,
			Currency:      resolved,
			Balance:       after,
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("账本操作失败",
			zap.String("type", entryType),
			zap.String("player_id", req.Player.PlayerID),
			zap.String("transaction_id", req.TransactionID),
			zap.String("round_id", req.RoundID),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, ledgerError(err)
	}
	return resp, nil
}

// resolveCurrency 币种钱包不存在且配置了回退币种时使用回退币种
func (l *WalletLedger) resolveCurrency(ctx context.Context, wallets repository.WalletRepository, playerID, currency string) string {
	fallback, ok := l.fallbacks[currency]
	if !ok {
		return currency
	}
	if _, err := wallets.Find(ctx, playerID, currency); err == nil {
		return currency
	}
	return fallback
}

// ensureWallet 锁定钱包，不存在时按初始余额创建
func (l *WalletLedger) ensureWallet(ctx context.Context, wallets repository.WalletRepository, playerID, currency string) (*models.Wallet, error) {
	wallet, err := wallets.LockForUpdate(ctx, playerID, currency)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	wallet, err = wallets.FindOrCreate(ctx, playerID, currency)
	if err != nil {
		return nil, err
	}
	if l.initialBalance > 0 && wallet.Balance == 0 && wallet.TotalCredit == 0 {
		if err := wallets.AddBalance(ctx, wallet.ID, l.initialBalance); err != nil {
			return nil, err
		}
		wallet.Balance = l.initialBalance
		wallet.TotalCredit = l.initialBalance
	}
	return wallet, nil
}

func (l *WalletLedger) observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, errors.ErrInsufficientFunds) {
			result = "insufficient_funds"
		}
	}
	metrics.LedgerOperations.WithLabelValues(operation, result).Inc()
}

func validatePayment(req *PaymentRequest) error {
	if req == nil {
		return errors.New(errors.ErrInvalidParam, "空请求")
	}
	if req.Player.PlayerID == "" {
		return errors.New(errors.ErrInvalidParam, "缺少玩家")
	}
	if req.TransactionID == "" || req.RoundID == "" {
		return errors.New(errors.ErrInvalidParam, "缺少transaction_id或round_id")
	}
	if req.Amount <= 0 {
		return errors.Newf(errors.ErrInvalidParam, "金额必须为正数: %d", req.Amount)
	}
	return nil
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return "", errors.New(errors.ErrCurrencyNotSupported, "缺少币种")
	}
	return currency, nil
}

// ledgerError 业务错误原样返回，其余统一为ErrLedger
func ledgerError(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrInsufficientFunds, errors.ErrCurrencyNotSupported, errors.ErrInvalidParam, errors.ErrLedger:
		return err
	}
	return errors.New(errors.ErrLedger, err.Error()).WithCause(err)
}
