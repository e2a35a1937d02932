package models

// 账本流水类型
const (
	EntryTypeDebit   = "debit"
	EntryTypeCredit  = "credit"
	EntryTypeDeposit = "deposit"
)

// Wallet 玩家钱包，每个币种一行
type Wallet struct {
	BaseModel
	PlayerID    string `gorm:"size:64;not null;uniqueIndex:idx_wallet_player_currency" json:"player_id"`
	Currency    string `gorm:"size:16;not null;uniqueIndex:idx_wallet_player_currency" json:"currency"`
	Balance     int64  `gorm:"default:0" json:"balance"` // 最小货币单位
	TotalDebit  int64  `gorm:"default:0" json:"total_debit"`
	TotalCredit int64  `gorm:"default:0" json:"total_credit"`
}

// TableName 指定表名
func (Wallet) TableName() string {
	return "wallets"
}

// LedgerEntry 账本流水
// (type, transaction_id, round_id) 唯一，重复的扣款/派奖请求直接返回已有流水
type LedgerEntry struct {
	BaseModel
	PlayerID      string  `gorm:"size:64;not null;index" json:"player_id"`
	Currency      string  `gorm:"size:16;not null" json:"currency"`
	Type          string  `gorm:"size:16;not null;uniqueIndex:idx_ledger_idempotency" json:"type"`
	TransactionID string  `gorm:"size:64;not null;uniqueIndex:idx_ledger_idempotency" json:"transaction_id"`
	RoundID       string  `gorm:"size:64;not null;uniqueIndex:idx_ledger_idempotency" json:"round_id"`
	GameID        string  `gorm:"size:64" json:"game_id"`
	Amount        int64   `gorm:"not null" json:"amount"`
	BeforeBalance int64   `json:"before_balance"`
	AfterBalance  int64   `json:"after_balance"`
	Metadata      JSONMap `gorm:"type:json" json:"metadata,omitempty"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
