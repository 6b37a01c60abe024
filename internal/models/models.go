package models

import (
	"time"
)

// TradeDirection buy or sell
type TradeDirection string

const (
	TradeDirectionBuy  TradeDirection = "buy"
	TradeDirectionSell TradeDirection = "sell"
)

// Venue where a trade executes
type Venue string

const (
	VenueInternal Venue = "internal" // bonding curve on the TokenManager
	VenueExternal Venue = "external" // router pool after graduation
)

// TradeStatus trade record status. confirmed and failed are terminal.
type TradeStatus string

const (
	TradeStatusSubmitted TradeStatus = "submitted"
	TradeStatusConfirmed TradeStatus = "confirmed"
	TradeStatusFailed    TradeStatus = "failed"
)

// Terminal reports whether the status can no longer change
func (s TradeStatus) Terminal() bool {
	return s == TradeStatusConfirmed || s == TradeStatusFailed
}

// TradeRecord one submitted trade and its outcome
type TradeRecord struct {
	ID                 string         `json:"id" gorm:"primaryKey;type:varchar(36)"` // UUID
	SessionID          string         `json:"sessionId,omitempty" gorm:"type:varchar(36);index"`
	Token              string         `json:"token" gorm:"type:varchar(42);not null;index"`
	Trader             string         `json:"trader" gorm:"type:varchar(42);not null;index"`
	Direction          TradeDirection `json:"direction" gorm:"type:varchar(8);not null"`
	Venue              Venue          `json:"venue" gorm:"type:varchar(16);not null"`
	AmountIn           string         `json:"amountIn" gorm:"type:varchar(80);not null"` // base units
	AmountOutEstimated string         `json:"amountOutEstimated" gorm:"type:varchar(80)"`
	MinAmountOut       string         `json:"minAmountOut" gorm:"type:varchar(80)"`
	SlippageBps        int64          `json:"slippageBps"`
	ApprovalTxHash     string         `json:"approvalTxHash,omitempty" gorm:"type:varchar(66)"`
	TxHash             string         `json:"txHash,omitempty" gorm:"type:varchar(66);index"`
	BlockNumber        uint64         `json:"blockNumber,omitempty"`
	GasUsed            uint64         `json:"gasUsed,omitempty"`
	Status             TradeStatus    `json:"status" gorm:"type:varchar(16);not null;index"`
	Error              string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
	SettledAt          *time.Time     `json:"settledAt,omitempty"`
}

// TableName GORM table name
func (TradeRecord) TableName() string {
	return "trade_records"
}

// CreatedToken a token launched through this service
type CreatedToken struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"type:varchar(42);uniqueIndex"`
	Name      string    `json:"name" gorm:"not null"`
	Symbol    string    `json:"symbol" gorm:"not null"`
	URI       string    `json:"uri" gorm:"type:text"`
	Salt      string    `json:"salt" gorm:"type:varchar(66)"`
	Creator   string    `json:"creator" gorm:"type:varchar(42);index"`
	PreBuy    string    `json:"preBuy" gorm:"type:varchar(80)"` // base units, "0" when none
	TxHash    string    `json:"txHash" gorm:"type:varchar(66)"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CreatedToken) TableName() string {
	return "created_tokens"
}

// Indexes (GORM):
// - trade_records: token, trader, tx_hash, status, session_id
// - created_tokens: address (unique), creator
