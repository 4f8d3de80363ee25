package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType represents the type of journal operation
type OperationType string

const (
	OperationTypeExpense  OperationType = "expense"
	OperationTypeIncome   OperationType = "income"
	OperationTypeTransfer OperationType = "transfer"
)

// Operation represents a single financial event in the append-only journal.
// Operations are never reordered; Date drives all historical reconstruction.
type Operation struct {
	Base
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Type        OperationType   `gorm:"not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`

	// For transfers
	ToAccountID *string `gorm:"type:uuid;index" json:"to_account_id,omitempty"`

	// For cross-currency transfers
	ExchangeRate        *decimal.Decimal `gorm:"type:text" json:"exchange_rate,omitempty"`
	DestinationAmount   *decimal.Decimal `gorm:"type:text" json:"destination_amount,omitempty"`
	SourceCurrency      string           `json:"source_currency,omitempty"`
	DestinationCurrency string           `json:"destination_currency,omitempty"`

	// Relationships
	Account   Account   `gorm:"foreignKey:AccountID" json:"account"`
	ToAccount *Account  `gorm:"foreignKey:ToAccountID" json:"to_account,omitempty"`
	Category  *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
