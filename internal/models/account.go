package models

import "github.com/shopspring/decimal"

// Account represents a user's money account. The balance is the current
// source of truth; every change to it is explained by an Operation row, so
// historical balances can always be rebuilt from the journal.
type Account struct {
	Base
	Name          string           `gorm:"not null" json:"name"`
	Balance       decimal.Decimal  `gorm:"type:text;not null" json:"balance"`
	Currency      string           `gorm:"not null;default:'USD'" json:"currency"`
	DisplayOrder  int              `gorm:"not null;default:0" json:"display_order"`
	Hidden        bool             `gorm:"default:false" json:"hidden"`
	MonthlyTarget *decimal.Decimal `gorm:"type:text" json:"monthly_target,omitempty"`

	// Relationships
	Operations []Operation `gorm:"foreignKey:AccountID" json:"operations,omitempty"`
}
