package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetPeriod represents the recurring calendar window a budget is
// evaluated against
type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "weekly"
	BudgetPeriodMonthly BudgetPeriod = "monthly"
	BudgetPeriodYearly  BudgetPeriod = "yearly"
)

// Budget represents a spending limit for a category. A nil EndDate means the
// budget runs indefinitely; when present, EndDate is strictly after StartDate.
type Budget struct {
	Base
	CategoryID      string          `gorm:"type:uuid;not null;index" json:"category_id"`
	Amount          decimal.Decimal `gorm:"type:text;not null" json:"amount"`
	Currency        string          `gorm:"not null" json:"currency"`
	PeriodType      BudgetPeriod    `gorm:"not null" json:"period_type"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	IsRecurring     bool            `gorm:"default:true" json:"is_recurring"`
	RolloverEnabled bool            `gorm:"default:false" json:"rollover_enabled"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category"`
}
