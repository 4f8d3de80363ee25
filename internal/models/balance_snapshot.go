package models

import (
	"time"

	"github.com/heywood8/money-tracker-sub005/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceSnapshot represents an account's balance at the end of one calendar
// day. This is immutable time-series data: no Base embed, no soft deletes.
// Day is a UTC calendar date in YYYY-MM-DD form so timezone and DST changes
// can never split a day across two rows.
type BalanceSnapshot struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID string          `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_account_day" json:"account_id"`
	Day       string          `gorm:"not null;uniqueIndex:idx_snapshot_account_day" json:"day"`
	Balance   decimal.Decimal `gorm:"type:text;not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (s *BalanceSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}

// DayFormat is the layout for BalanceSnapshot.Day keys.
const DayFormat = "2006-01-02"

// DayOf returns the UTC calendar-day key for t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
