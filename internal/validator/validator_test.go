package validator

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
	"github.com/heywood8/money-tracker-sub005/internal/models"
)

type colorDraft struct {
	Color string `validate:"required,hex_color"`
}

type currencyDraft struct {
	Currency string `validate:"required,iso4217"`
}

type periodDraft struct {
	Period models.BudgetPeriod `validate:"required,budget_period"`
}

func TestHexColorRule(t *testing.T) {
	valid := []string{"#fff", "#FFFFFF", "#1a2B3c"}
	for _, c := range valid {
		if err := Struct(colorDraft{Color: c}); err != nil {
			t.Errorf("%q should be valid: %v", c, err)
		}
	}

	invalid := []string{"fff", "#ffff", "#gggggg", "red"}
	for _, c := range invalid {
		if err := Struct(colorDraft{Color: c}); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("%q should be rejected", c)
		}
	}
}

func TestISO4217Rule(t *testing.T) {
	for _, c := range []string{"USD", "EUR", "JPY", "AMD"} {
		if err := Struct(currencyDraft{Currency: c}); err != nil {
			t.Errorf("%q should be valid: %v", c, err)
		}
	}
	for _, c := range []string{"usd", "DOLLARS", "ZZZ", ""} {
		if err := Struct(currencyDraft{Currency: c}); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("%q should be rejected", c)
		}
	}
}

func TestBudgetPeriodRule(t *testing.T) {
	for _, p := range []models.BudgetPeriod{models.BudgetPeriodWeekly, models.BudgetPeriodMonthly, models.BudgetPeriodYearly} {
		if err := Struct(periodDraft{Period: p}); err != nil {
			t.Errorf("%q should be valid: %v", p, err)
		}
	}
	if err := Struct(periodDraft{Period: models.BudgetPeriod("daily")}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Error("daily should be rejected")
	}
}

func TestStructErrorNamesFieldAndRule(t *testing.T) {
	err := Struct(currencyDraft{Currency: "ZZZ"})
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Currency") || !strings.Contains(msg, "iso4217") {
		t.Errorf("expected field and rule in message, got %q", msg)
	}
}
