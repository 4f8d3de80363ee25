package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heywood8/money-tracker-sub005/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestAccount creates an account with the given balance string.
func CreateTestAccount(t *testing.T, db *gorm.DB, balance string) *models.Account {
	t.Helper()
	return CreateTestAccountWithCurrency(t, db, balance, "USD")
}

// CreateTestAccountWithCurrency creates an account with the given balance
// and currency.
func CreateTestAccountWithCurrency(t *testing.T, db *gorm.DB, balance, currency string) *models.Account {
	t.Helper()

	account := &models.Account{
		Name:     fmt.Sprintf("Test Account %d", nextID()),
		Balance:  decimal.RequireFromString(balance),
		Currency: currency,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestCategory creates an expense entry category, optionally under a
// parent.
func CreateTestCategory(t *testing.T, db *gorm.DB, parentID *string) *models.Category {
	t.Helper()
	return CreateTestCategoryOfType(t, db, models.CategoryTypeExpense, parentID)
}

// CreateTestCategoryOfType creates an entry category of the given type.
func CreateTestCategoryOfType(t *testing.T, db *gorm.DB, categoryType models.CategoryType, parentID *string) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:     fmt.Sprintf("Test Category %d", nextID()),
		Kind:     models.CategoryKindEntry,
		Type:     categoryType,
		ParentID: parentID,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateShadowCategories creates the shadow pair directly, bypassing the
// category service bootstrap.
func CreateShadowCategories(t *testing.T, db *gorm.DB) *models.ShadowCategories {
	t.Helper()

	expense := &models.Category{
		Name:     "Balance adjustment",
		Kind:     models.CategoryKindEntry,
		Type:     models.CategoryTypeExpense,
		IsShadow: true,
	}
	income := &models.Category{
		Name:     "Balance adjustment",
		Kind:     models.CategoryKindEntry,
		Type:     models.CategoryTypeIncome,
		IsShadow: true,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create shadow expense category: %v", err)
	}
	if err := db.Create(income).Error; err != nil {
		t.Fatalf("failed to create shadow income category: %v", err)
	}
	return &models.ShadowCategories{Expense: expense, Income: income}
}

// CreateTestOperation inserts a journal entry directly, without touching
// balances. Reconstruction tests seed journals this way.
func CreateTestOperation(t *testing.T, db *gorm.DB, op models.Operation) *models.Operation {
	t.Helper()

	if op.Date.IsZero() {
		op.Date = time.Now().UTC()
	}
	if op.Description == "" {
		op.Description = fmt.Sprintf("Test Operation %d", nextID())
	}
	if err := db.Create(&op).Error; err != nil {
		t.Fatalf("failed to create test operation: %v", err)
	}
	return &op
}

// CreateTestBudget creates a monthly budget for the category starting a year
// ago, with no end date.
func CreateTestBudget(t *testing.T, db *gorm.DB, categoryID, amount string) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		CategoryID:  categoryID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		PeriodType:  models.BudgetPeriodMonthly,
		StartDate:   time.Now().UTC().AddDate(-1, 0, 0),
		IsRecurring: true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}
