package services

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/pagination"
)

// CategoryDraft is the input for creating a category.
type CategoryDraft struct {
	Name                string              `validate:"required"`
	Kind                models.CategoryKind `validate:"required,category_kind"`
	Type                models.CategoryType `validate:"required,category_type"`
	ParentID            *string
	Icon                string
	Color               string `validate:"omitempty,hex_color"`
	ExcludeFromForecast bool
}

// CategoryUpdateFields holds optional updates for a category. Nil fields are
// left unchanged.
type CategoryUpdateFields struct {
	Name                *string
	Icon                *string
	Color               *string
	ExcludeFromForecast *bool
}

// CategoryServicer defines the contract for the category hierarchy store.
type CategoryServicer interface {
	CreateCategory(draft CategoryDraft) (*models.Category, error)
	UpdateCategory(categoryID string, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(categoryID string) error
	MoveCategory(categoryID string, newParentID *string) error
	GetCategoryByID(categoryID string) (*models.Category, error)
	ListCategories(categoryType *models.CategoryType, includeShadow bool) ([]models.Category, error)
	GetAllDescendants(categoryID string) ([]models.Category, error)
	GetCategoryPath(categoryID string) ([]models.Category, error)
	EnsureShadowCategories() (*models.ShadowCategories, error)
	GetShadowCategories() (*models.ShadowCategories, error)
	CategoryExists(categoryID string) (bool, error)
	CountCategoryUsage(categoryID string) (int64, error)
}

// AccountUpdateFields holds optional updates for an account. Nil fields are
// left unchanged. Balance is deliberately absent: balances change only
// through deltas and adjustments so every change stays explained by the
// journal.
type AccountUpdateFields struct {
	Name          *string
	DisplayOrder  *int
	Hidden        *bool
	MonthlyTarget *decimal.Decimal
}

// AccountServicer defines the contract for the account ledger.
type AccountServicer interface {
	CreateAccount(name, currency string, initialBalance decimal.Decimal, displayOrder int) (*models.Account, error)
	UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error)
	ListAccounts(includeHidden bool) ([]models.Account, error)
	GetAccountByID(accountID string) (*models.Account, error)

	UpdateAccountBalance(accountID string, delta decimal.Decimal) (decimal.Decimal, error)
	BatchUpdateBalances(deltasByAccount map[string]decimal.Decimal) error
	TransferOperations(fromAccountID, toAccountID string) (int64, error)
	AdjustAccountBalance(accountID string, targetBalance decimal.Decimal, description string) error
	DeleteAccount(accountID string, transferToID *string) error

	GetAccountBalance(accountID string) (decimal.Decimal, error)
	AccountExists(accountID string) (bool, error)
	GetOperationCount(accountID string) (int64, error)

	// ApplyDelta mutates one balance inside an already-open transaction.
	// Used by the journal so an operation and its balance effect commit
	// together.
	ApplyDelta(tx *gorm.DB, accountID string, delta decimal.Decimal) (decimal.Decimal, error)
}

// OperationFilter holds optional filter parameters for listing the journal.
type OperationFilter struct {
	AccountID  *string
	CategoryID *string
	Type       *models.OperationType
	FromDate   *time.Time
	ToDate     *time.Time
}

// OperationServicer defines the contract for appending to and reading the
// journal.
type OperationServicer interface {
	RecordExpense(accountID string, categoryID *string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error)
	RecordIncome(accountID string, categoryID *string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error)
	RecordTransfer(fromAccountID, toAccountID string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error)
	DeleteOperation(operationID string) error
	GetOperationByID(operationID string) (*models.Operation, error)
	ListOperations(page pagination.PageRequest, filter OperationFilter) (*pagination.PageResponse[models.Operation], error)
}

// HistoryServicer defines the contract for the balance history
// reconstructor.
type HistoryServicer interface {
	// PopulateCurrentMonthHistory rebuilds daily snapshots for the current
	// month by reverse-replaying the journal. Pass a non-nil tx when a
	// transaction is already open (e.g. during a startup migration); in
	// that mode failures are logged and swallowed.
	PopulateCurrentMonthHistory(tx *gorm.DB) error

	// UpdateTodayBalance upserts the (account, today) snapshot. Best-effort:
	// failures are logged, never returned.
	UpdateTodayBalance(tx *gorm.DB, accountID string, balance decimal.Decimal)

	GetBalanceHistory(accountID string, startDate, endDate time.Time) ([]models.BalanceSnapshot, error)
	GetAccountBalanceOnDate(accountID string, date time.Time) (decimal.Decimal, error)
	GetAllAccountsBalanceOnDate(date time.Time) (map[string]decimal.Decimal, error)
	GetLastSnapshotDate(accountID string) (string, error)
	UpsertBalanceHistory(accountID string, date time.Time, balance decimal.Decimal) error
	DeleteBalanceHistory(accountID string, date time.Time) error
}

// BudgetDraft is the input for creating or validating a budget.
type BudgetDraft struct {
	CategoryID      string `validate:"required"`
	Amount          decimal.Decimal
	Currency        string              `validate:"required,iso4217"`
	PeriodType      models.BudgetPeriod `validate:"required,budget_period"`
	StartDate       time.Time
	EndDate         *time.Time
	IsRecurring     bool
	RolloverEnabled bool
}

// BudgetUpdateFields holds optional updates for a budget. Nil fields are left
// unchanged.
type BudgetUpdateFields struct {
	Amount          *decimal.Decimal
	Currency        *string
	PeriodType      *models.BudgetPeriod
	EndDate         *time.Time
	IsRecurring     *bool
	RolloverEnabled *bool
}

// BudgetStatusLevel is the step function of spending against the budget
// amount.
type BudgetStatusLevel string

const (
	BudgetStatusSafe     BudgetStatusLevel = "safe"
	BudgetStatusWarning  BudgetStatusLevel = "warning"
	BudgetStatusDanger   BudgetStatusLevel = "danger"
	BudgetStatusExceeded BudgetStatusLevel = "exceeded"
)

// BudgetStatus contains spending vs budget data for a budget's current
// period.
type BudgetStatus struct {
	BudgetID   string            `json:"budget_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Spent      decimal.Decimal   `json:"spent"`
	Remaining  decimal.Decimal   `json:"remaining"`
	Percentage int               `json:"percentage"`
	IsExceeded bool              `json:"is_exceeded"`
	Status     BudgetStatusLevel `json:"status"`
}

// BudgetServicer defines the contract for the budget period engine.
type BudgetServicer interface {
	ValidateBudget(draft BudgetDraft) error
	CreateBudget(draft BudgetDraft) (*models.Budget, error)
	UpdateBudget(budgetID string, fields BudgetUpdateFields) (*models.Budget, error)
	DeleteBudget(budgetID string) error
	GetBudgetByID(budgetID string) (*models.Budget, error)
	ListActiveBudgets() ([]models.Budget, error)

	CurrentPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error)
	NextPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error)
	PreviousPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error)

	CalculateSpendingForBudget(categoryID, currency string, startDate, endDate time.Time, includeChildren bool) (decimal.Decimal, error)
	CalculateBudgetStatus(budgetID string) (*BudgetStatus, error)
	CalculateAllBudgetStatuses() (map[string]*BudgetStatus, error)

	FindDuplicateBudget(categoryID, currency string, periodType models.BudgetPeriod, excludeID string) (*models.Budget, error)
	HasActiveBudget(categoryID string) (bool, error)
	BudgetExists(budgetID string) (bool, error)
}
