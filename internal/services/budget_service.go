package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
	"github.com/heywood8/money-tracker-sub005/internal/events"
	"github.com/heywood8/money-tracker-sub005/internal/logger"
	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/money"
	"github.com/heywood8/money-tracker-sub005/internal/validator"
)

// budgetService evaluates user-defined spending budgets over recurring
// calendar periods.
type budgetService struct {
	db         *gorm.DB
	categories CategoryServicer
	notifier   events.Notifier
	log        *zap.SugaredLogger

	// now is swappable so tests can pin the reference date.
	now func() time.Time
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categories CategoryServicer, notifier events.Notifier) BudgetServicer {
	return &budgetService{
		db:         db,
		categories: categories,
		notifier:   notifier,
		log:        logger.Named("budget"),
		now:        time.Now,
	}
}

// ValidateBudget checks a draft before any write. Equal start and end dates
// are rejected: the active window [start, end) would be empty.
func (s *budgetService) ValidateBudget(draft BudgetDraft) error {
	if err := validator.Struct(draft); err != nil {
		return err
	}
	if !draft.Amount.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be greater than zero")
	}
	if draft.StartDate.IsZero() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget start date is required")
	}
	if draft.EndDate != nil && !draft.EndDate.After(draft.StartDate) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "budget end date must be strictly after the start date")
	}
	return nil
}

// CreateBudget validates and persists a budget for a category.
func (s *budgetService) CreateBudget(draft BudgetDraft) (*models.Budget, error) {
	if err := s.ValidateBudget(draft); err != nil {
		return nil, err
	}

	exists, err := s.categories.CategoryExists(draft.CategoryID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrCategoryNotFound
	}

	budget := &models.Budget{
		CategoryID:      draft.CategoryID,
		Amount:          draft.Amount,
		Currency:        draft.Currency,
		PeriodType:      draft.PeriodType,
		StartDate:       draft.StartDate,
		EndDate:         draft.EndDate,
		IsRecurring:     draft.IsRecurring,
		RolloverEnabled: draft.RolloverEnabled,
	}

	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	s.notifier.Notify(events.TopicBudgetsChanged)
	return budget, nil
}

// UpdateBudget applies optional field updates to an existing budget.
func (s *budgetService) UpdateBudget(budgetID string, fields BudgetUpdateFields) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Amount != nil {
		if !fields.Amount.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be greater than zero")
		}
		updates["amount"] = *fields.Amount
	}
	if fields.Currency != nil {
		updates["currency"] = *fields.Currency
	}
	if fields.PeriodType != nil {
		if _, _, err := s.CurrentPeriodDates(*fields.PeriodType, s.now()); err != nil {
			return nil, err
		}
		updates["period_type"] = *fields.PeriodType
	}
	if fields.EndDate != nil {
		if !fields.EndDate.After(budget.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget end date must be strictly after the start date")
		}
		updates["end_date"] = fields.EndDate
	}
	if fields.IsRecurring != nil {
		updates["is_recurring"] = *fields.IsRecurring
	}
	if fields.RolloverEnabled != nil {
		updates["rollover_enabled"] = *fields.RolloverEnabled
	}

	if len(updates) > 0 {
		if err := s.db.Model(budget).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	}

	s.notifier.Notify(events.TopicBudgetsChanged)
	return budget, nil
}

// DeleteBudget removes a budget.
func (s *budgetService) DeleteBudget(budgetID string) error {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(budget).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	s.notifier.Notify(events.TopicBudgetsChanged)
	return nil
}

// GetBudgetByID retrieves a budget by ID.
func (s *budgetService) GetBudgetByID(budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Where("id = ?", budgetID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &budget, nil
}

// ListActiveBudgets returns budgets whose active window contains the current
// time.
func (s *budgetService) ListActiveBudgets() ([]models.Budget, error) {
	now := s.now()
	var budgets []models.Budget
	if err := s.db.Where("start_date <= ? AND (end_date IS NULL OR end_date > ?)", now, now).
		Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return budgets, nil
}

// CurrentPeriodDates returns the calendar window containing the reference
// date: weekly runs Sunday through Saturday, monthly covers the full
// calendar month (leap-year aware), yearly covers Jan 1 to Dec 31.
func (s *budgetService) CurrentPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error) {
	ref = ref.UTC()
	var start, end time.Time

	switch periodType {
	case models.BudgetPeriodWeekly:
		start = dayStart(ref).AddDate(0, 0, -int(ref.Weekday()))
		end = endOfDay(start.AddDate(0, 0, 6))
	case models.BudgetPeriodMonthly:
		start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = endOfDay(start.AddDate(0, 1, -1))
	case models.BudgetPeriodYearly:
		start = time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		end = endOfDay(time.Date(ref.Year(), time.December, 31, 0, 0, 0, 0, time.UTC))
	default:
		return time.Time{}, time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("invalid budget period type %q", periodType))
	}

	return start, end, nil
}

// NextPeriodDates shifts the current period's start forward by exactly one
// period unit, so month-length and leap-year variation is absorbed by the
// calendar rather than a fixed day count.
func (s *budgetService) NextPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error) {
	return s.shiftPeriod(periodType, ref, 1)
}

// PreviousPeriodDates shifts the current period's start backward by one
// period unit.
func (s *budgetService) PreviousPeriodDates(periodType models.BudgetPeriod, ref time.Time) (time.Time, time.Time, error) {
	return s.shiftPeriod(periodType, ref, -1)
}

func (s *budgetService) shiftPeriod(periodType models.BudgetPeriod, ref time.Time, units int) (time.Time, time.Time, error) {
	start, _, err := s.CurrentPeriodDates(periodType, ref)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	switch periodType {
	case models.BudgetPeriodWeekly:
		start = start.AddDate(0, 0, 7*units)
	case models.BudgetPeriodMonthly:
		start = start.AddDate(0, units, 0)
	case models.BudgetPeriodYearly:
		start = start.AddDate(units, 0, 0)
	}

	return s.CurrentPeriodDates(periodType, start)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}

// CalculateSpendingForBudget sums expense operations for the category over
// the half-open range [startDate, endDate), optionally expanded to the
// category's whole subtree. Currency matching goes through the owning
// account, which defines an operation's currency. Returns a zero decimal
// when nothing matches. Summation runs in Go over exact decimals; SQLite's
// SUM would coerce the text amounts to floats.
func (s *budgetService) CalculateSpendingForBudget(categoryID, currency string, startDate, endDate time.Time, includeChildren bool) (decimal.Decimal, error) {
	categoryIDs := []string{categoryID}
	if includeChildren {
		descendants, err := s.categories.GetAllDescendants(categoryID)
		if err != nil {
			return decimal.Zero, err
		}
		for i := range descendants {
			categoryIDs = append(categoryIDs, descendants[i].ID)
		}
	}

	var amounts []string
	if err := s.db.Model(&models.Operation{}).
		Joins("JOIN accounts ON accounts.id = operations.account_id").
		Where("operations.type = ?", models.OperationTypeExpense).
		Where("operations.category_id IN ?", categoryIDs).
		Where("accounts.currency = ?", currency).
		Where("operations.date >= ? AND operations.date < ?", startDate, endDate).
		Pluck("operations.amount", &amounts).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	total := money.Zero
	for _, raw := range amounts {
		amount, err := money.Parse(raw)
		if err != nil {
			return decimal.Zero, err
		}
		total = money.Add(total, amount)
	}
	return total, nil
}

// CalculateBudgetStatus computes spending against the budget for its current
// period. Band boundaries are inclusive on the lower edge: <70 safe, 70-89
// warning, 90-99 danger, >=100 exceeded.
func (s *budgetService) CalculateBudgetStatus(budgetID string) (*BudgetStatus, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	periodStart, periodEnd, err := s.CurrentPeriodDates(budget.PeriodType, s.now())
	if err != nil {
		return nil, err
	}

	spent, err := s.CalculateSpendingForBudget(budget.CategoryID, budget.Currency,
		periodStart, periodEnd.Add(time.Nanosecond), true)
	if err != nil {
		return nil, err
	}

	percentage := 0
	if budget.Amount.IsPositive() {
		percentage = int(spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	isExceeded := spent.GreaterThan(budget.Amount)

	var level BudgetStatusLevel
	switch {
	case percentage >= 100 || isExceeded:
		level = BudgetStatusExceeded
	case percentage >= 90:
		level = BudgetStatusDanger
	case percentage >= 70:
		level = BudgetStatusWarning
	default:
		level = BudgetStatusSafe
	}

	return &BudgetStatus{
		BudgetID:   budget.ID,
		Amount:     budget.Amount,
		Spent:      spent,
		Remaining:  money.Subtract(budget.Amount, spent),
		Percentage: percentage,
		IsExceeded: isExceeded,
		Status:     level,
	}, nil
}

// CalculateAllBudgetStatuses computes the status of every active budget. A
// failure on one budget is logged and that budget omitted; the call never
// fails wholesale because of one bad budget.
func (s *budgetService) CalculateAllBudgetStatuses() (map[string]*BudgetStatus, error) {
	budgets, err := s.ListActiveBudgets()
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]*BudgetStatus, len(budgets))
	for i := range budgets {
		status, err := s.CalculateBudgetStatus(budgets[i].ID)
		if err != nil {
			s.log.Warnw("Skipping budget status", "budgetID", budgets[i].ID, "error", err)
			continue
		}
		statuses[budgets[i].ID] = status
	}
	return statuses, nil
}

// FindDuplicateBudget looks for another budget with the same category,
// currency and period type. Returns nil when none exists.
func (s *budgetService) FindDuplicateBudget(categoryID, currency string, periodType models.BudgetPeriod, excludeID string) (*models.Budget, error) {
	q := s.db.Where("category_id = ? AND currency = ? AND period_type = ?", categoryID, currency, periodType)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}

	var budget models.Budget
	err := q.First(&budget).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &budget, nil
}

// HasActiveBudget reports whether the category has a budget whose active
// window contains the current time.
func (s *budgetService) HasActiveBudget(categoryID string) (bool, error) {
	now := s.now()
	var count int64
	if err := s.db.Model(&models.Budget{}).
		Where("category_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)", categoryID, now, now).
		Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count > 0, nil
}

// BudgetExists reports whether a budget exists.
func (s *budgetService) BudgetExists(budgetID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Budget{}).Where("id = ?", budgetID).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count > 0, nil
}
