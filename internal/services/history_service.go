package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
	"github.com/heywood8/money-tracker-sub005/internal/logger"
	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/money"
)

// historyService derives historical daily balances. The store only keeps
// current balances and the forward journal; snapshots are a cache this
// service can always delete and rebuild by reverse-replaying the journal
// from the current balance.
type historyService struct {
	db  *gorm.DB
	log *zap.SugaredLogger

	// now is swappable so tests can pin "today".
	now func() time.Time
}

// NewHistoryService creates a new HistoryServicer.
func NewHistoryService(db *gorm.DB) HistoryServicer {
	return &historyService{
		db:  db,
		log: logger.Named("history"),
		now: time.Now,
	}
}

// dayStart returns midnight UTC of the calendar day containing t. All
// reconstruction math is pinned to UTC days so wall-clock timezone or DST
// changes cannot split a day.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PopulateCurrentMonthHistory rebuilds the current month's snapshots for all
// accounts.
//
// With a nil tx the walk runs in its own transaction; the embedded store
// cannot nest transactions, so if one is already open the resulting conflict
// is downgraded to a logged skip and the next reconciliation pass will catch
// up. With a caller-supplied tx (startup migrations hold one) any failure is
// logged and swallowed so history population can never block app launch.
func (s *historyService) PopulateCurrentMonthHistory(tx *gorm.DB) error {
	if tx != nil {
		if err := s.populate(tx); err != nil {
			s.log.Warnw("Population failed during migration, but continuing", "error", err)
		}
		return nil
	}

	err := s.db.Transaction(func(inner *gorm.DB) error {
		return s.populate(inner)
	})
	if err != nil {
		err = apperrors.ClassifyTxConflict(err)
		if errors.Is(err, apperrors.ErrTransactionConflict) {
			s.log.Infow("Skipping history population, a transaction is already open")
			return nil
		}
		s.log.Errorw("History population failed", "error", err)
		return err
	}
	return nil
}

func (s *historyService) populate(tx *gorm.DB) error {
	var accounts []models.Account
	if err := tx.Find(&accounts).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}

	today := dayStart(s.now())
	scopeStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	for i := range accounts {
		if err := s.walkAccount(tx, &accounts[i], today, scopeStart); err != nil {
			return err
		}
	}
	return nil
}

// walkAccount steps backward one calendar day at a time from today down to
// the later of the scope start and the account's creation day. Before
// leaving each day it reverse-applies that day's journal entries, which
// yields the end-of-day balance for the previous day.
func (s *historyService) walkAccount(tx *gorm.DB, account *models.Account, today, scopeStart time.Time) error {
	lower := scopeStart
	if created := dayStart(account.CreatedAt); created.After(lower) {
		lower = created
	}

	balance := account.Balance
	lastPersisted := balance
	cur := today

	for cur.After(lower) {
		ops, err := s.operationsOnDay(tx, account.ID, cur)
		if err != nil {
			return err
		}
		balance = reverseApply(account.ID, balance, ops)

		prev := cur.AddDate(0, 0, -1)
		// Adjacent duplicates are suppressed: a day without relevant
		// operations is already represented by the newer row. Today is
		// never written here; updateTodayBalance owns that row.
		if !balance.Equal(lastPersisted) {
			if err := s.upsertSnapshotTx(tx, account.ID, models.DayOf(prev), balance); err != nil {
				return err
			}
			lastPersisted = balance
		}
		cur = prev
	}
	return nil
}

func (s *historyService) operationsOnDay(tx *gorm.DB, accountID string, day time.Time) ([]models.Operation, error) {
	var ops []models.Operation
	if err := tx.Where("(account_id = ? OR to_account_id = ?) AND date >= ? AND date < ?",
		accountID, accountID, day, day.AddDate(0, 0, 1)).Find(&ops).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return ops, nil
}

// reverseApply undoes one day's operations against the balance, rolling it
// back to the start of that day.
func reverseApply(accountID string, balance decimal.Decimal, ops []models.Operation) decimal.Decimal {
	for i := range ops {
		op := &ops[i]
		switch op.Type {
		case models.OperationTypeExpense:
			if op.AccountID == accountID {
				balance = money.Add(balance, op.Amount)
			}
		case models.OperationTypeIncome:
			if op.AccountID == accountID {
				balance = money.Subtract(balance, op.Amount)
			}
		case models.OperationTypeTransfer:
			if op.AccountID == accountID {
				// Money leaving is undone.
				balance = money.Add(balance, op.Amount)
			} else if op.ToAccountID != nil && *op.ToAccountID == accountID {
				inbound := op.Amount
				if op.DestinationAmount != nil {
					inbound = *op.DestinationAmount
				}
				balance = money.Subtract(balance, inbound)
			}
		}
	}
	return balance
}

// UpdateTodayBalance upserts the (account, today) snapshot so the today row
// never goes stale between reconciliation passes. Best-effort: a failure is
// logged and swallowed, never allowed to fail the triggering user action.
func (s *historyService) UpdateTodayBalance(tx *gorm.DB, accountID string, balance decimal.Decimal) {
	db := tx
	if db == nil {
		db = s.db
	}

	if err := s.upsertSnapshotTx(db, accountID, models.DayOf(s.now()), balance); err != nil {
		s.log.Warnw("Failed to refresh today's balance snapshot", "accountID", accountID, "error", err)
	}
}

func (s *historyService) upsertSnapshotTx(tx *gorm.DB, accountID, day string, balance decimal.Decimal) error {
	snapshot := models.BalanceSnapshot{
		AccountID: accountID,
		Day:       day,
		Balance:   balance,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance"}),
	}).Create(&snapshot).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return nil
}

// GetBalanceHistory returns snapshots for the account between two dates,
// inclusive, oldest first.
func (s *historyService) GetBalanceHistory(accountID string, startDate, endDate time.Time) ([]models.BalanceSnapshot, error) {
	var snapshots []models.BalanceSnapshot
	if err := s.db.Where("account_id = ? AND day >= ? AND day <= ?",
		accountID, models.DayOf(startDate), models.DayOf(endDate)).
		Order("day").Find(&snapshots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return snapshots, nil
}

// GetAccountBalanceOnDate returns the account's balance at end of the given
// day: the newest snapshot on or before it, falling back to the current
// balance when no snapshot exists (pre-creation history is not guaranteed).
func (s *historyService) GetAccountBalanceOnDate(accountID string, date time.Time) (decimal.Decimal, error) {
	var snapshot models.BalanceSnapshot
	err := s.db.Where("account_id = ? AND day <= ?", accountID, models.DayOf(date)).
		Order("day DESC").First(&snapshot).Error
	if err == nil {
		return snapshot.Balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	var account models.Account
	err = s.db.Where("id = ?", accountID).First(&account).Error
	switch {
	case err == nil:
		return account.Balance, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return decimal.Zero, nil
	default:
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternal, err)
	}
}

// GetAllAccountsBalanceOnDate returns every account's balance on the given
// day, keyed by account ID.
func (s *historyService) GetAllAccountsBalanceOnDate(date time.Time) (map[string]decimal.Decimal, error) {
	var accounts []models.Account
	if err := s.db.Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	balances := make(map[string]decimal.Decimal, len(accounts))
	for i := range accounts {
		balance, err := s.GetAccountBalanceOnDate(accounts[i].ID, date)
		if err != nil {
			return nil, err
		}
		balances[accounts[i].ID] = balance
	}
	return balances, nil
}

// GetLastSnapshotDate returns the day key of the account's newest snapshot,
// or the empty string when none exists.
func (s *historyService) GetLastSnapshotDate(accountID string) (string, error) {
	var snapshot models.BalanceSnapshot
	err := s.db.Where("account_id = ?", accountID).Order("day DESC").First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return snapshot.Day, nil
}

// UpsertBalanceHistory writes one snapshot row directly. Exposed for
// user-initiated manual correction of a historical value, distinct from the
// reconstruction algorithm.
func (s *historyService) UpsertBalanceHistory(accountID string, date time.Time, balance decimal.Decimal) error {
	return s.upsertSnapshotTx(s.db, accountID, models.DayOf(date), balance)
}

// DeleteBalanceHistory removes one snapshot row.
func (s *historyService) DeleteBalanceHistory(accountID string, date time.Time) error {
	res := s.db.Where("account_id = ? AND day = ?", accountID, models.DayOf(date)).
		Delete(&models.BalanceSnapshot{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternal, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrSnapshotNotFound
	}
	return nil
}
