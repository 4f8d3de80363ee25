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
)

// accountService is the account ledger: every balance change either comes in
// as a journal-backed delta or produces a synthetic adjustment operation, so
// the invariant "each balance change is explained by a journal entry" holds
// at all times. The history reconstructor depends on it.
type accountService struct {
	db         *gorm.DB
	categories CategoryServicer
	history    HistoryServicer
	notifier   events.Notifier
	log        *zap.SugaredLogger

	// shadows caches the shadow category pair after the first successful
	// lookup; the pair is immutable for the installation's lifetime.
	shadows *models.ShadowCategories
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB, categories CategoryServicer, history HistoryServicer, notifier events.Notifier) AccountServicer {
	return &accountService{
		db:         db,
		categories: categories,
		history:    history,
		notifier:   notifier,
		log:        logger.Named("ledger"),
	}
}

// CreateAccount creates an account with the given starting balance.
func (s *accountService) CreateAccount(name, currency string, initialBalance decimal.Decimal, displayOrder int) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if currency == "" {
		currency = "USD"
	}

	account := &models.Account{
		Name:         name,
		Balance:      initialBalance,
		Currency:     currency,
		DisplayOrder: displayOrder,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		s.history.UpdateTodayBalance(tx, account.ID, account.Balance)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(events.TopicBalancesChanged)
	return account, nil
}

// UpdateAccount updates an account's display fields.
func (s *accountService) UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.DisplayOrder != nil {
		updates["display_order"] = *fields.DisplayOrder
	}
	if fields.Hidden != nil {
		updates["hidden"] = *fields.Hidden
	}
	if fields.MonthlyTarget != nil {
		updates["monthly_target"] = *fields.MonthlyTarget
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternal, err)
		}
	}

	return account, nil
}

// ListAccounts lists accounts in display order, excluding hidden ones unless
// requested.
func (s *accountService) ListAccounts(includeHidden bool) ([]models.Account, error) {
	q := s.db.Model(&models.Account{})
	if !includeHidden {
		q = q.Where("hidden = ?", false)
	}

	var accounts []models.Account
	if err := q.Order("display_order, name").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return accounts, nil
}

// GetAccountByID retrieves an account by ID.
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &account, nil
}

// ApplyDelta applies one balance delta inside an already-open transaction
// and refreshes the account's today snapshot. Exact decimal addition; the
// delta may be negative.
func (s *accountService) ApplyDelta(tx *gorm.DB, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var account models.Account
	if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, apperrors.ErrAccountNotFound
		}
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	newBalance := money.Add(account.Balance, delta)
	if err := tx.Model(&account).Update("balance", newBalance).Error; err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	s.history.UpdateTodayBalance(tx, accountID, newBalance)
	return newBalance, nil
}

// UpdateAccountBalance applies a delta to one account in its own
// transaction and returns the new balance.
func (s *accountService) UpdateAccountBalance(accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		newBalance, txErr = s.ApplyDelta(tx, accountID, delta)
		return txErr
	})
	if err != nil {
		return decimal.Zero, err
	}

	s.notifier.Notify(events.TopicBalancesChanged)
	return newBalance, nil
}

// BatchUpdateBalances applies many deltas in a single transaction. Zero
// deltas are skipped without touching the store; accounts missing from the
// store are logged and skipped while the rest of the batch proceeds.
func (s *accountService) BatchUpdateBalances(deltasByAccount map[string]decimal.Decimal) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for accountID, delta := range deltasByAccount {
			if delta.IsZero() {
				continue
			}

			if _, err := s.ApplyDelta(tx, accountID, delta); err != nil {
				if errors.Is(err, apperrors.ErrAccountNotFound) {
					s.log.Warnw("Skipping balance update for missing account", "accountID", accountID)
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(events.TopicBalancesChanged)
	return nil
}

// TransferOperations reassigns every journal entry referencing one account
// to another and returns the number of rows moved.
func (s *accountService) TransferOperations(fromAccountID, toAccountID string) (int64, error) {
	var moved int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		moved, txErr = s.transferOperationsTx(tx, fromAccountID, toAccountID)
		return txErr
	})
	if err != nil {
		return 0, err
	}

	s.notifier.Notify(events.TopicOperationsChanged)
	return moved, nil
}

// transferOperationsTx does the reassignment inside an open transaction so
// DeleteAccount can run it together with the row delete.
func (s *accountService) transferOperationsTx(tx *gorm.DB, fromAccountID, toAccountID string) (int64, error) {
	from, err := s.getAccountTx(tx, fromAccountID)
	if err != nil {
		return 0, err
	}
	to, err := s.getAccountTx(tx, toAccountID)
	if err != nil {
		return 0, err
	}

	if from.Currency != to.Currency {
		return 0, apperrors.WithMessage(apperrors.ErrCurrencyMismatch,
			fmt.Sprintf("Cannot transfer operations: accounts have different currencies (%s → %s)", from.Currency, to.Currency))
	}

	var moved int64
	res := tx.Model(&models.Operation{}).Where("account_id = ?", fromAccountID).Update("account_id", toAccountID)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, res.Error)
	}
	moved += res.RowsAffected

	res = tx.Model(&models.Operation{}).Where("to_account_id = ?", fromAccountID).Update("to_account_id", toAccountID)
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, res.Error)
	}
	moved += res.RowsAffected

	return moved, nil
}

// AdjustAccountBalance records an absolute balance stated by the user. The
// correction lands in the journal as a synthetic operation under a shadow
// category; repeated corrections merge into one cumulative entry, and a
// correction that nets out to zero removes the entry entirely.
func (s *accountService) AdjustAccountBalance(accountID string, targetBalance decimal.Decimal, description string) error {
	shadows, err := s.shadowSet()
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrAccountNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}

		delta := money.Subtract(targetBalance, account.Balance)

		var existing models.Operation
		findErr := tx.Where("account_id = ? AND category_id IN ?", accountID,
			[]string{shadows.Expense.ID, shadows.Income.ID}).First(&existing).Error

		switch {
		case findErr == nil:
			// Merge into the cumulative correction.
			signed := existing.Amount
			if existing.Type == models.OperationTypeExpense {
				signed = signed.Neg()
			}
			cumulative := money.Add(signed, delta)

			if cumulative.IsZero() {
				// Self-cancelling correction leaves no residue.
				if err := tx.Unscoped().Delete(&existing).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternal, err)
				}
			} else {
				opType, categoryID, amount := adjustmentShape(cumulative, shadows)
				updates := map[string]interface{}{
					"type":        opType,
					"category_id": categoryID,
					"amount":      amount,
					"date":        time.Now().UTC(),
				}
				if description != "" {
					updates["description"] = description
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return apperrors.Wrap(apperrors.ErrInternal, err)
				}
			}

		case errors.Is(findErr, gorm.ErrRecordNotFound):
			if delta.IsZero() {
				// Balance already matches; nothing to record.
				return nil
			}
			opType, categoryID, amount := adjustmentShape(delta, shadows)
			if description == "" {
				description = "Balance adjustment"
			}
			op := &models.Operation{
				AccountID:   accountID,
				CategoryID:  &categoryID,
				Type:        opType,
				Amount:      amount,
				Description: description,
				Date:        time.Now().UTC(),
			}
			if err := tx.Create(op).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternal, err)
			}

		default:
			return apperrors.Wrap(apperrors.ErrInternal, findErr)
		}

		if !delta.IsZero() {
			if err := tx.Model(&account).Update("balance", targetBalance).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternal, err)
			}
			s.history.UpdateTodayBalance(tx, accountID, targetBalance)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(events.TopicBalancesChanged)
	return nil
}

// adjustmentShape maps a cumulative correction delta onto the operation row
// that represents it: positive corrections are shadow income, negative ones
// shadow expense, and the stored amount is always positive.
func adjustmentShape(delta decimal.Decimal, shadows *models.ShadowCategories) (models.OperationType, string, decimal.Decimal) {
	if delta.IsPositive() {
		return models.OperationTypeIncome, shadows.Income.ID, delta
	}
	return models.OperationTypeExpense, shadows.Expense.ID, delta.Neg()
}

// DeleteAccount deletes an account. With journal entries referencing it, the
// call fails unless a transfer target is given, in which case the entries
// are reassigned first in the same transaction.
func (s *accountService) DeleteAccount(accountID string, transferToID *string) error {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}

	count, err := s.GetOperationCount(accountID)
	if err != nil {
		return err
	}
	if count > 0 && transferToID == nil {
		return apperrors.WithMessage(apperrors.ErrAccountInUse,
			fmt.Sprintf("Cannot delete account: %d operations reference it", count))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if count > 0 {
			if _, err := s.transferOperationsTx(tx, accountID, *transferToID); err != nil {
				return err
			}
		}
		if err := tx.Delete(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(events.TopicBalancesChanged)
	return nil
}

// GetAccountBalance returns the current balance, or zero when the account
// does not exist.
func (s *accountService) GetAccountBalance(accountID string) (decimal.Decimal, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		if errors.Is(err, apperrors.ErrAccountNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// AccountExists reports whether the account exists.
func (s *accountService) AccountExists(accountID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count > 0, nil
}

// GetOperationCount counts journal entries referencing the account from
// either side. A missing account yields zero.
func (s *accountService) GetOperationCount(accountID string) (int64, error) {
	var count int64
	if err := s.db.Model(&models.Operation{}).
		Where("account_id = ? OR to_account_id = ?", accountID, accountID).
		Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return count, nil
}

// shadowSet resolves and caches the shadow category pair.
func (s *accountService) shadowSet() (*models.ShadowCategories, error) {
	if s.shadows != nil {
		return s.shadows, nil
	}
	shadows, err := s.categories.GetShadowCategories()
	if err != nil {
		return nil, err
	}
	s.shadows = shadows
	return shadows, nil
}

// getAccountTx is GetAccountByID bound to an open transaction.
func (s *accountService) getAccountTx(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &account, nil
}
