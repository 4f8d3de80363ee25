package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "github.com/heywood8/money-tracker-sub005/internal/errors"
	"github.com/heywood8/money-tracker-sub005/internal/events"
	"github.com/heywood8/money-tracker-sub005/internal/fx"
	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/pagination"
)

// operationService appends to the journal. Each append commits together with
// its balance effect, so the journal always explains the balances.
type operationService struct {
	db        *gorm.DB
	accounts  AccountServicer
	converter fx.Converter
	notifier  events.Notifier
}

// NewOperationService creates a new OperationServicer.
func NewOperationService(db *gorm.DB, accounts AccountServicer, converter fx.Converter, notifier events.Notifier) OperationServicer {
	return &operationService{
		db:        db,
		accounts:  accounts,
		converter: converter,
		notifier:  notifier,
	}
}

// RecordExpense appends an expense operation and decreases the account
// balance.
func (s *operationService) RecordExpense(accountID string, categoryID *string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error) {
	return s.record(accountID, categoryID, models.OperationTypeExpense, amount, description, date)
}

// RecordIncome appends an income operation and increases the account
// balance.
func (s *operationService) RecordIncome(accountID string, categoryID *string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error) {
	return s.record(accountID, categoryID, models.OperationTypeIncome, amount, description, date)
}

func (s *operationService) record(accountID string, categoryID *string, opType models.OperationType, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error) {
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	if _, err := s.accounts.GetAccountByID(accountID); err != nil {
		return nil, err
	}

	operation := &models.Operation{
		AccountID:   accountID,
		CategoryID:  categoryID,
		Type:        opType,
		Amount:      amount,
		Description: description,
		Date:        date,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(operation).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}

		delta := amount
		if opType == models.OperationTypeExpense {
			delta = amount.Neg()
		}
		_, err := s.accounts.ApplyDelta(tx, accountID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(events.TopicOperationsChanged)
	return operation, nil
}

// RecordTransfer appends a transfer between two accounts. When the accounts
// hold different currencies the converter supplies the destination amount
// and the applied rate is captured on the operation.
func (s *operationService) RecordTransfer(fromAccountID, toAccountID string, amount decimal.Decimal, description string, date time.Time) (*models.Operation, error) {
	if !amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if fromAccountID == toAccountID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot transfer to the same account")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	from, err := s.accounts.GetAccountByID(fromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := s.accounts.GetAccountByID(toAccountID)
	if err != nil {
		return nil, err
	}

	operation := &models.Operation{
		AccountID:   fromAccountID,
		ToAccountID: &toAccountID,
		Type:        models.OperationTypeTransfer,
		Amount:      amount,
		Description: description,
		Date:        date,
	}

	inbound := amount
	if from.Currency != to.Currency {
		converted, rate, err := s.converter.Convert(amount, from.Currency, to.Currency)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
		}
		inbound = converted
		operation.ExchangeRate = &rate
		operation.DestinationAmount = &converted
		operation.SourceCurrency = from.Currency
		operation.DestinationCurrency = to.Currency
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(operation).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		if _, err := s.accounts.ApplyDelta(tx, fromAccountID, amount.Neg()); err != nil {
			return err
		}
		_, err := s.accounts.ApplyDelta(tx, toAccountID, inbound)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(events.TopicOperationsChanged)
	return operation, nil
}

// DeleteOperation removes a journal entry and reverses its balance effect in
// the same transaction.
func (s *operationService) DeleteOperation(operationID string) error {
	operation, err := s.GetOperationByID(operationID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(operation).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}

		switch operation.Type {
		case models.OperationTypeExpense:
			_, err := s.accounts.ApplyDelta(tx, operation.AccountID, operation.Amount)
			return err
		case models.OperationTypeIncome:
			_, err := s.accounts.ApplyDelta(tx, operation.AccountID, operation.Amount.Neg())
			return err
		case models.OperationTypeTransfer:
			if _, err := s.accounts.ApplyDelta(tx, operation.AccountID, operation.Amount); err != nil {
				return err
			}
			inbound := operation.Amount
			if operation.DestinationAmount != nil {
				inbound = *operation.DestinationAmount
			}
			_, err := s.accounts.ApplyDelta(tx, *operation.ToAccountID, inbound.Neg())
			return err
		default:
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported operation type "+string(operation.Type))
		}
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(events.TopicOperationsChanged)
	return nil
}

// GetOperationByID retrieves a journal entry by ID.
func (s *operationService) GetOperationByID(operationID string) (*models.Operation, error) {
	var operation models.Operation
	if err := s.db.Where("id = ?", operationID).First(&operation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOperationNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return &operation, nil
}

// ListOperations returns a paginated, filtered slice of the journal, newest
// first.
func (s *operationService) ListOperations(page pagination.PageRequest, filter OperationFilter) (*pagination.PageResponse[models.Operation], error) {
	page.Defaults()

	base := s.db.Model(&models.Operation{})
	base = applyOperationFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	var operations []models.Operation
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").
		Find(&operations).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}

	result := pagination.NewPageResponse(operations, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyOperationFilters(q *gorm.DB, f OperationFilter) *gorm.DB {
	if f.AccountID != nil {
		q = q.Where("account_id = ? OR to_account_id = ?", *f.AccountID, *f.AccountID)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	return q
}
