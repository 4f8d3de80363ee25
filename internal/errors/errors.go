// Package errors provides custom error types for the ledger engine.
// All service-layer errors use AppError so callers can branch on stable
// codes instead of message text.
package errors

import "strings"

// AppError represents a structured application error with an error code,
// a human-readable message, and an optional internal cause.
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Internal error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so sentinel
// values survive Wrap/WithMessage under errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:     sentinel.Code,
		Message:  sentinel.Message,
		Internal: internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:     sentinel.Code,
		Message:  message,
		Internal: sentinel.Internal,
	}
}

// Validation errors.
var (
	ErrInvalidInput = &AppError{Code: "INVALID_INPUT", Message: "Invalid input"}
)

// Not-found errors.
var (
	ErrAccountNotFound   = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found"}
	ErrCategoryNotFound  = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found"}
	ErrOperationNotFound = &AppError{Code: "OPERATION_NOT_FOUND", Message: "Operation not found"}
	ErrBudgetNotFound    = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found"}
	ErrSnapshotNotFound  = &AppError{Code: "SNAPSHOT_NOT_FOUND", Message: "Balance snapshot not found"}
)

// Integrity errors. Messages name the violated constraint; call sites attach
// counts and currency codes via WithMessage.
var (
	ErrAccountInUse        = &AppError{Code: "ACCOUNT_IN_USE", Message: "Account has operations referencing it"}
	ErrCategoryInUse       = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing operations"}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has subcategories"}
	ErrCategoryCycle       = &AppError{Code: "CATEGORY_CYCLE", Message: "Cannot move category into its own subtree"}
	ErrCurrencyMismatch    = &AppError{Code: "CURRENCY_MISMATCH", Message: "Accounts have different currencies"}
	ErrShadowMissing       = &AppError{Code: "SHADOW_CATEGORIES_MISSING", Message: "Shadow categories not found"}
)

// General errors.
var (
	ErrInternal = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred"}
)

// ErrTransactionConflict is the typed form of the embedded store's
// nested-transaction failure. It is expected during startup reconciliation
// when a migration already holds the connection's single transaction, and is
// downgraded to a logged skip rather than propagated.
var ErrTransactionConflict = &AppError{Code: "TRANSACTION_CONFLICT", Message: "A transaction is already open on this connection"}

// txConflictSignatures are the SQLite error fragments that identify a
// transaction-nesting conflict.
var txConflictSignatures = []string{
	"transaction within a transaction",
	"cannot rollback",
	"no transaction is active",
}

// ClassifyTxConflict converts known nested-transaction error signatures into
// ErrTransactionConflict so callers can test with errors.Is instead of
// matching message substrings. Unrecognized errors pass through unchanged.
func ClassifyTxConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range txConflictSignatures {
		if strings.Contains(msg, sig) {
			return Wrap(ErrTransactionConflict, err)
		}
	}
	return err
}
