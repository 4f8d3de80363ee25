// Package events defines the fire-and-forget notification sink the ledger
// pokes after balance-affecting mutations. Delivery only triggers UI
// refresh; no core logic depends on it.
package events

import "github.com/heywood8/money-tracker-sub005/internal/logger"

// Topics published by the core.
const (
	TopicBalancesChanged   = "balances_changed"
	TopicOperationsChanged = "operations_changed"
	TopicCategoriesChanged = "categories_changed"
	TopicBudgetsChanged    = "budgets_changed"
)

// Notifier receives change notifications after committed mutations.
type Notifier interface {
	Notify(topic string)
}

// LogNotifier logs notifications at debug level. Used when the mobile shell
// has not registered its own sink.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(topic string) {
	logger.Named("events").Debugw("notification", "topic", topic)
}

// NopNotifier discards all notifications. Used in tests.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string) {}
