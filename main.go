// Command money-tracker boots the embedded ledger engine the way the mobile
// shell does: open the store, migrate, bootstrap shadow categories, then run
// the startup history reconciliation pass.
package main

import (
	"log"

	"github.com/heywood8/money-tracker-sub005/internal/config"
	"github.com/heywood8/money-tracker-sub005/internal/database"
	"github.com/heywood8/money-tracker-sub005/internal/events"
	"github.com/heywood8/money-tracker-sub005/internal/fx"
	"github.com/heywood8/money-tracker-sub005/internal/logger"
	"github.com/heywood8/money-tracker-sub005/internal/pagination"
	"github.com/heywood8/money-tracker-sub005/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()
	sugar := logger.Get()

	manager, err := database.NewManager(cfg.DBPath)
	if err != nil {
		sugar.Fatalw("Failed to open database", "error", err)
	}
	defer func() { _ = manager.Close() }()

	if err := manager.Migrate(); err != nil {
		sugar.Fatalw("Failed to migrate database", "error", err)
	}

	db := manager.DB()
	notifier := events.LogNotifier{}

	categories := services.NewCategoryService(db)
	history := services.NewHistoryService(db)
	accounts := services.NewAccountService(db, categories, history, notifier)
	budgets := services.NewBudgetService(db, categories, notifier)
	journal := services.NewOperationService(db, accounts, fx.NewRateTable(), notifier)

	if _, err := categories.EnsureShadowCategories(); err != nil {
		sugar.Fatalw("Failed to bootstrap shadow categories", "error", err)
	}

	// Startup reconciliation. A conflict with an already-open transaction
	// is not fatal; the next balance mutation triggers another pass.
	if err := history.PopulateCurrentMonthHistory(nil); err != nil {
		sugar.Fatalw("Failed to populate balance history", "error", err)
	}

	all, err := accounts.ListAccounts(true)
	if err != nil {
		sugar.Fatalw("Failed to list accounts", "error", err)
	}
	recent, err := journal.ListOperations(pagination.PageRequest{PageSize: 1}, services.OperationFilter{})
	if err != nil {
		sugar.Fatalw("Failed to read journal", "error", err)
	}
	statuses, err := budgets.CalculateAllBudgetStatuses()
	if err != nil {
		sugar.Fatalw("Failed to compute budget statuses", "error", err)
	}
	sugar.Infow("Ledger engine ready",
		"accounts", len(all),
		"operations", recent.TotalItems,
		"activeBudgets", len(statuses))
}
