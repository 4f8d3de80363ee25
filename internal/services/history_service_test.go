package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/heywood8/money-tracker-sub005/internal/models"
	"github.com/heywood8/money-tracker-sub005/internal/testutil"
)

// newTestHistory pins "today" so walks are reproducible regardless of when
// the suite runs.
func newTestHistory(db *gorm.DB, today time.Time) *historyService {
	svc := NewHistoryService(db).(*historyService)
	svc.now = func() time.Time { return today.Add(12 * time.Hour) }
	return svc
}

// backdateAccount rewrites the fixture's creation timestamp so the walk's
// lower bound sits where the test needs it.
func backdateAccount(t *testing.T, db *gorm.DB, account *models.Account, createdAt time.Time) {
	t.Helper()
	if err := db.Model(account).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("failed to backdate account: %v", err)
	}
}

func loadSnapshots(t *testing.T, db *gorm.DB, accountID string) map[string]string {
	t.Helper()
	var rows []models.BalanceSnapshot
	if err := db.Where("account_id = ?", accountID).Order("day").Find(&rows).Error; err != nil {
		t.Fatalf("failed to load snapshots: %v", err)
	}
	byDay := make(map[string]string, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row.Balance.String()
	}
	return byDay
}

func TestPopulateCurrentMonthHistory(t *testing.T) {
	today := utcDate(2025, time.June, 15)

	t.Run("backward_walk_with_duplicate_suppression", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		account := testutil.CreateTestAccount(t, db, "100.00")
		backdateAccount(t, db, account, utcDate(2025, time.May, 1))

		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeExpense,
			Amount:    mustDecimal("10.00"),
			Date:      utcDate(2025, time.June, 14).Add(9 * time.Hour),
		})
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeIncome,
			Amount:    mustDecimal("50.00"),
			Date:      utcDate(2025, time.June, 10).Add(18 * time.Hour),
		})

		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))

		snapshots := loadSnapshots(t, db, account.ID)
		// Two balance changes in the month yield exactly two rows: the days
		// in between are represented by the newer row.
		if len(snapshots) != 2 {
			t.Fatalf("expected 2 snapshots, got %d: %v", len(snapshots), snapshots)
		}
		if got := snapshots["2025-06-13"]; got != "110" {
			t.Errorf("expected 110 at end of June 13, got %s", got)
		}
		if got := snapshots["2025-06-09"]; got != "60" {
			t.Errorf("expected 60 at end of June 9, got %s", got)
		}
	})

	t.Run("never_writes_today", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		account := testutil.CreateTestAccount(t, db, "75.00")
		backdateAccount(t, db, account, utcDate(2025, time.May, 1))
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeExpense,
			Amount:    mustDecimal("25.00"),
			Date:      today.Add(8 * time.Hour),
		})

		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))

		snapshots := loadSnapshots(t, db, account.ID)
		if _, ok := snapshots["2025-06-15"]; ok {
			t.Error("reconstruction must never write the today row")
		}
		if got := snapshots["2025-06-14"]; got != "100" {
			t.Errorf("expected 100 at end of June 14, got %s", got)
		}
	})

	t.Run("stops_at_account_creation_day", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		account := testutil.CreateTestAccount(t, db, "50.00")
		backdateAccount(t, db, account, utcDate(2025, time.June, 10))
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeExpense,
			Amount:    mustDecimal("5.00"),
			Date:      utcDate(2025, time.June, 12).Add(13 * time.Hour),
		})

		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))

		snapshots := loadSnapshots(t, db, account.ID)
		if got := snapshots["2025-06-11"]; got != "55" {
			t.Errorf("expected 55 at end of June 11, got %s", got)
		}
		for day := range snapshots {
			if day < "2025-06-10" {
				t.Errorf("snapshot %s predates account creation", day)
			}
		}
	})

	t.Run("transfer_reversed_on_both_sides", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		source := testutil.CreateTestAccountWithCurrency(t, db, "100.00", "USD")
		dest := testutil.CreateTestAccountWithCurrency(t, db, "200.00", "EUR")
		backdateAccount(t, db, source, utcDate(2025, time.May, 1))
		backdateAccount(t, db, dest, utcDate(2025, time.May, 1))

		destAmount := mustDecimal("9.00")
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID:           source.ID,
			ToAccountID:         &dest.ID,
			Type:                models.OperationTypeTransfer,
			Amount:              mustDecimal("10.00"),
			DestinationAmount:   &destAmount,
			SourceCurrency:      "USD",
			DestinationCurrency: "EUR",
			Date:                utcDate(2025, time.June, 12).Add(13 * time.Hour),
		})

		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))

		sourceSnaps := loadSnapshots(t, db, source.ID)
		if got := sourceSnaps["2025-06-11"]; got != "110" {
			t.Errorf("expected source 110 before transfer, got %s", got)
		}
		// The destination side is unwound by what actually arrived, not by
		// the source amount.
		destSnaps := loadSnapshots(t, db, dest.ID)
		if got := destSnaps["2025-06-11"]; got != "191" {
			t.Errorf("expected destination 191 before transfer, got %s", got)
		}
	})

	t.Run("rebuild_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		account := testutil.CreateTestAccount(t, db, "100.00")
		backdateAccount(t, db, account, utcDate(2025, time.May, 1))
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeIncome,
			Amount:    mustDecimal("40.00"),
			Date:      utcDate(2025, time.June, 8).Add(10 * time.Hour),
		})

		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))
		first := loadSnapshots(t, db, account.ID)
		testutil.AssertNoError(t, svc.PopulateCurrentMonthHistory(nil))
		second := loadSnapshots(t, db, account.ID)

		if len(first) != len(second) {
			t.Fatalf("rebuild changed row count: %d vs %d", len(first), len(second))
		}
		for day, balance := range first {
			if second[day] != balance {
				t.Errorf("rebuild changed %s: %s vs %s", day, balance, second[day])
			}
		}
	})

	t.Run("runs_inside_caller_transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestHistory(db, today)

		account := testutil.CreateTestAccount(t, db, "30.00")
		backdateAccount(t, db, account, utcDate(2025, time.May, 1))
		testutil.CreateTestOperation(t, db, models.Operation{
			AccountID: account.ID,
			Type:      models.OperationTypeExpense,
			Amount:    mustDecimal("10.00"),
			Date:      utcDate(2025, time.June, 5).Add(10 * time.Hour),
		})

		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.PopulateCurrentMonthHistory(tx)
		})
		testutil.AssertNoError(t, err)

		snapshots := loadSnapshots(t, db, account.ID)
		if got := snapshots["2025-06-04"]; got != "40" {
			t.Errorf("expected 40 at end of June 4, got %s", got)
		}
	})
}

func TestUpdateTodayBalance(t *testing.T) {
	today := utcDate(2025, time.June, 15)
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestHistory(db, today)

	account := testutil.CreateTestAccount(t, db, "10.00")

	svc.UpdateTodayBalance(nil, account.ID, mustDecimal("10.00"))
	svc.UpdateTodayBalance(nil, account.ID, mustDecimal("12.50"))

	snapshots := loadSnapshots(t, db, account.ID)
	if len(snapshots) != 1 {
		t.Fatalf("expected a single today row, got %d", len(snapshots))
	}
	if got := snapshots["2025-06-15"]; got != "12.5" {
		t.Errorf("expected latest balance 12.5, got %s", got)
	}
}

func TestGetBalanceHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewHistoryService(db)

	account := testutil.CreateTestAccount(t, db, "0")
	for day, balance := range map[int]string{3: "10.00", 5: "20.00", 9: "30.00"} {
		err := svc.UpsertBalanceHistory(account.ID, utcDate(2025, time.March, day), mustDecimal(balance))
		testutil.AssertNoError(t, err)
	}

	history, err := svc.GetBalanceHistory(account.ID, utcDate(2025, time.March, 3), utcDate(2025, time.March, 5))
	testutil.AssertNoError(t, err)
	if len(history) != 2 {
		t.Fatalf("expected 2 rows in inclusive range, got %d", len(history))
	}
	if history[0].Day != "2025-03-03" || history[1].Day != "2025-03-05" {
		t.Errorf("expected oldest-first ordering, got %s then %s", history[0].Day, history[1].Day)
	}
}

func TestGetAccountBalanceOnDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewHistoryService(db)

	account := testutil.CreateTestAccount(t, db, "77.00")
	testutil.AssertNoError(t, svc.UpsertBalanceHistory(account.ID, utcDate(2025, time.March, 5), mustDecimal("20.00")))

	t.Run("exact_day", func(t *testing.T) {
		balance, err := svc.GetAccountBalanceOnDate(account.ID, utcDate(2025, time.March, 5))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, "20.00", balance)
	})

	t.Run("newest_snapshot_at_or_before", func(t *testing.T) {
		balance, err := svc.GetAccountBalanceOnDate(account.ID, utcDate(2025, time.March, 8))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, "20.00", balance)
	})

	t.Run("falls_back_to_current_balance", func(t *testing.T) {
		balance, err := svc.GetAccountBalanceOnDate(account.ID, utcDate(2025, time.March, 1))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, "77.00", balance)
	})

	t.Run("missing_account_is_zero", func(t *testing.T) {
		balance, err := svc.GetAccountBalanceOnDate("00000000-0000-0000-0000-000000000000", utcDate(2025, time.March, 5))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimalEqual(t, "0", balance)
	})
}

func TestGetAllAccountsBalanceOnDate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewHistoryService(db)

	a := testutil.CreateTestAccount(t, db, "10.00")
	b := testutil.CreateTestAccount(t, db, "99.00")
	testutil.AssertNoError(t, svc.UpsertBalanceHistory(a.ID, utcDate(2025, time.April, 2), mustDecimal("5.00")))

	balances, err := svc.GetAllAccountsBalanceOnDate(utcDate(2025, time.April, 3))
	testutil.AssertNoError(t, err)
	if len(balances) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(balances))
	}
	testutil.AssertDecimalEqual(t, "5.00", balances[a.ID])
	testutil.AssertDecimalEqual(t, "99.00", balances[b.ID])
}

func TestSnapshotRowMaintenance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewHistoryService(db)

	account := testutil.CreateTestAccount(t, db, "0")

	t.Run("last_snapshot_date_empty_when_none", func(t *testing.T) {
		day, err := svc.GetLastSnapshotDate(account.ID)
		testutil.AssertNoError(t, err)
		if day != "" {
			t.Errorf("expected empty day, got %q", day)
		}
	})

	t.Run("upsert_then_latest", func(t *testing.T) {
		testutil.AssertNoError(t, svc.UpsertBalanceHistory(account.ID, utcDate(2025, time.May, 1), mustDecimal("1.00")))
		testutil.AssertNoError(t, svc.UpsertBalanceHistory(account.ID, utcDate(2025, time.May, 7), mustDecimal("2.00")))

		day, err := svc.GetLastSnapshotDate(account.ID)
		testutil.AssertNoError(t, err)
		if day != "2025-05-07" {
			t.Errorf("expected 2025-05-07, got %q", day)
		}
	})

	t.Run("delete_existing", func(t *testing.T) {
		testutil.AssertNoError(t, svc.DeleteBalanceHistory(account.ID, utcDate(2025, time.May, 7)))
		day, err := svc.GetLastSnapshotDate(account.ID)
		testutil.AssertNoError(t, err)
		if day != "2025-05-01" {
			t.Errorf("expected 2025-05-01 after delete, got %q", day)
		}
	})

	t.Run("delete_missing", func(t *testing.T) {
		err := svc.DeleteBalanceHistory(account.ID, utcDate(2025, time.December, 25))
		testutil.AssertAppError(t, err, "SNAPSHOT_NOT_FOUND")
	})
}
