package sqlite

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

var testOpened = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAccountAndParameterRoundTrip(t *testing.T) {
	store := newTestStore(t)

	params := map[string]string{"denomination": "GBP", "credit_limit": "1000"}
	if err := store.CreateAccount("acct-1", testOpened, params); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	rec, err := store.GetAccount("acct-1")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !rec.CreatedAt.Equal(testOpened) || !rec.Clock.Equal(testOpened) {
		t.Errorf("Timestamps = %v/%v, want %v", rec.CreatedAt, rec.Clock, testOpened)
	}

	loaded, err := store.Parameters("acct-1")
	if err != nil {
		t.Fatalf("Parameters: %v", err)
	}
	if loaded["credit_limit"] != "1000" {
		t.Errorf("credit_limit = %s, want 1000", loaded["credit_limit"])
	}

	// Upsert overwrites.
	if err := store.SetParameter("acct-1", "credit_limit", "2000"); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	loaded, _ = store.Parameters("acct-1")
	if loaded["credit_limit"] != "2000" {
		t.Errorf("credit_limit after upsert = %s, want 2000", loaded["credit_limit"])
	}
}

func TestJournalPreservesOrderAndExactAmounts(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateAccount("acct-1", testOpened, nil); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	amounts := []string{"112.34", "0.01", "1000"}
	for i, amount := range amounts {
		d, _ := decimal.NewFromString(amount)
		err := store.AppendPostings("acct-1", testOpened.AddDate(0, 0, i), []ledger.Posting{{
			Amount:        d,
			Denomination:  "GBP",
			Asset:         ledger.DefaultAsset,
			Phase:         ledger.PhaseCommitted,
			DebitAccount:  "acct-1",
			DebitAddress:  ledger.DefaultAddress,
			CreditAccount: "merchant_settlement",
			CreditAddress: ledger.DefaultAddress,
			Details:       map[string]string{"transaction_code": "00"},
		}})
		if err != nil {
			t.Fatalf("AppendPostings: %v", err)
		}
	}

	journal, err := store.Journal("acct-1")
	if err != nil {
		t.Fatalf("Journal: %v", err)
	}
	if len(journal) != len(amounts) {
		t.Fatalf("Journal length = %d, want %d", len(journal), len(amounts))
	}
	for i, entry := range journal {
		if entry.Posting.Amount.String() != amounts[i] {
			t.Errorf("Entry %d amount = %s, want %s", i, entry.Posting.Amount, amounts[i])
		}
	}
	if journal[0].Posting.Details["transaction_code"] != "00" {
		t.Error("Details lost in round trip")
	}
}

func TestSchedulesUpsertKeepsLatest(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateAccount("acct-1", testOpened, nil); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	first := vault.ScheduleUpdate{
		Event: "PAYMENT_DUE",
		Expr:  vault.ScheduleExpr{Year: "2024", Month: "3", Day: "1"},
	}
	second := vault.ScheduleUpdate{
		Event: "PAYMENT_DUE",
		Expr:  vault.ScheduleExpr{Year: "2024", Month: "4", Day: "1"},
		Skip:  true,
	}
	if err := store.SaveScheduleUpdates("acct-1", []vault.ScheduleUpdate{first}); err != nil {
		t.Fatalf("SaveScheduleUpdates: %v", err)
	}
	if err := store.SaveScheduleUpdates("acct-1", []vault.ScheduleUpdate{second}); err != nil {
		t.Fatalf("SaveScheduleUpdates: %v", err)
	}

	schedules, err := store.Schedules("acct-1")
	if err != nil {
		t.Fatalf("Schedules: %v", err)
	}
	if len(schedules) != 1 {
		t.Fatalf("Schedules length = %d, want 1", len(schedules))
	}
	if schedules[0].Expr.Month != "4" || !schedules[0].Skip {
		t.Errorf("Latest schedule = %+v, want the April skip update", schedules[0])
	}
}

func TestNotificationFilterAndExecutionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateAccount("acct-1", testOpened, nil); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	statement := vault.NewNotification(vault.NotifyStatementData, map[string]string{"current_statement": "300.00"})
	expiry := vault.NewNotification(vault.NotifyInterestFreeExpired, map[string]string{"account_id": "acct-1"})
	if err := store.SaveNotifications("acct-1", testOpened, []vault.Notification{statement, expiry}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	statements, err := store.Notifications("acct-1", vault.NotifyStatementData)
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	if len(statements) != 1 || statements[0].Payload["current_statement"] != "300.00" {
		t.Errorf("Filtered notifications = %+v", statements)
	}
	all, _ := store.Notifications("acct-1", "")
	if len(all) != 2 {
		t.Errorf("All notifications = %d, want 2", len(all))
	}

	executed := testOpened.AddDate(0, 1, 0)
	if err := store.SaveExecution("acct-1", "STATEMENT_CUT_OFF", executed); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}
	executions, err := store.Executions("acct-1")
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if !executions["STATEMENT_CUT_OFF"].Equal(executed) {
		t.Errorf("Execution = %v, want %v", executions["STATEMENT_CUT_OFF"], executed)
	}
}

func TestResetWipesAllTables(t *testing.T) {
	store := newTestStore(t)
	if err := store.CreateAccount("acct-1", testOpened, map[string]string{"denomination": "GBP"}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := store.AppendFlagEvent("acct-1", "REPAYMENT_HOLIDAY", testOpened, true); err != nil {
		t.Fatalf("AppendFlagEvent: %v", err)
	}

	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	ids, err := store.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Accounts after reset = %d, want 0", len(ids))
	}
}
