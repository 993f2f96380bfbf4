package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/card-engine/ledger"
)

const (
	testAccount = "acct-1"
	testDenom   = "GBP"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newBuilder(seed ledger.Snapshot) *ledger.Builder {
	inflight := ledger.NewInFlight(testAccount, seed)
	return ledger.NewBuilder(testAccount, testDenom, inflight)
}

func TestBuilder_MoveUpdatesInFlight(t *testing.T) {
	b := newBuilder(ledger.Snapshot{
		ledger.Coord("PURCHASE_CHARGED", testDenom): dec("100"),
	})

	b.Move(dec("100"), "PURCHASE_CHARGED", "PURCHASE_BILLED", nil)

	require.Len(t, b.Postings(), 1)
	assert.True(t, b.Balances().Net("PURCHASE_CHARGED", testDenom).IsZero())
	assert.True(t, b.Balances().Net("PURCHASE_BILLED", testDenom).Equal(dec("100")))
}

func TestBuilder_ZeroAndNegativeAmountsSkipped(t *testing.T) {
	b := newBuilder(ledger.Snapshot{})

	b.Move(decimal.Zero, "A", "B", nil)
	b.Move(dec("-5"), "A", "B", nil)
	b.Track(decimal.Zero, "TRACK_STATEMENT_REPAYMENTS", nil)

	assert.Zero(t, b.Len())
}

func TestBuilder_SetAbsolute(t *testing.T) {
	// GIVEN: AVAILABLE_BALANCE currently at 800
	b := newBuilder(ledger.Snapshot{
		ledger.Coord(ledger.AvailableBalance, testDenom): dec("800"),
	})

	// WHEN: overwriting to 650, then re-overwriting to the same value
	b.SetAbsolute(ledger.AvailableBalance, dec("650"), nil)
	require.Len(t, b.Postings(), 1)
	b.SetAbsolute(ledger.AvailableBalance, dec("650"), nil)

	// THEN: the second overwrite is a no-op (idempotent re-invocation)
	assert.Len(t, b.Postings(), 1)
	assert.True(t, b.Balances().Net(ledger.AvailableBalance, testDenom).Equal(dec("650")))
}

func TestBuilder_ChargeHitsDefaultOnly(t *testing.T) {
	b := newBuilder(ledger.Snapshot{})

	b.Charge(dec("25"), "interest_income_account", nil)

	require.Len(t, b.Postings(), 1)
	p := b.Postings()[0]
	assert.Equal(t, testAccount, p.DebitAccount)
	assert.Equal(t, ledger.DefaultAddress, p.DebitAddress)
	assert.Equal(t, "interest_income_account", p.CreditAccount)
	// Internal-account leg must not leak into the customer working copy.
	assert.True(t, b.Balances().Net(ledger.DefaultAddress, testDenom).Equal(dec("25")))
}

func TestNewBatch_AssignsID(t *testing.T) {
	at := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	batch := ledger.NewBatch(at, []ledger.Posting{{Amount: dec("1")}})
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, at, batch.ValueTimestamp)
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	orig := ledger.Snapshot{ledger.Coord("PURCHASE_CHARGED", testDenom): dec("10")}
	clone := orig.Clone()
	clone[ledger.Coord("PURCHASE_CHARGED", testDenom)] = dec("99")
	assert.True(t, orig.Net("PURCHASE_CHARGED", testDenom).Equal(dec("10")))
}
