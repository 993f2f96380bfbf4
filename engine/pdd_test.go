package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/card-engine/ledger"
)

func TestPaymentDueFullyRepaidTransactor(t *testing.T) {
	cfg := testConfig()

	// GIVEN a transactor whose statement was repaid in full, with interest
	// still sitting uncharged
	seed := ledger.Snapshot{
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom): dec("6.60"),
	}
	b := newTestBuilder(seed)

	res := ProcessPaymentDue(cfg, AccountState{}, b)

	// THEN the accrued interest is forgiven, not charged
	require.True(t, res.FullyRepaid)
	assert.False(t, res.BecameRevolver)
	assert.True(t, b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom).IsZero())
	assert.True(t, b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone), testDenom).IsZero())
	assert.True(t, b.Balances().Net(ledger.DefaultAddress, testDenom).IsZero())
}

func TestPaymentDueEntersRevolverAndChargesInterest(t *testing.T) {
	cfg := testConfig()

	// GIVEN an unpaid statement with uncharged interest
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                                           dec("500"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom):                    dec("500"),
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom): dec("6.60"),
		ledger.Coord(ledger.MADBalance, testDenom):                                                               dec("100"),
	}
	b := newTestBuilder(seed)

	res := ProcessPaymentDue(cfg, AccountState{}, b)

	// THEN the account flips to revolver and all uncharged interest becomes
	// a real charge
	require.True(t, res.BecameRevolver)
	assert.True(t, b.Balances().Net(ledger.RevolverBalance, testDenom).Equal(dec("1")))
	assert.True(t, b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone), testDenom).Equal(dec("6.60")))

	// AND the missed MAD charged the late fee and seeded the overdue bucket
	require.True(t, res.MADShortfall.Equal(dec("100")), "shortfall = %s", res.MADShortfall)
	assert.True(t, res.LateFeeCharged)
	assert.True(t, b.Balances().Net(
		ledger.FeeAddress(FeeLateRepayment, ledger.StatusCharged), testDenom).Equal(dec("25")))
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(1), testDenom).Equal(dec("100")))

	// AND the billed statement moved to UNPAID
	assert.True(t, b.Balances().Net(
		ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom).IsZero())
	assert.True(t, b.Balances().Net(
		ledger.PrincipalAddress("purchase", ledger.StatusUnpaid, ""), testDenom).Equal(dec("500")))

	// AND the interest-free expiry notification went out
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "EXPIRE_INTEREST_FREE_PERIODS_NOTIFICATION", res.Notifications[0].Type)
}

func TestPaymentDueExactMADRepaymentAvoidsLateFee(t *testing.T) {
	cfg := testConfig()

	// GIVEN exactly the minimum amount repaid this cycle
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                        dec("400"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("400"),
		ledger.Coord(ledger.MADBalance, testDenom):                                           dec("100"),
		ledger.Coord(ledger.TrackStatementRepayments, testDenom):                             dec("100"),
	}
	b := newTestBuilder(seed)

	res := ProcessPaymentDue(cfg, AccountState{}, b)

	assert.True(t, res.MADShortfall.IsZero())
	assert.False(t, res.LateFeeCharged)
	assert.Empty(t, res.Notifications)
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(1), testDenom).IsZero())
	// Still a revolver though: the statement was not fully repaid.
	assert.True(t, res.BecameRevolver)
}

func TestPaymentDueMADShortfallRevokesInterestFreePeriod(t *testing.T) {
	cfg := testConfig()

	// GIVEN interest accrued into the interest-free bucket and a missed MAD
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                        dec("300"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("300"),
		ledger.Coord(ledger.MADBalance, testDenom):                                           dec("100"),
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseInterestFree), testDenom): dec("2.40"),
	}
	b := newTestBuilder(seed)

	ProcessPaymentDue(cfg, AccountState{}, b)

	// THEN the promo interest was reversed out of its bucket and charged
	// exactly once
	assert.True(t, b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseInterestFree), testDenom).IsZero())
	assert.True(t, b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone), testDenom).Equal(dec("2.40")))
}

func TestPaymentDueOverdueBucketsAgeOneCycle(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                        dec("500"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusUnpaid, ""), testDenom): dec("500"),
		ledger.Coord(ledger.MADBalance, testDenom):                                           dec("60"),
		ledger.Coord(ledger.OverdueAddress(1), testDenom):                                    dec("40"),
		ledger.Coord(ledger.OverdueAddress(2), testDenom):                                    dec("70"),
	}
	b := newTestBuilder(seed)

	res := ProcessPaymentDue(cfg, AccountState{IsRevolver: true}, b)

	// Each bucket moved exactly one cycle; the new shortfall seeds bucket 1.
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(3), testDenom).Equal(dec("70")))
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(2), testDenom).Equal(dec("40")))
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(1), testDenom).Equal(res.MADShortfall))
}

func TestPaymentDueBlockingFlags(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                        dec("500"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("500"),
		ledger.Coord(ledger.MADBalance, testDenom):                                           dec("100"),
	}
	b := newTestBuilder(seed)

	ProcessPaymentDue(cfg, AccountState{
		IsRevolver:            true,
		OverdueAgingBlocked:   true,
		BilledToUnpaidBlocked: true,
	}, b)

	// A repayment holiday: the fee may still charge but nothing ages and
	// the statement stays BILLED.
	assert.True(t, b.Balances().Net(ledger.OverdueAddress(1), testDenom).IsZero())
	assert.True(t, b.Balances().Net(
		ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom).Equal(dec("500")))
	assert.True(t, b.Balances().Net(
		ledger.PrincipalAddress("purchase", ledger.StatusUnpaid, ""), testDenom).IsZero())
}

func TestPaymentDueMADZeroFlagClearsMAD(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                        dec("500"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("500"),
		ledger.Coord(ledger.MADBalance, testDenom):                                           dec("100"),
	}
	b := newTestBuilder(seed)

	res := ProcessPaymentDue(cfg, AccountState{IsRevolver: true, MADEqualsZero: true}, b)

	assert.True(t, res.MADShortfall.IsZero())
	assert.False(t, res.LateFeeCharged)
	assert.True(t, b.Balances().Net(ledger.MADBalance, testDenom).IsZero())
}
