package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/card-engine/ledger"
)

func noFreePeriod(string, string) bool { return false }

func TestSelectAccrualPolicy(t *testing.T) {
	cfg := testConfig()

	cases := []struct {
		name           string
		state          AccountState
		interestFree   bool
		eligibleAlways bool
		txnType        string
		accrueFromTxn  bool
		want           accrualPolicy
	}{
		{"transactor, nothing outstanding", AccountState{}, false, false, "purchase", false, policySkip},
		{"transactor with outstanding statement", AccountState{}, false, true, "purchase", false, policyUncharged},
		{"revolver charges immediately", AccountState{IsRevolver: true}, false, true, "purchase", false, policyImmediate},
		{"charge-from-txn-date type", AccountState{}, false, false, "cash_advance", false, policyImmediate},
		{"interest-free wins over revolver", AccountState{IsRevolver: true}, true, true, "purchase", false, policyInterestFree},
		{"interest-free, ineligible, no txn-day mode", AccountState{}, true, false, "purchase", false, policySkip},
		{"txn-day mode splits buckets", AccountState{}, false, true, "purchase", true, policySplitSCOD},
		{"txn-day mode accrues even when ineligible", AccountState{}, false, false, "purchase", true, policySplitSCOD},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := cfg
			c.AccrueInterestFromTxnDay = tc.accrueFromTxn
			got := selectAccrualPolicy(c, tc.state, tc.interestFree, tc.eligibleAlways, tc.txnType)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAccrueInterestRevolver(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(nil)
	spend(b, cfg, dec("1000"), "purchase", "")

	// WHEN a revolver account accrues for one common-year day
	immediate := AccrueInterest(cfg, AccrualInput{
		State:        AccountState{IsRevolver: true},
		Year:         2023,
		InterestFree: noFreePeriod,
	}, b)

	// THEN the purchase interest is returned for immediate charging:
	// 0.24/365 -> 0.0006575342 daily, x1000 -> 0.66 after rounding.
	require.Len(t, immediate, 1)
	assert.Equal(t, "purchase", immediate[0].TxnType)
	assert.True(t, immediate[0].Amount.Equal(dec("0.66")), "amount = %s", immediate[0].Amount)

	// AND no uncharged balance was created.
	uncharged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, uncharged.IsZero())
}

func TestAccrueInterestTransactorWithStatement(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("1000"),
	}
	b := newTestBuilder(seed)

	immediate := AccrueInterest(cfg, AccrualInput{Year: 2023, InterestFree: noFreePeriod}, b)

	// Transactor accrual goes through the UNCHARGED intermediate.
	assert.Empty(t, immediate)
	uncharged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, uncharged.Equal(dec("0.66")), "uncharged = %s", uncharged)
}

func TestAccrueInterestNothingOutstandingSkips(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(nil)
	spend(b, cfg, dec("500"), "purchase", "")

	before := b.Len()
	immediate := AccrueInterest(cfg, AccrualInput{Year: 2023, InterestFree: noFreePeriod}, b)

	// No statement outstanding and not a revolver: purchases skip. Only the
	// charge-from-transaction-date type would accrue, and it has no balance.
	assert.Empty(t, immediate)
	assert.Equal(t, before, b.Len())
}

func TestAccrueInterestFreePeriodBucket(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("1000"),
	}
	b := newTestBuilder(seed)

	AccrueInterest(cfg, AccrualInput{
		Year:         2023,
		InterestFree: func(txnType, _ string) bool { return txnType == "purchase" },
	}, b)

	free := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseInterestFree), testDenom)
	regular := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, free.Equal(dec("0.66")), "interest-free bucket = %s", free)
	assert.True(t, regular.IsZero())
}

func TestAccrueInterestBetweenPDDAndSCODZeroesFreeRate(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("1000"),
	}
	b := newTestBuilder(seed)

	before := b.Len()
	AccrueInterest(cfg, AccrualInput{
		Year:              2023,
		InterestFree:      func(txnType, _ string) bool { return txnType == "purchase" },
		BetweenPDDAndSCOD: true,
	}, b)

	// The promo stays honored for the whole period: rate forced to zero.
	assert.Equal(t, before, b.Len())
}

func TestAccrualDepositFundedSplit(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusBilled, ""), testDenom): dec("1000"),
		ledger.Coord(ledger.DepositBalance, testDenom):                                       dec("0.30"),
	}
	b := newTestBuilder(seed)

	AccrueInterest(cfg, AccrualInput{Year: 2023, InterestFree: noFreePeriod}, b)

	// 0.66 accrued: 0.30 deposit-funded + 0.36 regular, same address.
	uncharged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, uncharged.Equal(dec("0.66")), "uncharged = %s", uncharged)
	assert.Equal(t, 2, b.Len())
}

func TestChargeUnchargedMovesToCharged(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom): dec("4.20"),
	}
	b := newTestBuilder(seed)

	ChargeUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhaseNone}, "payment_due")

	uncharged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	charged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, uncharged.IsZero(), "uncharged must be cleared, got %s", uncharged)
	assert.True(t, charged.Equal(dec("4.20")), "charged = %s", charged)
	// The real movement landed on DEFAULT.
	assert.True(t, b.Balances().Net(ledger.DefaultAddress, testDenom).Equal(dec("4.20")))
}

func TestReverseUnchargedEmitsNoCharge(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom): dec("1.10"),
	}
	b := newTestBuilder(seed)

	ReverseUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhaseNone}, "payment_due")

	uncharged := b.Balances().Net(
		ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom)
	assert.True(t, uncharged.IsZero())
	assert.True(t, b.Balances().Net(ledger.DefaultAddress, testDenom).IsZero())
}

func TestYearlyRateRefOverride(t *testing.T) {
	cfg := testConfig()
	assert.True(t, cfg.YearlyRate("balance_transfer", "REF1").Equal(dec("0.22")))
	assert.True(t, cfg.YearlyRate("balance_transfer", "REF2").Equal(dec("0.25")))
}
