/*
pdd.go - Payment due date (PDD) processing

PURPOSE:
  Evaluates the cycle's repayments against the minimum amount due, flips
  transactors carrying a balance into revolver status, charges the late
  fee and revokes interest-free periods on a missed MAD, ages the overdue
  buckets, and moves the unpaid statement into UNPAID status.

ORDER OF OPERATIONS:
  1. Capture then reverse all interest-free-period uncharged interest; it
     must never silently persist past PDD.
  2. Fully repaid transactor: reverse remaining uncharged interest, stop.
  3. Otherwise flip to revolver (charging all uncharged interest,
     including the captured interest-free amounts).
  4. MAD comparison: late fee, expiry notification, retroactive charge of
     the interest-free amounts on a shortfall.
  5. Age overdue buckets, seed OVERDUE_1 from the shortfall.
  6. Move the unbilled remainder of the statement to UNPAID.
  Steps 5 and 6 are independently skippable by blocking flags (active
  repayment holiday).

SEE ALSO:
  - statement.go: the cut-off that produced MAD_BALANCE
  - repayment.go: the tracker this step compares against MAD
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// PDDResult reports what payment-due processing decided.
type PDDResult struct {
	FullyRepaid     bool
	BecameRevolver  bool
	MADShortfall    decimal.Decimal
	LateFeeCharged  bool
	Notifications   []vault.Notification
}

// ProcessPaymentDue runs the PDD pipeline against live balances.
func ProcessPaymentDue(cfg Config, st AccountState, b *ledger.Builder) PDDResult {
	var result PDDResult

	// 1. Interest-free uncharged interest: capture the amounts per
	// (type, ref), then reverse the balances. A MAD shortfall below
	// re-charges the captured amounts, revoking the promotional period.
	ifpCharges := captureUnchargedCharges(cfg, b.Balances(), ledger.PhaseInterestFree)
	ReverseUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhaseInterestFree}, "payment_due")

	// 2. A transactor that repaid the prior statement in full owes no
	// interest: reverse what accrued and stop.
	if !st.IsRevolver && !OutstandingStatementAmount(cfg, b.Balances()).IsPositive() {
		ReverseUncharged(cfg, b, UnchargedPhases(cfg), "payment_due")
		AdjustAggregateBalances(cfg, b)
		result.FullyRepaid = true
		return result
	}

	// 3. Still carrying a balance: enter revolver and recognize all
	// outstanding uncharged interest immediately.
	ifpCharged := false
	if !st.IsRevolver {
		b.SetAbsolute(ledger.RevolverBalance, decimal.NewFromInt(1), map[string]string{
			ledger.DetailEvent:       "payment_due",
			ledger.DetailDescription: "statement not fully repaid, entering revolver",
		})
		ChargeUncharged(cfg, b, UnchargedPhases(cfg), "payment_due")
		ChargeInterest(cfg, b, ifpCharges, "payment_due")
		ifpCharged = true
		result.BecameRevolver = true
	}

	// 4. MAD comparison.
	if st.MADEqualsZero {
		b.SetAbsolute(ledger.MADBalance, decimal.Zero, map[string]string{ledger.DetailEvent: "payment_due"})
	}
	mad := b.Balances().Net(ledger.MADBalance, cfg.Denomination)
	repaid := b.Balances().Net(ledger.TrackStatementRepayments, cfg.Denomination)
	shortfall := mad.Sub(repaid)
	if shortfall.IsPositive() {
		ChargeFee(cfg, b, FeeLateRepayment, cfg.LateRepaymentFee, "payment_due")
		result.LateFeeCharged = cfg.LateRepaymentFee.IsPositive()
		result.Notifications = append(result.Notifications, vault.NewNotification(
			vault.NotifyInterestFreeExpired,
			map[string]string{"account_id": cfg.AccountID},
		))
		if !ifpCharged {
			ChargeInterest(cfg, b, ifpCharges, "payment_due")
		}
	} else {
		shortfall = decimal.Zero
	}
	result.MADShortfall = shortfall

	// 5. Age overdue buckets oldest-last so each moves exactly one cycle,
	// then seed the youngest bucket with the new shortfall.
	if !st.OverdueAgingBlocked {
		ageOverdueBuckets(cfg, b, shortfall)
	}

	// 6. Whatever of the statement is still unpaid becomes UNPAID.
	if !st.BilledToUnpaidBlocked {
		moveBilledToUnpaid(cfg, b)
	}

	AdjustAggregateBalances(cfg, b)
	return result
}

// captureUnchargedCharges snapshots positive uncharged balances in a
// phase bucket as charge instructions, without emitting postings.
func captureUnchargedCharges(cfg Config, v BalanceView, phase ledger.AccrualPhase) []InterestCharge {
	var out []InterestCharge
	for _, tr := range cfg.typeRefs() {
		amount := v.Net(ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, phase), cfg.Denomination)
		if amount.IsPositive() {
			out = append(out, InterestCharge{TxnType: tr.txnType, Ref: tr.ref, Amount: amount})
		}
	}
	return out
}

// ageOverdueBuckets shifts every OVERDUE_n bucket to OVERDUE_n+1 and
// creates/refills OVERDUE_1 from the current shortfall.
func ageOverdueBuckets(cfg Config, b *ledger.Builder, shortfall decimal.Decimal) {
	details := map[string]string{ledger.DetailEvent: "payment_due"}

	maxAge := 0
	for _, addr := range b.Balances().Addresses() {
		if age, ok := ledger.OverdueAge(addr); ok && age > maxAge {
			maxAge = age
		}
	}
	// Oldest first so a bucket is never shifted twice in one pass.
	for age := maxAge; age >= 1; age-- {
		amount := b.Balances().Net(ledger.OverdueAddress(age), cfg.Denomination)
		if amount.IsPositive() {
			b.Move(amount, ledger.OverdueAddress(age), ledger.OverdueAddress(age+1), details)
		}
	}
	if shortfall.IsPositive() {
		b.Track(shortfall, ledger.OverdueAddress(1), details)
	}
}

// moveBilledToUnpaid moves all remaining BILLED balances into UNPAID.
func moveBilledToUnpaid(cfg Config, b *ledger.Builder) {
	details := map[string]string{ledger.DetailEvent: "payment_due"}

	for _, tr := range cfg.typeRefs() {
		billed := ledger.PrincipalAddress(tr.txnType, ledger.StatusBilled, tr.ref)
		b.Move(b.Balances().Net(billed, cfg.Denomination),
			billed, ledger.PrincipalAddress(tr.txnType, ledger.StatusUnpaid, tr.ref), details)

		billedInterest := ledger.InterestAddress(tr.txnType, ledger.StatusBilled, tr.ref, ledger.PhaseNone)
		b.Move(b.Balances().Net(billedInterest, cfg.Denomination),
			billedInterest, ledger.InterestAddress(tr.txnType, ledger.StatusUnpaid, tr.ref, ledger.PhaseNone), details)
	}
	for _, feeType := range cfg.FeeTypes() {
		billed := ledger.FeeAddress(feeType, ledger.StatusBilled)
		b.Move(b.Balances().Net(billed, cfg.Denomination),
			billed, ledger.FeeAddress(feeType, ledger.StatusUnpaid), details)
	}
}
