/*
aggregate.go - Derived balances over the sparse ledger

PURPOSE:
  Computes the named aggregate quantities (available, outstanding,
  full-outstanding, overlimit, statement amount) from a balances view,
  and refreshes the info-balance projections at the end of any hook that
  can affect them. Info balances are pure projections: they are only ever
  overwritten to a newly computed absolute value, never independently
  mutated.

INVARIANTS:
  - FULL_OUTSTANDING_BALANCE == OUTSTANDING_BALANCE + charged interest
  - overlimit amount is 0 at or under the credit limit and grows 1:1 above
  - the aggregate refresh is the only non-PDD flow that can exit revolver

SEE ALSO:
  - statement.go: statement amount and MAD at cut-off
  - validate.go: why sufficient-funds reads DEFAULT, not AVAILABLE_BALANCE
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// BalanceView is the read surface shared by snapshots and in-flight copies.
type BalanceView interface {
	Net(address, denomination string) decimal.Decimal
	NetPending(address, denomination string) decimal.Decimal
	Addresses() []string
}

// interestPhases are every accrual-phase variant an interest address can
// carry. Summing across all of them makes aggregation independent of
// whether accrue-from-transaction-day mode is active.
var interestPhases = []ledger.AccrualPhase{
	ledger.PhaseNone, ledger.PhasePreSCOD, ledger.PhasePostSCOD, ledger.PhaseInterestFree,
}

// AggregateBalance sums balances across the (type x status) cross product
// for the requested charge kinds, optionally offsetting the deposit
// balance (money owed back to the customer, so it reduces the aggregate).
func AggregateBalance(
	v BalanceView,
	denomination string,
	feeTypes []string,
	statuses map[ledger.ChargeKind][]ledger.Status,
	txnTypes map[string][]string,
	includeDeposit bool,
) decimal.Decimal {
	total := decimal.Zero

	forEachTypeRef(txnTypes, func(txnType, ref string) {
		for _, status := range statuses[ledger.KindPrincipal] {
			total = total.Add(v.Net(ledger.PrincipalAddress(txnType, status, ref), denomination))
		}
		for _, status := range statuses[ledger.KindInterest] {
			for _, phase := range interestPhases {
				total = total.Add(v.Net(ledger.InterestAddress(txnType, status, ref, phase), denomination))
			}
		}
	})

	for _, feeType := range feeTypes {
		for _, status := range statuses[ledger.KindFee] {
			total = total.Add(v.Net(ledger.FeeAddress(feeType, status), denomination))
		}
	}

	if includeDeposit {
		total = total.Sub(v.Net(ledger.DepositBalance, denomination))
	}
	return total
}

func forEachTypeRef(txnTypes map[string][]string, fn func(txnType, ref string)) {
	for txnType, refs := range txnTypes {
		if len(refs) == 0 {
			fn(txnType, "")
			continue
		}
		for _, ref := range refs {
			fn(txnType, ref)
		}
	}
}

// ChargedInterestTotal sums interest recognized as a customer charge.
func ChargedInterestTotal(v BalanceView, denomination string, txnTypes map[string][]string) decimal.Decimal {
	total := decimal.Zero
	forEachTypeRef(txnTypes, func(txnType, ref string) {
		total = total.Add(v.Net(ledger.InterestAddress(txnType, ledger.StatusCharged, ref, ledger.PhaseNone), denomination))
	})
	return total
}

// AvailableBalance computes what the customer can still spend.
//
// It deliberately reads the unaggregated DEFAULT address rather than the
// AVAILABLE_BALANCE projection: a post-posting hook may be racing a
// scheduled refresh, and DEFAULT is guaranteed fresh as of the posting
// being evaluated. Charged interest is added back because interest does
// not consume the credit limit.
func AvailableBalance(creditLimit decimal.Decimal, v BalanceView, txnTypes map[string][]string, denomination string) decimal.Decimal {
	settled := v.Net(ledger.DefaultAddress, denomination)
	pendingOut := v.NetPending(ledger.DefaultAddress, denomination)
	charged := ChargedInterestTotal(v, denomination, txnTypes)
	return creditLimit.Sub(settled.Add(pendingOut)).Add(charged)
}

// OverlimitAmount returns how far charged-state principal exceeds the
// credit limit, floored at zero.
func OverlimitAmount(v BalanceView, creditLimit decimal.Decimal, denomination string, txnTypes map[string][]string) decimal.Decimal {
	principal := AggregateBalance(v, denomination, nil, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindPrincipal: {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
	}, txnTypes, false)
	over := principal.Sub(creditLimit)
	if over.IsNegative() {
		return decimal.Zero
	}
	return over
}

// OutstandingStatementAmount sums everything billed in prior statements
// and still unpaid, offset by any deposit.
func OutstandingStatementAmount(cfg Config, v BalanceView) decimal.Decimal {
	return AggregateBalance(v, cfg.Denomination, cfg.FeeTypes(), map[ledger.ChargeKind][]ledger.Status{
		ledger.KindPrincipal: ledger.StatementStates,
		ledger.KindInterest:  ledger.StatementStates,
		ledger.KindFee:       ledger.StatementStates,
	}, cfg.SupportedTypes(), true)
}

// OutstandingBalance is all recognized customer debt except charged
// interest: principal and fees in any charged state, plus billed/unpaid
// interest, offset by deposit.
func OutstandingBalance(cfg Config, v BalanceView) decimal.Decimal {
	return AggregateBalance(v, cfg.Denomination, cfg.FeeTypes(), map[ledger.ChargeKind][]ledger.Status{
		ledger.KindPrincipal: {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
		ledger.KindInterest:  ledger.StatementStates,
		ledger.KindFee:       {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
	}, cfg.SupportedTypes(), true)
}

// FullOutstandingBalance adds charged interest on top of the outstanding
// balance.
func FullOutstandingBalance(cfg Config, v BalanceView) decimal.Decimal {
	return OutstandingBalance(cfg, v).Add(ChargedInterestTotal(v, cfg.Denomination, cfg.SupportedTypes()))
}

// AdjustAggregateBalances recomputes the info projections from the
// in-flight balances and emits the delta postings that overwrite each to
// its new absolute value. Zero deltas emit nothing.
//
// If the full outstanding balance has dropped to or below zero the
// revolver flag address is flipped back to 0 (transactor). This is the
// only place a non-PDD flow can exit revolver status.
func AdjustAggregateBalances(cfg Config, b *ledger.Builder) {
	v := b.Balances()

	available := AvailableBalance(cfg.CreditLimit, v, cfg.SupportedTypes(), cfg.Denomination)
	outstanding := OutstandingBalance(cfg, v)
	full := FullOutstandingBalance(cfg, v)

	details := map[string]string{ledger.DetailEvent: "aggregate_refresh"}
	b.SetAbsolute(ledger.AvailableBalance, available, details)
	b.SetAbsolute(ledger.OutstandingBalance, outstanding, details)
	b.SetAbsolute(ledger.FullOutstandingBalance, full, details)

	if !full.IsPositive() && v.Net(ledger.RevolverBalance, cfg.Denomination).IsPositive() {
		b.SetAbsolute(ledger.RevolverBalance, decimal.Zero, map[string]string{
			ledger.DetailEvent:       "aggregate_refresh",
			ledger.DetailDescription: "fully repaid, exiting revolver",
		})
	}
}
