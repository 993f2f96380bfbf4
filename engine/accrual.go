/*
accrual.go - Daily interest accrual and interest charging

PURPOSE:
  Runs once per day at the accrual cutoff. For every (transaction type,
  ref) it decides whether to accrue, on what base, at what rate, and into
  which bucket: the regular UNCHARGED intermediate, a PRE_SCOD/POST_SCOD
  sub-bucket (accrue-from-transaction-day mode), the interest-free-period
  bucket (so a promo can be retroactively revoked without touching regular
  accrual), or charged immediately with no intermediate at all.

POLICY SELECTION:
  The branching over revolver / charge-immediately / interest-free /
  accrue-from-txn-day flags collapses to one policy per (type, ref),
  chosen by selectAccrualPolicy. Each policy has exactly one accrual
  destination.

ROUNDING:
  daily rate  = yearly / (366 if leap else 365), rounded to 10 dp
  accrual     = daily rate x base,               rounded to 2 dp

SEE ALSO:
  - statement.go: PRE_SCOD -> POST_SCOD promotion at cut-off
  - pdd.go: revolver flip charging all outstanding uncharged interest
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// =============================================================================
// ACCRUAL POLICY - One closed variant per (type, ref)
// =============================================================================

type accrualPolicy int

const (
	// policySkip: nothing to accrue for this pair today.
	policySkip accrualPolicy = iota
	// policyUncharged: accrue into the UNCHARGED intermediate.
	policyUncharged
	// policySplitSCOD: accrue CHARGED-only into PRE_SCOD and BILLED-only
	// into POST_SCOD so they can be charged independently.
	policySplitSCOD
	// policyInterestFree: accrue into the interest-free-period bucket.
	policyInterestFree
	// policyImmediate: charge directly, bypassing UNCHARGED.
	policyImmediate
)

// selectAccrualPolicy is the pure policy choice for one (type, ref).
func selectAccrualPolicy(cfg Config, st AccountState, interestFree, eligibleAlways bool, txnType string) accrualPolicy {
	chargeImmediate := cfg.ChargesInterestFromTxnDate(txnType)

	if interestFree {
		if !eligibleAlways && !cfg.AccrueInterestFromTxnDay {
			return policySkip
		}
		return policyInterestFree
	}
	if st.IsRevolver || chargeImmediate {
		return policyImmediate
	}
	if !eligibleAlways && !cfg.AccrueInterestFromTxnDay {
		return policySkip
	}
	if cfg.AccrueInterestFromTxnDay {
		return policySplitSCOD
	}
	return policyUncharged
}

// InterestCharge is an accrued amount to be charged with no UNCHARGED
// intermediate (revolver accounts and charge-from-transaction-date types).
type InterestCharge struct {
	TxnType string
	Ref     string
	Amount  decimal.Decimal
}

// AccrualInput is the context the daily accrual runs under.
type AccrualInput struct {
	State AccountState

	// Year of the accrual day, for the leap-year daily rate.
	Year int

	// InterestFree reports whether (type, ref) is inside an active
	// interest-free period. Resolved by the caller against the snapshot
	// taken ahead of the accrual so the whole period is honored.
	InterestFree func(txnType, ref string) bool

	// BetweenPDDAndSCOD zeroes interest-free entries' rates: the period's
	// promotional free interest stays honored for the whole period even
	// if the next period's configuration would restore charging.
	BetweenPDDAndSCOD bool
}

// AccrueInterest runs the daily accrual for every (type, ref). Uncharged
// and interest-free accruals are posted through the builder; amounts to be
// charged immediately are returned for ChargeInterest.
func AccrueInterest(cfg Config, in AccrualInput, b *ledger.Builder) []InterestCharge {
	eligibleAlways := in.State.IsRevolver || OutstandingStatementAmount(cfg, b.Balances()).IsPositive()

	var immediate []InterestCharge
	for _, tr := range cfg.typeRefs() {
		interestFree := in.InterestFree(tr.txnType, tr.ref)
		policy := selectAccrualPolicy(cfg, in.State, interestFree, eligibleAlways, tr.txnType)
		if policy == policySkip {
			continue
		}

		yearly := cfg.YearlyRate(tr.txnType, tr.ref)
		if in.BetweenPDDAndSCOD && interestFree {
			yearly = decimal.Zero
		}
		daily := DailyRate(yearly, in.Year)
		if !daily.IsPositive() {
			continue
		}

		switch policy {
		case policyImmediate:
			amount := daily.Mul(accrualBase(cfg, b.Balances(), tr, ledger.ChargedStates)).Round(2)
			if amount.IsPositive() {
				immediate = append(immediate, InterestCharge{TxnType: tr.txnType, Ref: tr.ref, Amount: amount})
			}
		case policySplitSCOD:
			// CHARGED-only and BILLED-only sub-amounts accrue separately so
			// the cut-off can promote and charge them at different times.
			pre := daily.Mul(accrualBase(cfg, b.Balances(), tr, []ledger.Status{ledger.StatusAuth, ledger.StatusCharged})).Round(2)
			post := daily.Mul(accrualBase(cfg, b.Balances(), tr, ledger.StatementStates)).Round(2)
			postUncharged(cfg, b, tr, pre, ledger.PhasePreSCOD)
			postUncharged(cfg, b, tr, post, ledger.PhasePostSCOD)
		case policyInterestFree:
			amount := daily.Mul(accrualBase(cfg, b.Balances(), tr, ledger.ChargedStates)).Round(2)
			postUncharged(cfg, b, tr, amount, ledger.PhaseInterestFree)
		default:
			amount := daily.Mul(accrualBase(cfg, b.Balances(), tr, ledger.ChargedStates)).Round(2)
			postUncharged(cfg, b, tr, amount, ledger.PhaseNone)
		}
	}
	return immediate
}

// accrualBase sums the principal across the given statuses, optionally
// including prior unpaid interest and fees per the product toggles.
func accrualBase(cfg Config, v BalanceView, tr typeRef, statuses []ledger.Status) decimal.Decimal {
	base := decimal.Zero
	for _, status := range statuses {
		base = base.Add(v.Net(ledger.PrincipalAddress(tr.txnType, status, tr.ref), cfg.Denomination))
	}
	includesUnpaid := false
	for _, status := range statuses {
		if status == ledger.StatusUnpaid {
			includesUnpaid = true
		}
	}
	if includesUnpaid {
		if cfg.AccrueOnUnpaidInterest {
			base = base.Add(v.Net(ledger.InterestAddress(tr.txnType, ledger.StatusUnpaid, tr.ref, ledger.PhaseNone), cfg.Denomination))
		}
		if cfg.AccrueOnUnpaidFees {
			base = base.Add(v.Net(ledger.FeeAddress(strings.ToUpper(tr.txnType)+"_FEE", ledger.StatusUnpaid), cfg.Denomination))
		}
	}
	return base
}

// postUncharged accrues into an uncharged bucket, splitting the funding
// against the deposit balance for any portion the customer already has on
// deposit so the funding stays GL-correct.
func postUncharged(cfg Config, b *ledger.Builder, tr typeRef, amount decimal.Decimal, phase ledger.AccrualPhase) {
	if !amount.IsPositive() {
		return
	}
	address := ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, phase)
	details := map[string]string{
		ledger.DetailEvent:       "accrue_interest",
		ledger.DetailDescription: "daily interest accrued on " + tr.txnType,
	}

	deposit := b.Balances().Net(ledger.DepositBalance, cfg.Denomination)
	if deposit.IsPositive() {
		covered := decimal.Min(amount, deposit)
		coveredDetails := map[string]string{
			ledger.DetailEvent:       "accrue_interest",
			ledger.DetailDescription: "daily interest accrued on " + tr.txnType + " (deposit funded)",
		}
		b.Track(covered, address, coveredDetails)
		amount = amount.Sub(covered)
	}
	b.Track(amount, address, details)
}

// =============================================================================
// CHARGING
// =============================================================================

// ChargeInterest recognizes accrued amounts as customer charges: a real
// movement from DEFAULT to the interest income account plus the mirror
// into the _INTEREST_CHARGED address.
func ChargeInterest(cfg Config, b *ledger.Builder, charges []InterestCharge, event string) {
	for _, c := range charges {
		if !c.Amount.IsPositive() {
			continue
		}
		details := map[string]string{
			ledger.DetailEvent:       event,
			ledger.DetailDescription: "interest charged on " + c.TxnType,
		}
		b.Charge(c.Amount, cfg.InterestIncomeAccount, details)
		b.Track(c.Amount, ledger.InterestAddress(c.TxnType, ledger.StatusCharged, c.Ref, ledger.PhaseNone), details)
	}
}

// ChargeUncharged converts the current uncharged balances in the given
// phase buckets to charged interest. The uncharged balance is reversed
// first so CHARGED and UNCHARGED never double count.
func ChargeUncharged(cfg Config, b *ledger.Builder, phases []ledger.AccrualPhase, event string) {
	for _, tr := range cfg.typeRefs() {
		for _, phase := range phases {
			address := ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, phase)
			amount := b.Balances().Net(address, cfg.Denomination)
			if !amount.IsPositive() {
				continue
			}
			details := map[string]string{
				ledger.DetailEvent:       event,
				ledger.DetailDescription: "uncharged interest recognized on " + tr.txnType,
			}
			b.Untrack(amount, address, details)
			ChargeInterest(cfg, b, []InterestCharge{{TxnType: tr.txnType, Ref: tr.ref, Amount: amount}}, event)
		}
	}
}

// ReverseUncharged zeroes the uncharged balances in the given phase
// buckets without charging them (transactor repaid in full, closure).
func ReverseUncharged(cfg Config, b *ledger.Builder, phases []ledger.AccrualPhase, event string) {
	for _, tr := range cfg.typeRefs() {
		for _, phase := range phases {
			address := ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, phase)
			amount := b.Balances().Net(address, cfg.Denomination)
			if !amount.IsPositive() {
				continue
			}
			b.Untrack(amount, address, map[string]string{
				ledger.DetailEvent:       event,
				ledger.DetailDescription: "uncharged interest reversed on " + tr.txnType,
			})
		}
	}
}

// UnchargedPhases returns the uncharged buckets in play for the current
// accrual mode, excluding the interest-free bucket.
func UnchargedPhases(cfg Config) []ledger.AccrualPhase {
	if cfg.AccrueInterestFromTxnDay {
		return []ledger.AccrualPhase{ledger.PhasePreSCOD, ledger.PhasePostSCOD, ledger.PhaseNone}
	}
	return []ledger.AccrualPhase{ledger.PhaseNone}
}
