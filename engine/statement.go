/*
statement.go - Statement cut-off (SCOD)

PURPOSE:
  Closes a billing cycle: charges the overlimit fee, promotes CHARGED
  amounts to BILLED at their cutoff-instant values, computes the statement
  amount and the minimum amount due, overwrites the statement projections,
  resets the repayment tracker, corrects for postings that landed between
  the nominal cutoff and the schedule's actual execution, and emits the
  statement-data notification.

CUTOFF VALUATION:
  Billing amounts come from the balances at cutoff-minus-1-microsecond,
  NOT the live balances: the schedule may run after further postings have
  landed. The correction pass at the end re-diffs the live addresses and
  moves any negative CHARGED residue back in line.

SEE ALSO:
  - pdd.go: the payment-due processing three weeks later
  - close.go: the final statement run during closure
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// StatementInput carries the cut-off context resolved by the hooks layer.
type StatementInput struct {
	State AccountState

	// SCODStart is the nominal cut-off day being processed.
	SCODStart time.Time

	// Cutoff is the balance snapshot at cutoff-minus-1-microsecond.
	Cutoff BalanceView

	// IsFinal marks the closure statement: no live-timeline correction and
	// no PDD-relative date math.
	IsFinal bool
}

// StatementResult reports what the cut-off produced.
type StatementResult struct {
	StatementAmount decimal.Decimal
	MAD             decimal.Decimal
	NextPDD         time.Time
	NextSCODStart   time.Time
}

// ProcessStatementCutOff runs the full SCOD pipeline against the builder's
// in-flight balances (seeded from the live observation).
func ProcessStatementCutOff(cfg Config, in StatementInput, b *ledger.Builder) StatementResult {
	// (a) Overlimit fee, assessed against the cutoff snapshot and billed
	// with the closing statement. The final/closure statement never charges
	// it: there is no next cycle to bill into.
	overlimitFee := decimal.Zero
	if !in.IsFinal {
		overlimitFee = ChargeOverlimitFee(cfg, b, in.Cutoff)
	}

	// (b) CHARGED -> BILLED. Regular statements value at the cutoff
	// instant; the closure statement values live, since the account is
	// being settled as of now rather than as of a nominal cutoff.
	valuation := BalanceView(in.Cutoff)
	if in.IsFinal {
		valuation = b.Balances()
	}
	billCutoffBalances(cfg, in, b, valuation, overlimitFee)

	// (c) Statement amount and MAD over the post-billing balances.
	statementAmount := OutstandingStatementAmount(cfg, b.Balances())
	mad := ComputeMAD(cfg, in.State, b.Balances(), statementAmount, in.IsFinal)

	// (d) Overwrite the statement projections and reset the repayment
	// tracker for the new cycle.
	details := map[string]string{ledger.DetailEvent: "statement_cut_off"}
	b.SetAbsolute(ledger.StatementBalance, statementAmount, details)
	b.SetAbsolute(ledger.MADBalance, mad, details)
	b.SetAbsolute(ledger.TrackStatementRepayments, decimal.Zero, details)

	// (e) Correct for postings that landed after the nominal cutoff but
	// before this schedule ran.
	if !in.IsFinal {
		correctBillingResidue(cfg, b)
	}

	AdjustAggregateBalances(cfg, b)

	result := StatementResult{StatementAmount: statementAmount, MAD: mad}
	if !in.IsFinal {
		result.NextPDD = PDDFromSCOD(in.SCODStart, cfg.PaymentDuePeriodDays)
		result.NextSCODStart = NextSCODStart(in.SCODStart)
	}
	return result
}

// billCutoffBalances promotes principal, fees, and interest from CHARGED
// to BILLED at their cutoff-instant values, plus the overlimit fee charged
// moments ago by this very pipeline. In accrue-from-transaction-day mode
// the cycle's PRE_SCOD uncharged interest is promoted to POST_SCOD instead
// of being charged yet.
func billCutoffBalances(cfg Config, in StatementInput, b *ledger.Builder, valuation BalanceView, overlimitFee decimal.Decimal) {
	details := map[string]string{ledger.DetailEvent: "statement_cut_off"}

	for _, tr := range cfg.typeRefs() {
		charged := ledger.PrincipalAddress(tr.txnType, ledger.StatusCharged, tr.ref)
		b.Move(valuation.Net(charged, cfg.Denomination),
			charged, ledger.PrincipalAddress(tr.txnType, ledger.StatusBilled, tr.ref), details)

		if cfg.AccrueInterestFromTxnDay && !in.IsFinal {
			pre := ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, ledger.PhasePreSCOD)
			b.Move(valuation.Net(pre, cfg.Denomination),
				pre, ledger.InterestAddress(tr.txnType, ledger.StatusUncharged, tr.ref, ledger.PhasePostSCOD), details)
		} else {
			charged := ledger.InterestAddress(tr.txnType, ledger.StatusCharged, tr.ref, ledger.PhaseNone)
			b.Move(valuation.Net(charged, cfg.Denomination),
				charged, ledger.InterestAddress(tr.txnType, ledger.StatusBilled, tr.ref, ledger.PhaseNone), details)
		}
	}

	for _, feeType := range cfg.FeeTypes() {
		charged := ledger.FeeAddress(feeType, ledger.StatusCharged)
		amount := valuation.Net(charged, cfg.Denomination)
		if feeType == FeeOverlimit {
			amount = amount.Add(overlimitFee)
		}
		b.Move(amount, charged, ledger.FeeAddress(feeType, ledger.StatusBilled), details)
	}
}

// correctBillingResidue re-diffs the live balances after billing: if a
// CHARGED address went negative (a repayment landed between the nominal
// cutoff and execution), the residue is moved back out of BILLED.
func correctBillingResidue(cfg Config, b *ledger.Builder) {
	details := map[string]string{
		ledger.DetailEvent:       "statement_cut_off",
		ledger.DetailDescription: "cutoff correction for late-landing postings",
	}

	correct := func(chargedAddr, billedAddr string) {
		residue := b.Balances().Net(chargedAddr, cfg.Denomination)
		if residue.IsNegative() {
			b.Move(residue.Neg(), billedAddr, chargedAddr, details)
		}
	}

	for _, tr := range cfg.typeRefs() {
		correct(
			ledger.PrincipalAddress(tr.txnType, ledger.StatusCharged, tr.ref),
			ledger.PrincipalAddress(tr.txnType, ledger.StatusBilled, tr.ref))
		correct(
			ledger.InterestAddress(tr.txnType, ledger.StatusCharged, tr.ref, ledger.PhaseNone),
			ledger.InterestAddress(tr.txnType, ledger.StatusBilled, tr.ref, ledger.PhaseNone))
	}
	for _, feeType := range cfg.FeeTypes() {
		correct(
			ledger.FeeAddress(feeType, ledger.StatusCharged),
			ledger.FeeAddress(feeType, ledger.StatusBilled))
	}
}

// ComputeMAD returns the minimum amount due for a statement.
//
// MAD = max(fixed MAD, percentage MAD) capped at the statement amount;
// zero when the statement amount is non-positive or the MAD-zero flag is
// active; the full statement when the MAD-as-statement flag is active or
// this is the final/closure statement.
func ComputeMAD(cfg Config, st AccountState, v BalanceView, statementAmount decimal.Decimal, isFinal bool) decimal.Decimal {
	if st.MADEqualsFullStmt || isFinal {
		if statementAmount.IsNegative() {
			return decimal.Zero
		}
		return statementAmount
	}
	if !statementAmount.IsPositive() || st.MADEqualsZero {
		return decimal.Zero
	}

	types := cfg.SupportedTypes()
	feeTypes := cfg.FeeTypes()
	principal := AggregateBalance(v, cfg.Denomination, nil, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindPrincipal: ledger.StatementStates,
	}, types, false)
	interest := AggregateBalance(v, cfg.Denomination, nil, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindInterest: ledger.StatementStates,
	}, types, false)
	fees := AggregateBalance(v, cfg.Denomination, feeTypes, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindFee: ledger.StatementStates,
	}, nil, false)

	pctBased := cfg.MADPrincipalPct.Mul(principal).
		Add(cfg.MADInterestPct.Mul(interest)).
		Add(cfg.MADFeePct.Mul(fees)).
		Round(2)

	mad := decimal.Max(cfg.MADFixed, pctBased)
	return decimal.Min(mad, statementAmount)
}

// StatementNotification builds the statement-data payload for downstream
// systems.
func StatementNotification(cfg Config, res StatementResult, periodStart, periodEnd time.Time) vault.Notification {
	payload := map[string]string{
		"account_id":         cfg.AccountID,
		"start_of_statement": periodStart.Format(time.RFC3339),
		"end_of_statement":   periodEnd.Format(time.RFC3339),
		"current_statement":  res.StatementAmount.StringFixed(2),
		"minimum_amount_due": res.MAD.StringFixed(2),
	}
	// The final/closure statement has no next cycle.
	if !res.NextPDD.IsZero() {
		payload["current_payment_due"] = res.NextPDD.Format(time.RFC3339)
		payload["next_statement_cut"] = res.NextSCODStart.Format(time.RFC3339)
	}
	return vault.NewNotification(vault.NotifyStatementData, payload)
}
