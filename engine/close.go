/*
close.go - Account closure and write-off

PURPOSE:
  Deactivation is rejected unless a closure or write-off flag is active.
  Closure without write-off requires a fully repaid account with no open
  authorizations. Write-off funds the outstanding debt from dedicated
  internal accounts and pushes it through the normal repayment
  distributor so double entry stays balanced, then a final statement runs
  and every remaining non-info balance is zeroed.

RE-INVOCATION:
  The flow is safely re-invokable: AVAILABLE_BALANCE is zeroed with an
  absolute overwrite rather than a relative delta, and a second run over
  an already-clean account emits no further balance-moving postings.

UNCHARGED REVERSAL ORDER:
  The uncharged interest reversal runs as one explicit ordered pipeline:
  regular, then PRE_SCOD/POST_SCOD, then interest-free. Each stage only
  touches its own bucket, so the ordering is an enforced property of the
  pipeline rather than an accident of call sequence.
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// CloseResult reports the closure outcome.
type CloseResult struct {
	WrittenOff decimal.Decimal
	Statement  StatementResult
}

// CloseAccount runs the deactivation flow. A non-nil rejection means the
// preconditions were not met and nothing was emitted.
func CloseAccount(cfg Config, st AccountState, in StatementInput, b *ledger.Builder) (CloseResult, *vault.Rejection) {
	if !st.ClosureRequested && !st.WriteOffRequested {
		return CloseResult{}, vault.Reject(vault.RejectAgainstTerms,
			"account closure requires an active closure or write-off flag")
	}

	if !st.WriteOffRequested {
		full := FullOutstandingBalance(cfg, b.Balances())
		if !full.IsZero() {
			return CloseResult{}, vault.Reject(vault.RejectAgainstTerms,
				"account cannot close with a non-zero full outstanding balance")
		}
		if hasOpenAuthorizations(cfg, b.Balances()) {
			return CloseResult{}, vault.Reject(vault.RejectAgainstTerms,
				"account cannot close with open authorizations")
		}
	}

	var result CloseResult
	if st.WriteOffRequested {
		result.WrittenOff = writeOff(cfg, b)
	}

	// Final statement: no live correction, MAD forced to the statement.
	in.IsFinal = true
	result.Statement = ProcessStatementCutOff(cfg, in, b)

	// Zero what remains: still-uncharged interest in every bucket, then
	// the available projection (absolute overwrite, not a delta).
	ReverseUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhaseNone}, "close_account")
	ReverseUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhasePreSCOD, ledger.PhasePostSCOD}, "close_account")
	ReverseUncharged(cfg, b, []ledger.AccrualPhase{ledger.PhaseInterestFree}, "close_account")
	b.SetAbsolute(ledger.AvailableBalance, decimal.Zero, map[string]string{
		ledger.DetailEvent: "close_account",
	})

	return result, nil
}

// hasOpenAuthorizations reports any outstanding pending amounts or AUTH
// tracking balances.
func hasOpenAuthorizations(cfg Config, v BalanceView) bool {
	if !v.NetPending(ledger.DefaultAddress, cfg.Denomination).IsZero() {
		return true
	}
	for _, tr := range cfg.typeRefs() {
		if !v.Net(ledger.PrincipalAddress(tr.txnType, ledger.StatusAuth, tr.ref), cfg.Denomination).IsZero() {
			return true
		}
	}
	return false
}

// writeOff funds the outstanding debt from the write-off internal
// accounts and repays it through the normal distributor.
func writeOff(cfg Config, b *ledger.Builder) decimal.Decimal {
	types := cfg.SupportedTypes()
	feeTypes := cfg.FeeTypes()

	principalAndFees := AggregateBalance(b.Balances(), cfg.Denomination, feeTypes, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindPrincipal: {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
		ledger.KindFee:       {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
	}, types, false)
	interest := AggregateBalance(b.Balances(), cfg.Denomination, nil, map[ledger.ChargeKind][]ledger.Status{
		ledger.KindInterest: {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
	}, types, false)

	details := map[string]string{ledger.DetailEvent: "write_off"}
	if principalAndFees.IsPositive() {
		b.Fund(principalAndFees, cfg.PrincipalWriteOffAccount, details)
	}
	if interest.IsPositive() {
		b.Fund(interest, cfg.InterestWriteOffAccount, details)
	}

	total := principalAndFees.Add(interest)
	if total.IsPositive() {
		DistributeRepayment(cfg, b, total, "write_off")
	}
	return total
}
