/*
validate.go - Pre-posting validation

PURPOSE:
  Runs synchronously before any posting is admitted and short-circuits on
  the first rejection, in this order: denomination, reference
  presence/uniqueness, sufficient funds (with the one-shot overlimit
  allowance), per-transaction-type credit sub-limits, and time-window
  limits. A rejection is data: it aborts the posting with no side effects.

RACE TOLERANCE:
  Sufficient funds combines the proposed delta with the available balance
  computed from the unaggregated DEFAULT address. The AVAILABLE_BALANCE
  projection may be stale while a post-posting hook races a scheduled
  refresh; DEFAULT is fresh as of the posting being evaluated.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// ProposedPosting is the host's description of the posting under
// validation.
type ProposedPosting struct {
	Amount       decimal.Decimal
	Denomination string
	Phase        ledger.Phase
	// Credit marks repayments (settlement credits, transfers in); credits
	// skip the spend-side checks.
	Credit  bool
	Details map[string]string
	At      time.Time
}

// ValidatePosting admits or rejects a proposed posting. A nil return
// admits it.
func ValidatePosting(cfg Config, v BalanceView, p ProposedPosting, creation time.Time) *vault.Rejection {
	// 1. Denomination.
	if p.Denomination != cfg.Denomination {
		return vault.Reject(vault.RejectWrongDenomination,
			fmt.Sprintf("postings must be in %s", cfg.Denomination))
	}
	if p.Credit {
		return nil
	}

	txnType, ref := ledger.TxnTypeAndRefFromPosting(p.Details, cfg.TxnCodeToType, cfg.TxnTypes, cfg.DefaultTxnType)

	// 2. Reference presence and uniqueness for sub-ledger types.
	if rejection := validateRef(cfg, v, txnType, ref); rejection != nil {
		return rejection
	}

	// 3. Sufficient funds.
	if rejection := validateFunds(cfg, v, p.Amount); rejection != nil {
		return rejection
	}

	// 4. Per-type credit sub-limits.
	if rejection := validateTxnTypeLimit(cfg, v, txnType, p.Amount); rejection != nil {
		return rejection
	}

	// 5. Time-window limits.
	if rejection := validateTimeWindow(cfg, txnType, p.At, creation); rejection != nil {
		return rejection
	}
	return nil
}

func validateRef(cfg Config, v BalanceView, txnType, ref string) *vault.Rejection {
	if !cfg.RequiresRef(txnType) {
		return nil
	}
	if ref == "" {
		return vault.Reject(vault.RejectAgainstTerms,
			fmt.Sprintf("transaction type %s requires a transaction reference", txnType))
	}
	declared := false
	for _, known := range cfg.DeclaredRefs(txnType) {
		if known == ref {
			declared = true
			break
		}
	}
	if !declared {
		return vault.Reject(vault.RejectAgainstTerms,
			fmt.Sprintf("undeclared transaction reference %s for %s", ref, txnType))
	}
	if v.Net(ledger.PrincipalAddress(txnType, ledger.StatusCharged, ref), cfg.Denomination).IsPositive() {
		return vault.Reject(vault.RejectAgainstTerms,
			fmt.Sprintf("transaction reference %s for %s already in use", ref, txnType))
	}
	return nil
}

func validateFunds(cfg Config, v BalanceView, amount decimal.Decimal) *vault.Rejection {
	available := AvailableBalance(cfg.CreditLimit, v, cfg.SupportedTypes(), cfg.Denomination)
	if amount.LessThanOrEqual(available) {
		return nil
	}
	// The overlimit opt-in is a one-time-use buffer on entry, not ongoing
	// capacity: already-overlimit accounts are rejected even when opted in.
	if cfg.OverlimitOptIn &&
		OverlimitAmount(v, cfg.CreditLimit, cfg.Denomination, cfg.SupportedTypes()).IsZero() {
		return nil
	}
	return vault.Reject(vault.RejectInsufficientFunds,
		fmt.Sprintf("insufficient funds: available %s, requested %s",
			available.StringFixed(2), amount.StringFixed(2)))
}

func validateTxnTypeLimit(cfg Config, v BalanceView, txnType string, amount decimal.Decimal) *vault.Rejection {
	limit, ok := cfg.TxnTypeLimits[txnType]
	if !ok {
		return nil
	}
	ceiling := typeLimitCap(cfg, limit)
	if ceiling == nil {
		return nil
	}

	// Existing CHARGED principal for the type, across all refs.
	existing := decimal.Zero
	refs := append([]string{""}, cfg.DeclaredRefs(txnType)...)
	for _, ref := range refs {
		existing = existing.Add(v.Net(ledger.PrincipalAddress(txnType, ledger.StatusCharged, ref), cfg.Denomination))
	}
	if existing.Add(amount).GreaterThan(*ceiling) {
		return vault.Reject(vault.RejectAgainstTerms,
			fmt.Sprintf("%s exceeds its credit limit of %s", txnType, ceiling.StringFixed(2)))
	}
	return nil
}

// typeLimitCap resolves the lesser of the flat cap and the
// percentage-of-overall-limit cap.
func typeLimitCap(cfg Config, limit TxnLimit) *decimal.Decimal {
	var ceiling *decimal.Decimal
	if limit.Flat != nil {
		ceiling = limit.Flat
	}
	if limit.PctOfLimit != nil {
		pctCap := limit.PctOfLimit.Mul(cfg.CreditLimit)
		if ceiling == nil || pctCap.LessThan(*ceiling) {
			ceiling = &pctCap
		}
	}
	return ceiling
}

func validateTimeWindow(cfg Config, txnType string, at, creation time.Time) *vault.Rejection {
	limit, ok := cfg.TxnTypeLimits[txnType]
	if !ok || limit.AllowedDays == nil {
		return nil
	}
	// Measured account-creation time-of-day to posting time-of-day.
	windowEnd := creation.AddDate(0, 0, *limit.AllowedDays)
	if at.After(windowEnd) {
		return vault.Reject(vault.RejectAgainstTerms,
			fmt.Sprintf("%s is only allowed within %d days of account opening", txnType, *limit.AllowedDays))
	}
	return nil
}
