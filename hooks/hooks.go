/*
hooks.go - Posting lifecycle entry points

PURPOSE:
  PrePosting validates a proposed posting synchronously and with no side
  effects. PostPosting runs after the host has committed a posting and
  rebalances the tracking ledger: authorization mirrors, settlement
  against open authorizations, spend and external-fee mirrors, repayment
  distribution, and the aggregate projection refresh.

AUTHORIZATION LIFECYCLE:
  auth            -> AUTH tracking balance up
  auth adjustment -> AUTH up or down by the signed delta
  settlement      -> AUTH -> CHARGED for the settled portion; overspend
                     beyond the auth tracks straight to CHARGED; a final
                     settlement with no amount settles the full remainder
                     and releases whatever is left
  release         -> AUTH back down

SEE ALSO:
  - scheduled.go: the scheduled-event and activation entry points
  - engine/validate.go: the rejection order PrePosting delegates to
*/
package hooks

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/engine"
	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// PostingKind classifies a committed posting for post-posting processing.
type PostingKind string

const (
	KindAuth           PostingKind = "outbound_authorization"
	KindAuthAdjustment PostingKind = "authorization_adjustment"
	KindSettlement     PostingKind = "settlement"
	KindRelease        PostingKind = "release"
	KindHardSettlement PostingKind = "outbound_hard_settlement"
	KindRepayment      PostingKind = "inbound_hard_settlement"
)

// CommittedPosting is the host's description of a posting it has already
// committed to the DEFAULT address.
type CommittedPosting struct {
	Kind   PostingKind
	Amount decimal.Decimal
	// Final marks a settlement as the last one for its authorization. A
	// final settlement with a zero Amount settles the full remaining
	// authorized amount.
	Final        bool
	Denomination string
	Details      map[string]string
	At           time.Time
}

// PrePosting accepts or rejects a proposed posting. Nil means accepted.
func PrePosting(v vault.Vault, p engine.ProposedPosting) *vault.Rejection {
	cfg := BuildConfig(v)
	return engine.ValidatePosting(cfg, v.BalancesObservation(), p, v.CreationDatetime())
}

// PostPosting rebalances the tracking addresses after the host commits a
// posting. The observation already includes the posting's DEFAULT-address
// effect; this hook adds the mirrors and projections.
func PostPosting(v vault.Vault, p CommittedPosting) vault.HookResult {
	cfg := BuildConfig(v)
	b := ledger.NewBuilder(cfg.AccountID, cfg.Denomination,
		ledger.NewInFlight(cfg.AccountID, v.BalancesObservation()))

	txnType, ref := ledger.TxnTypeAndRefFromPosting(p.Details, cfg.TxnCodeToType, cfg.TxnTypes, cfg.DefaultTxnType)
	authAddr := ledger.PrincipalAddress(txnType, ledger.StatusAuth, ref)
	chargedAddr := ledger.PrincipalAddress(txnType, ledger.StatusCharged, ref)
	details := spendDetails(p, txnType)

	switch p.Kind {
	case KindAuth:
		b.Track(p.Amount, authAddr, details)

	case KindAuthAdjustment:
		if p.Amount.IsPositive() {
			b.Track(p.Amount, authAddr, details)
		} else if p.Amount.IsNegative() {
			authBal := b.Balances().Net(authAddr, cfg.Denomination)
			b.Untrack(decimal.Min(p.Amount.Neg(), authBal), authAddr, details)
		}

	case KindRelease:
		authBal := b.Balances().Net(authAddr, cfg.Denomination)
		released := p.Amount
		if released.IsZero() {
			released = authBal
		}
		b.Untrack(decimal.Min(released, authBal), authAddr, details)

	case KindSettlement:
		settlePosting(cfg, b, p, authAddr, chargedAddr, details)

	case KindHardSettlement:
		if feeType, ok := p.Details[ledger.DetailFeeType]; ok {
			// External fee (dispute, ATM withdrawal): mirrors into the fee
			// bucket rather than principal.
			b.Track(p.Amount, ledger.FeeAddress(strings.ToUpper(feeType), ledger.StatusCharged), details)
		} else {
			b.Track(p.Amount, chargedAddr, details)
		}

	case KindRepayment:
		engine.DistributeRepayment(cfg, b, p.Amount, "repayment")
	}

	engine.AdjustAggregateBalances(cfg, b)

	var result vault.HookResult
	result.AddBatch(p.At, b.Postings())
	return result
}

// settlePosting moves the settled amount from AUTH to CHARGED. Overspend
// beyond the outstanding authorization tracks straight to CHARGED; a final
// settlement releases whatever authorized amount remains unsettled.
func settlePosting(cfg engine.Config, b *ledger.Builder, p CommittedPosting, authAddr, chargedAddr string, details map[string]string) {
	authBal := b.Balances().Net(authAddr, cfg.Denomination)

	amount := p.Amount
	if p.Final && amount.IsZero() {
		amount = authBal
	}

	settled := decimal.Min(amount, authBal)
	if settled.IsPositive() {
		b.Move(settled, authAddr, chargedAddr, details)
	}
	if over := amount.Sub(settled); over.IsPositive() {
		b.Track(over, chargedAddr, details)
	}
	if p.Final {
		if residue := b.Balances().Net(authAddr, cfg.Denomination); residue.IsPositive() {
			b.Untrack(residue, authAddr, details)
		}
	}
}

func spendDetails(p CommittedPosting, txnType string) map[string]string {
	out := map[string]string{
		ledger.DetailEvent:       "post_posting",
		ledger.DetailDescription: string(p.Kind) + " on " + txnType,
	}
	for k, v := range p.Details {
		out[k] = v
	}
	return out
}

// =============================================================================
// PARAMETER CHANGES
// =============================================================================

// ValidateParameterChange guards credit limit reductions: the new limit may
// not drop below the charged-state principal already on the account.
func ValidateParameterChange(v vault.Vault, name, newValue string) *vault.Rejection {
	if name != ParamCreditLimit {
		return nil
	}
	newLimit, err := decimal.NewFromString(newValue)
	if err != nil {
		return vault.Reject(vault.RejectClientCustomReason, "credit_limit must be a decimal amount")
	}
	cfg := BuildConfig(v)
	principal := engine.AggregateBalance(v.BalancesObservation(), cfg.Denomination, nil,
		map[ledger.ChargeKind][]ledger.Status{
			ledger.KindPrincipal: {ledger.StatusCharged, ledger.StatusBilled, ledger.StatusUnpaid},
		}, cfg.SupportedTypes(), false)
	if newLimit.LessThan(principal) {
		return vault.Reject(vault.RejectAgainstTerms,
			"credit limit cannot drop below the outstanding principal of "+principal.StringFixed(2))
	}
	return nil
}

// PostParameterChange refreshes the aggregate projections after a parameter
// commit (a credit limit change moves AVAILABLE_BALANCE).
func PostParameterChange(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	b := ledger.NewBuilder(cfg.AccountID, cfg.Denomination,
		ledger.NewInFlight(cfg.AccountID, v.BalancesObservation()))
	engine.AdjustAggregateBalances(cfg, b)

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	return result
}
