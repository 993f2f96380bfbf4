/*
repayment.go - Repayment distribution

PURPOSE:
  Allocates an incoming credit across the repayment hierarchy: bank
  charges before principal, statement statuses before the current cycle,
  and within each band transaction types ordered by descending annual
  rate. Whatever the hierarchy cannot absorb becomes a deposit
  (prepayment) balance.

OVERDUE BUCKETS:
  Overdue buckets are repaid oldest-first, separately from the hierarchy.
  This order is intentional: clearing the oldest bucket first improves
  days-past-due metrics immediately, whereas the statement hierarchy is
  ordered for interest cost.

DETERMINISM:
  Construction is pure given (balances, amount, hierarchy): re-running
  with the same inputs produces the same postings. Rate ties break by
  descending stem name.
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// RepaymentResult reports how an incoming credit was allocated.
type RepaymentResult struct {
	// Repaid is the amount absorbed by the hierarchy.
	Repaid decimal.Decimal
	// ToDeposit is the unallocated remainder posted to DEPOSIT_BALANCE.
	ToDeposit decimal.Decimal
}

// DistributeRepayment walks the hierarchy with the given amount. The
// caller has already established the credit on the DEFAULT address; this
// function clears the tracking buckets it pays down and records the total
// against TRACK_STATEMENT_REPAYMENTS for the MAD comparison at PDD.
func DistributeRepayment(cfg Config, b *ledger.Builder, amount decimal.Decimal, event string) RepaymentResult {
	if !amount.IsPositive() {
		return RepaymentResult{Repaid: decimal.Zero, ToDeposit: decimal.Zero}
	}
	details := map[string]string{ledger.DetailEvent: event}

	// Overdue buckets first, oldest first. These are aging trackers that
	// shadow amounts also present in the hierarchy addresses, so paying
	// them down does not consume the distributable amount.
	repayOverdueBuckets(cfg, b, amount, details)

	remaining := amount
	for _, address := range expandHierarchy(cfg) {
		if !remaining.IsPositive() {
			break
		}
		balance := b.Balances().Net(address, cfg.Denomination)
		if !balance.IsPositive() {
			continue
		}
		pay := decimal.Min(balance, remaining)
		b.Untrack(pay, address, details)
		remaining = remaining.Sub(pay)
	}

	repaid := amount.Sub(remaining)
	if repaid.IsPositive() {
		b.Track(repaid, ledger.TrackStatementRepayments, details)
	}
	if remaining.IsPositive() {
		b.Track(remaining, ledger.DepositBalance, map[string]string{
			ledger.DetailEvent:       event,
			ledger.DetailDescription: "unallocated repayment held on deposit",
		})
	}
	return RepaymentResult{Repaid: repaid, ToDeposit: remaining}
}

// repayOverdueBuckets clears overdue trackers oldest-first with up to the
// repaid amount.
func repayOverdueBuckets(cfg Config, b *ledger.Builder, amount decimal.Decimal, details map[string]string) {
	var ages []int
	for _, addr := range b.Balances().Addresses() {
		if age, ok := ledger.OverdueAge(addr); ok {
			ages = append(ages, age)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ages)))

	remaining := amount
	for _, age := range ages {
		if !remaining.IsPositive() {
			return
		}
		address := ledger.OverdueAddress(age)
		balance := b.Balances().Net(address, cfg.Denomination)
		if !balance.IsPositive() {
			continue
		}
		pay := decimal.Min(balance, remaining)
		b.Untrack(pay, address, details)
		remaining = remaining.Sub(pay)
	}
}

// expandHierarchy flattens the configured hierarchy into the ordered
// address list a repayment walks.
func expandHierarchy(cfg Config) []string {
	ranked := cfg.rankedTypeRefs()
	feeTypes := cfg.FeeTypes()
	// Descending name, consistent with the rate tie-break.
	sortedFees := append([]string(nil), feeTypes...)
	sort.Sort(sort.Reverse(sort.StringSlice(sortedFees)))

	var out []string
	for _, entry := range cfg.Hierarchy {
		switch entry.Category {
		case CategoryPrincipal:
			for _, tr := range ranked {
				for _, status := range entry.Statuses {
					out = append(out, ledger.PrincipalAddress(tr.txnType, status, tr.ref))
				}
			}
		case CategoryBankCharge:
			switch entry.Subtype {
			case SubtypeInterest:
				for _, tr := range ranked {
					for _, status := range entry.Statuses {
						out = append(out, ledger.InterestAddress(tr.txnType, status, tr.ref, ledger.PhaseNone))
					}
				}
			case SubtypeFees:
				for _, feeType := range sortedFees {
					for _, status := range entry.Statuses {
						out = append(out, ledger.FeeAddress(feeType, status))
					}
				}
			}
		}
	}
	return out
}
