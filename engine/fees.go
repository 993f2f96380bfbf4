/*
fees.go - Common fee charging path

PURPOSE:
  Every fee (annual, late repayment, overlimit, external dispute and
  withdrawal fees, per-transaction-type fees) goes through one path: a
  real movement from DEFAULT to the fee's income account plus the mirror
  into the <FEE>S_CHARGED address. Zero or unconfigured fees are silent
  no-ops.
*/
package engine

import (
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// ChargeFee charges a flat fee of the given type. Amounts <= 0 emit
// nothing: an unconfigured fee is normal control flow, not an error.
func ChargeFee(cfg Config, b *ledger.Builder, feeType string, amount decimal.Decimal, event string) {
	if !amount.IsPositive() {
		return
	}
	details := map[string]string{
		ledger.DetailEvent:   event,
		ledger.DetailFeeType: feeType,
	}
	b.Charge(amount, cfg.FeeIncomeAccount(feeType), details)
	b.Track(amount, ledger.FeeAddress(feeType, ledger.StatusCharged), details)
}

// ChargeAnnualFee charges the configured anniversary fee and refreshes
// the aggregate projections it moved.
func ChargeAnnualFee(cfg Config, b *ledger.Builder) {
	ChargeFee(cfg, b, FeeAnnual, cfg.AnnualFee, "annual_fee")
	AdjustAggregateBalances(cfg, b)
}

// ChargeOverlimitFee charges the overlimit fee when the account is over
// its credit limit at the statement cut-off and has opted in. Returns the
// amount charged so the billing pass can include it in the closing
// statement even though it postdates the cutoff snapshot.
func ChargeOverlimitFee(cfg Config, b *ledger.Builder, cutoff BalanceView) decimal.Decimal {
	if !cfg.OverlimitOptIn {
		return decimal.Zero
	}
	over := OverlimitAmount(cutoff, cfg.CreditLimit, cfg.Denomination, cfg.SupportedTypes())
	if !over.IsPositive() || !cfg.OverlimitFee.IsPositive() {
		return decimal.Zero
	}
	ChargeFee(cfg, b, FeeOverlimit, cfg.OverlimitFee, "statement_cut_off")
	return cfg.OverlimitFee
}
