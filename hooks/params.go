/*
Package hooks exposes the contract's hook entry points: pre-posting
validation, post-posting processing, scheduled events, activation, and
deactivation.

PURPOSE:
  This is the layer the host invokes. Each entry point resolves the
  product configuration and flag-derived account state from the vault
  exactly once, hands the pure engine a working balances value, and wraps
  the resulting postings, notifications, and schedule updates into a
  HookResult the host commits atomically.

KEY CONCEPTS IN THIS FILE (params.go):
  - Parameter names: the declared configuration surface of the contract
  - BuildConfig: parameter store -> immutable engine.Config, once per hook
  - ResolveState: flag lookups -> engine.AccountState

SEE ALSO:
  - hooks.go: pre/post-posting entry points
  - scheduled.go: ACCRUE_INTEREST / STATEMENT_CUT_OFF / PAYMENT_DUE /
    ANNUAL_FEE dispatch, activation and deactivation
*/
package hooks

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/engine"
	"github.com/corebank/card-engine/vault"
)

// =============================================================================
// PARAMETER NAMES - The contract's declared configuration surface
// =============================================================================

const (
	ParamDenomination       = "denomination"
	ParamCreditLimit        = "credit_limit"
	ParamTxnTypes           = "transaction_types"
	ParamTxnRefs            = "transaction_references"
	ParamTxnCodeToType      = "transaction_code_to_type_map"
	ParamDefaultTxnType     = "default_transaction_type"
	ParamBaseRates          = "base_interest_rates"
	ParamRefRates           = "transaction_base_interest_rates"
	ParamInterestFreeExpiry = "interest_free_expiry"
	ParamRefInterestFree    = "transaction_interest_free_expiry"

	ParamAccrueFromTxnDay   = "accrue_interest_from_txn_day"
	ParamAccrueUnpaidInt    = "accrue_interest_on_unpaid_interest"
	ParamAccrueUnpaidFees   = "accrue_interest_on_unpaid_fees"
	ParamMADFixed           = "minimum_amount_due"
	ParamMADPercentages     = "minimum_percentage_due"
	ParamPaymentDuePeriod   = "payment_due_period"
	ParamAnnualFee          = "annual_fee"
	ParamLateRepaymentFee   = "late_repayment_fee"
	ParamOverlimitFee       = "overlimit_fee"
	ParamOverlimitOptIn     = "overlimit_opt_in"
	ParamTxnTypeLimits      = "transaction_type_limits"
	ParamExternalFeeTypes   = "external_fee_types"

	ParamInterestIncomeAccount  = "interest_income_internal_account"
	ParamFeeIncomeAccount       = "fee_income_internal_account"
	ParamFeeIncomeAccounts      = "fee_type_internal_accounts"
	ParamPrincipalWriteOff      = "principal_write_off_internal_account"
	ParamInterestWriteOff       = "interest_write_off_internal_account"

	ParamMADZeroFlags          = "mad_equal_to_zero_flags"
	ParamMADAsStatementFlags   = "mad_as_full_statement_flags"
	ParamOverdueBlockingFlags  = "overdue_amount_blocking_flags"
	ParamUnpaidBlockingFlags   = "billed_to_unpaid_transfer_blocking_flags"
	ParamClosureFlags          = "account_closure_flags"
	ParamWriteOffFlags         = "account_write_off_flags"
)

// =============================================================================
// CONFIG CONSTRUCTION
// =============================================================================

type txnTypeParams struct {
	ChargeInterestFromTransactionDate string `json:"charge_interest_from_transaction_date"`
}

type txnLimitParams struct {
	Flat                    string `json:"flat"`
	Percentage              string `json:"percentage"`
	AllowedDaysAfterOpening string `json:"allowed_days_after_opening"`
}

// BuildConfig constructs the immutable per-invocation configuration from
// the parameter store. Missing optional parameters fall back to inert
// defaults; missing required parameters are host configuration bugs and
// surface as zero values the engine treats as no-ops.
func BuildConfig(v vault.Vault) engine.Config {
	cfg := engine.Config{
		AccountID:    v.AccountID(),
		Denomination: vault.GetString(v, ParamDenomination, "GBP"),
		CreditLimit:  vault.GetDecimal(v, ParamCreditLimit, decimal.Zero),

		DefaultTxnType:           vault.GetString(v, ParamDefaultTxnType, "purchase"),
		AccrueInterestFromTxnDay: vault.GetBool(v, ParamAccrueFromTxnDay, false),
		AccrueOnUnpaidInterest:   vault.GetBool(v, ParamAccrueUnpaidInt, false),
		AccrueOnUnpaidFees:       vault.GetBool(v, ParamAccrueUnpaidFees, false),

		MADFixed:             vault.GetDecimal(v, ParamMADFixed, decimal.Zero),
		MADPrincipalPct:      decimal.New(1, -2),
		MADInterestPct:       decimal.New(1, 0),
		MADFeePct:            decimal.New(1, 0),
		PaymentDuePeriodDays: vault.GetInt(v, ParamPaymentDuePeriod, 21),

		AnnualFee:        vault.GetDecimal(v, ParamAnnualFee, decimal.Zero),
		LateRepaymentFee: vault.GetDecimal(v, ParamLateRepaymentFee, decimal.Zero),
		OverlimitFee:     vault.GetDecimal(v, ParamOverlimitFee, decimal.Zero),
		OverlimitOptIn:   vault.GetBool(v, ParamOverlimitOptIn, false),

		InterestIncomeAccount:    vault.GetString(v, ParamInterestIncomeAccount, "interest_income"),
		DefaultFeeIncomeAccount:  vault.GetString(v, ParamFeeIncomeAccount, "fee_income"),
		PrincipalWriteOffAccount: vault.GetString(v, ParamPrincipalWriteOff, "principal_write_off"),
		InterestWriteOffAccount:  vault.GetString(v, ParamInterestWriteOff, "interest_write_off"),

		Hierarchy: engine.DefaultHierarchy(),
	}

	cfg.TxnTypes, cfg.ChargeInterestFromTxnDate = parseTxnTypes(v)
	cfg.TxnCodeToType = parseStringMap(v, ParamTxnCodeToType)
	cfg.BaseRates = parseDecimalMap(v, ParamBaseRates)
	cfg.RefRates = parseNestedDecimalMap(v, ParamRefRates)
	cfg.InterestFreeExpiry = parseTimeMap(v, ParamInterestFreeExpiry)
	cfg.RefInterestFreeExpiry = parseNestedTimeMap(v, ParamRefInterestFree)
	cfg.MADPrincipalPct, cfg.MADInterestPct, cfg.MADFeePct = parseMADPercentages(v)
	cfg.TxnTypeLimits = parseTxnTypeLimits(v)
	cfg.FeeIncomeAccounts = parseStringMap(v, ParamFeeIncomeAccounts)

	var externalFees []string
	vault.GetJSON(v, ParamExternalFeeTypes, &externalFees)
	for i, fee := range externalFees {
		externalFees[i] = strings.ToUpper(fee)
	}
	cfg.ExternalFeeTypes = externalFees

	return cfg
}

// parseTxnTypes merges the transaction type declarations with the
// per-type reference lists.
func parseTxnTypes(v vault.Vault) (map[string][]string, map[string]bool) {
	var declared map[string]txnTypeParams
	vault.GetJSON(v, ParamTxnTypes, &declared)

	refsByType := make(map[string][]string)
	vault.GetJSON(v, ParamTxnRefs, &refsByType)

	types := make(map[string][]string, len(declared))
	immediate := make(map[string]bool)
	for name, params := range declared {
		key := strings.ToLower(name)
		var refs []string
		for _, ref := range refsByType[key] {
			refs = append(refs, strings.ToUpper(ref))
		}
		types[key] = refs
		if params.ChargeInterestFromTransactionDate == "True" || params.ChargeInterestFromTransactionDate == "true" {
			immediate[key] = true
		}
	}
	return types, immediate
}

func parseStringMap(v vault.Vault, name string) map[string]string {
	out := make(map[string]string)
	vault.GetJSON(v, name, &out)
	return out
}

func parseDecimalMap(v vault.Vault, name string) map[string]decimal.Decimal {
	raw := make(map[string]string)
	vault.GetJSON(v, name, &raw)
	out := make(map[string]decimal.Decimal, len(raw))
	for k, s := range raw {
		if d, err := decimal.NewFromString(s); err == nil {
			out[strings.ToLower(k)] = d
		}
	}
	return out
}

func parseNestedDecimalMap(v vault.Vault, name string) map[string]map[string]decimal.Decimal {
	raw := make(map[string]map[string]string)
	vault.GetJSON(v, name, &raw)
	out := make(map[string]map[string]decimal.Decimal, len(raw))
	for k, inner := range raw {
		m := make(map[string]decimal.Decimal, len(inner))
		for ref, s := range inner {
			if d, err := decimal.NewFromString(s); err == nil {
				m[strings.ToUpper(ref)] = d
			}
		}
		out[strings.ToLower(k)] = m
	}
	return out
}

func parseTimeMap(v vault.Vault, name string) map[string]time.Time {
	raw := make(map[string]string)
	vault.GetJSON(v, name, &raw)
	out := make(map[string]time.Time, len(raw))
	for k, s := range raw {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			out[strings.ToLower(k)] = t
		}
	}
	return out
}

func parseNestedTimeMap(v vault.Vault, name string) map[string]map[string]time.Time {
	raw := make(map[string]map[string]string)
	vault.GetJSON(v, name, &raw)
	out := make(map[string]map[string]time.Time, len(raw))
	for k, inner := range raw {
		m := make(map[string]time.Time, len(inner))
		for ref, s := range inner {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				m[strings.ToUpper(ref)] = t
			}
		}
		out[strings.ToLower(k)] = m
	}
	return out
}

func parseMADPercentages(v vault.Vault) (principal, interest, fees decimal.Decimal) {
	principal, interest, fees = decimal.New(1, -2), decimal.New(1, 0), decimal.New(1, 0)
	raw := make(map[string]string)
	if !vault.GetJSON(v, ParamMADPercentages, &raw) {
		return
	}
	if d, err := decimal.NewFromString(raw["principal"]); err == nil {
		principal = d
	}
	if d, err := decimal.NewFromString(raw["interest"]); err == nil {
		interest = d
	}
	if d, err := decimal.NewFromString(raw["fees"]); err == nil {
		fees = d
	}
	return
}

func parseTxnTypeLimits(v vault.Vault) map[string]engine.TxnLimit {
	raw := make(map[string]txnLimitParams)
	vault.GetJSON(v, ParamTxnTypeLimits, &raw)
	out := make(map[string]engine.TxnLimit, len(raw))
	for name, params := range raw {
		var limit engine.TxnLimit
		if d, err := decimal.NewFromString(params.Flat); err == nil {
			limit.Flat = &d
		}
		if d, err := decimal.NewFromString(params.Percentage); err == nil {
			limit.PctOfLimit = &d
		}
		if params.AllowedDaysAfterOpening != "" {
			if d, err := decimal.NewFromString(params.AllowedDaysAfterOpening); err == nil {
				days := int(d.IntPart())
				limit.AllowedDays = &days
			}
		}
		out[strings.ToLower(name)] = limit
	}
	return out
}

// =============================================================================
// STATE RESOLUTION
// =============================================================================

// ResolveState reads the flag-derived account posture at an instant.
func ResolveState(v vault.Vault, at time.Time) engine.AccountState {
	balances := v.BalancesObservation()
	denomination := vault.GetString(v, ParamDenomination, "GBP")
	return engine.AccountState{
		IsRevolver:            engine.IsRevolver(balances, denomination),
		MADEqualsZero:         v.IsFlagApplied(ParamMADZeroFlags, at),
		MADEqualsFullStmt:     v.IsFlagApplied(ParamMADAsStatementFlags, at),
		OverdueAgingBlocked:   v.IsFlagApplied(ParamOverdueBlockingFlags, at),
		BilledToUnpaidBlocked: v.IsFlagApplied(ParamUnpaidBlockingFlags, at),
		ClosureRequested:      v.IsFlagApplied(ParamClosureFlags, at),
		WriteOffRequested:     v.IsFlagApplied(ParamWriteOffFlags, at),
	}
}
