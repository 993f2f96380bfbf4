/*
Package engine implements the credit-card balance lifecycle and statement
engine: aggregation, interest accrual, statement/billing transitions,
repayment distribution, pre-posting validation, and account closure.

PURPOSE:
  Every function in this package is pure with respect to the host: it
  takes an immutable Config, an AccountState, and a working balances
  value, and produces posting instructions (threaded through a
  ledger.Builder so later stages see earlier effects). Nothing here reads
  parameters or flags directly; the hooks package resolves those once per
  invocation and passes them in.

KEY CONCEPTS IN THIS FILE (config.go):
  - Config: immutable per-invocation product configuration
  - AccountState: flag-derived account posture (revolver, blocks, closure)
  - Repayment hierarchy entries and the default ordering
  - Fee type derivation (internal + external + per-transaction-type)

SEE ALSO:
  - aggregate.go: derived balances over this configuration
  - accrual.go: interest accrual policy selection
  - hooks: construction of Config from the vault parameter store
*/
package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// =============================================================================
// EVENTS - Scheduled event names, in declared group order
// =============================================================================

const (
	EventAccrueInterest  = "ACCRUE_INTEREST"
	EventPaymentDue      = "PAYMENT_DUE"
	EventStatementCutOff = "STATEMENT_CUT_OFF"
	EventAnnualFee       = "ANNUAL_FEE"
)

// Internal fee types charged by this contract.
const (
	FeeAnnual        = "ANNUAL_FEE"
	FeeLateRepayment = "LATE_REPAYMENT_FEE"
	FeeOverlimit     = "OVERLIMIT_FEE"
)

// =============================================================================
// CONFIG - Immutable product configuration for one hook invocation
// =============================================================================

// TxnLimit bounds what a single transaction type may carry.
type TxnLimit struct {
	// Flat cap on CHARGED principal for the type.
	Flat *decimal.Decimal
	// PctOfLimit caps the type at a fraction (0..1) of the overall credit
	// limit. When both caps are set the lesser applies.
	PctOfLimit *decimal.Decimal
	// AllowedDays restricts the type to the first N days after account
	// opening, measured creation time-of-day to posting time-of-day.
	AllowedDays *int
}

// Config is constructed once per hook invocation from the parameter store
// and passed explicitly to every function that needs it.
type Config struct {
	AccountID    string
	Denomination string
	CreditLimit  decimal.Decimal

	// TxnTypes maps lower-case transaction type name to its declared refs
	// (upper-case). Types without sub-ledgers map to nil.
	TxnTypes map[string][]string
	// TxnCodeToType maps posting transaction codes to type names.
	TxnCodeToType  map[string]string
	DefaultTxnType string

	// ChargeInterestFromTxnDate marks types whose interest is charged
	// immediately at accrual, bypassing the UNCHARGED intermediate.
	ChargeInterestFromTxnDate map[string]bool
	AccrueInterestFromTxnDay  bool
	AccrueOnUnpaidInterest    bool
	AccrueOnUnpaidFees        bool

	// Yearly interest rates: per type, with per-ref overrides.
	BaseRates map[string]decimal.Decimal
	RefRates  map[string]map[string]decimal.Decimal

	// Interest-free period expiries: per type, with per-ref overrides.
	InterestFreeExpiry    map[string]time.Time
	RefInterestFreeExpiry map[string]map[string]time.Time

	// Minimum amount due.
	MADFixed        decimal.Decimal
	MADPrincipalPct decimal.Decimal
	MADInterestPct  decimal.Decimal
	MADFeePct       decimal.Decimal

	PaymentDuePeriodDays int

	// Fees.
	AnnualFee        decimal.Decimal
	LateRepaymentFee decimal.Decimal
	OverlimitFee     decimal.Decimal
	OverlimitOptIn   bool
	ExternalFeeTypes []string

	TxnTypeLimits map[string]TxnLimit

	// Internal accounts.
	InterestIncomeAccount    string
	FeeIncomeAccounts        map[string]string
	DefaultFeeIncomeAccount  string
	PrincipalWriteOffAccount string
	InterestWriteOffAccount  string

	Hierarchy []HierarchyEntry
}

// SupportedTypes returns the upper-cased type -> refs map used for address
// parsing and aggregation cross products.
func (c Config) SupportedTypes() map[string][]string {
	out := make(map[string][]string, len(c.TxnTypes))
	for name, refs := range c.TxnTypes {
		out[strings.ToUpper(name)] = refs
	}
	return out
}

// FeeTypes derives the full fee-type set: internal fees, external fees
// (dispute, withdrawal), and one synthetic <TYPE>_FEE per transaction type.
func (c Config) FeeTypes() []string {
	out := []string{FeeAnnual, FeeLateRepayment, FeeOverlimit}
	out = append(out, c.ExternalFeeTypes...)
	for name := range c.TxnTypes {
		out = append(out, strings.ToUpper(name)+"_FEE")
	}
	sort.Strings(out)
	return out
}

// YearlyRate resolves the annual interest rate for (type, ref).
// Ref-level overrides take precedence over the type-level rate.
func (c Config) YearlyRate(txnType, ref string) decimal.Decimal {
	key := strings.ToLower(txnType)
	if ref != "" {
		if refs, ok := c.RefRates[key]; ok {
			if rate, ok := refs[strings.ToUpper(ref)]; ok {
				return rate
			}
		}
	}
	return c.BaseRates[key]
}

// IsInterestFree reports whether (type, ref) is inside an active
// interest-free period at the instant.
func (c Config) IsInterestFree(txnType, ref string, at time.Time) bool {
	key := strings.ToLower(txnType)
	if ref != "" {
		if refs, ok := c.RefInterestFreeExpiry[key]; ok {
			if expiry, ok := refs[strings.ToUpper(ref)]; ok {
				return at.Before(expiry)
			}
		}
	}
	if expiry, ok := c.InterestFreeExpiry[key]; ok {
		return at.Before(expiry)
	}
	return false
}

// ChargesInterestFromTxnDate reports the immediate-charge toggle for a type.
func (c Config) ChargesInterestFromTxnDate(txnType string) bool {
	return c.ChargeInterestFromTxnDate[strings.ToLower(txnType)]
}

// FeeIncomeAccount resolves the income account for a fee type.
func (c Config) FeeIncomeAccount(feeType string) string {
	if acct, ok := c.FeeIncomeAccounts[feeType]; ok {
		return acct
	}
	return c.DefaultFeeIncomeAccount
}

// RequiresRef reports whether the type tracks per-transaction sub-ledgers.
func (c Config) RequiresRef(txnType string) bool {
	refs, ok := c.TxnTypes[strings.ToLower(txnType)]
	return ok && len(refs) > 0
}

// DeclaredRefs returns the declared refs for a type (upper-case).
func (c Config) DeclaredRefs(txnType string) []string {
	return c.TxnTypes[strings.ToLower(txnType)]
}

// =============================================================================
// ACCOUNT STATE - Flag-derived posture, resolved once per invocation
// =============================================================================

type AccountState struct {
	// IsRevolver mirrors the REVOLVER_BALANCE flag address.
	IsRevolver bool

	// Statement flags.
	MADEqualsZero     bool
	MADEqualsFullStmt bool

	// Blocking flags (e.g. active repayment holiday).
	OverdueAgingBlocked   bool
	BilledToUnpaidBlocked bool

	// Closure flags.
	ClosureRequested  bool
	WriteOffRequested bool
}

// IsRevolver reads the revolver posture from live balances.
func IsRevolver(v BalanceView, denomination string) bool {
	return v.Net(ledger.RevolverBalance, denomination).IsPositive()
}

// =============================================================================
// REPAYMENT HIERARCHY
// =============================================================================

type RepaymentCategory string

const (
	CategoryBankCharge RepaymentCategory = "BANK_CHARGE"
	CategoryPrincipal  RepaymentCategory = "PRINCIPAL"
)

type BankChargeSubtype string

const (
	SubtypeInterest BankChargeSubtype = "INTEREST"
	SubtypeFees     BankChargeSubtype = "FEES"
)

// HierarchyEntry is one band of the repayment priority order. Transaction
// types within a band are further ordered by descending annual rate,
// tie-broken by descending stem name for determinism.
type HierarchyEntry struct {
	Category RepaymentCategory
	Subtype  BankChargeSubtype
	Statuses []ledger.Status
}

// DefaultHierarchy is the product's standard repayment order: statement
// bank charges first, then statement principal, then the current cycle.
func DefaultHierarchy() []HierarchyEntry {
	return []HierarchyEntry{
		{Category: CategoryBankCharge, Subtype: SubtypeInterest, Statuses: []ledger.Status{ledger.StatusUnpaid}},
		{Category: CategoryBankCharge, Subtype: SubtypeInterest, Statuses: []ledger.Status{ledger.StatusBilled}},
		{Category: CategoryBankCharge, Subtype: SubtypeFees, Statuses: []ledger.Status{ledger.StatusUnpaid}},
		{Category: CategoryBankCharge, Subtype: SubtypeFees, Statuses: []ledger.Status{ledger.StatusBilled}},
		{Category: CategoryPrincipal, Statuses: []ledger.Status{ledger.StatusUnpaid, ledger.StatusBilled}},
		{Category: CategoryPrincipal, Statuses: []ledger.Status{ledger.StatusCharged}},
		{Category: CategoryBankCharge, Subtype: SubtypeInterest, Statuses: []ledger.Status{ledger.StatusCharged}},
		{Category: CategoryBankCharge, Subtype: SubtypeFees, Statuses: []ledger.Status{ledger.StatusCharged}},
	}
}

// typeRef is a (transaction type, ref) pair used across the engine.
type typeRef struct {
	txnType string
	ref     string
}

// typeRefs expands the configured types into ordered (type, ref) pairs.
// Types without refs contribute a single pair with an empty ref.
func (c Config) typeRefs() []typeRef {
	names := make([]string, 0, len(c.TxnTypes))
	for name := range c.TxnTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []typeRef
	for _, name := range names {
		refs := c.TxnTypes[name]
		if len(refs) == 0 {
			out = append(out, typeRef{txnType: name})
			continue
		}
		for _, ref := range refs {
			out = append(out, typeRef{txnType: name, ref: ref})
		}
	}
	return out
}

// rankedTypeRefs orders (type, ref) pairs by descending yearly rate,
// ties broken by descending address stem for determinism.
func (c Config) rankedTypeRefs() []typeRef {
	pairs := c.typeRefs()
	stem := func(tr typeRef) string {
		s := strings.ToUpper(tr.txnType)
		if tr.ref != "" {
			s += "_" + strings.ToUpper(tr.ref)
		}
		return s
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ri := c.YearlyRate(pairs[i].txnType, pairs[i].ref)
		rj := c.YearlyRate(pairs[j].txnType, pairs[j].ref)
		if !ri.Equal(rj) {
			return ri.GreaterThan(rj)
		}
		return stem(pairs[i]) > stem(pairs[j])
	})
	return pairs
}
