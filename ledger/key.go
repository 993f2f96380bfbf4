/*
Package ledger provides the sparse-ledger data model for the card engine.

PURPOSE:
  Everything the engine knows about an account lives in a sparse set of
  balances keyed by compound addresses. This package owns that address
  scheme: a single canonical serializer/deserializer pair for balance
  keys, the balance coordinate model (address, asset, denomination,
  phase), and the posting instructions that are the only way balances
  ever change.

KEY CONCEPTS IN THIS FILE (key.go):
  - BalanceKey: typed (kind, txn type, ref, accrual phase, status) tuple
  - Status: lifecycle state of a tracked amount (AUTH .. UNCHARGED)
  - AccrualPhase: PRE_SCOD / POST_SCOD / INTEREST_FREE_PERIOD buckets
  - Info addresses: derived projections (AVAILABLE_BALANCE, MAD_BALANCE, ...)
  - Overdue buckets: OVERDUE_<age> addresses aged once per statement cycle

DESIGN PRINCIPLES:
  1. One codec: addresses are built and parsed HERE, nowhere else
  2. Canonical form: type and ref segments are upper-cased on construction
  3. Tolerant parsing: an unknown stem parses to itself, never an error

SEE ALSO:
  - balances.go: balance coordinates and snapshots keyed by these addresses
  - posting.go: posting instructions that move amounts between addresses
*/
package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// STATUS - Lifecycle state encoded in the address suffix
// =============================================================================

type Status string

const (
	StatusAuth      Status = "AUTH"
	StatusCharged   Status = "CHARGED"
	StatusBilled    Status = "BILLED"
	StatusUnpaid    Status = "UNPAID"
	StatusUncharged Status = "UNCHARGED"
)

// ChargedStates are the principal statuses that accrue interest.
var ChargedStates = []Status{StatusAuth, StatusCharged, StatusBilled, StatusUnpaid}

// StatementStates are the statuses that make up an outstanding statement.
var StatementStates = []Status{StatusBilled, StatusUnpaid}

// =============================================================================
// CHARGE KIND - What the tracked amount represents
// =============================================================================

type ChargeKind int

const (
	KindPrincipal ChargeKind = iota
	KindInterest
	KindFee
)

func (k ChargeKind) String() string {
	switch k {
	case KindPrincipal:
		return "principal"
	case KindInterest:
		return "interest"
	case KindFee:
		return "fee"
	default:
		return "unknown"
	}
}

// =============================================================================
// ACCRUAL PHASE - Sub-bucket for accrue-from-transaction-day mode
// =============================================================================

type AccrualPhase string

const (
	PhaseNone         AccrualPhase = ""
	PhasePreSCOD      AccrualPhase = "PRE_SCOD"
	PhasePostSCOD     AccrualPhase = "POST_SCOD"
	PhaseInterestFree AccrualPhase = "INTEREST_FREE_PERIOD"
)

// =============================================================================
// FIXED ADDRESSES - Info projections and internal contra
// =============================================================================

const (
	// DefaultAddress is where host-committed postings land. It is the only
	// address whose committed/pending amounts are guaranteed fresh as of the
	// posting being evaluated, which is why sufficient-funds checks read it
	// instead of the AVAILABLE_BALANCE projection.
	DefaultAddress = "DEFAULT"

	// InternalAddress is the contra address balancing every tracking-only
	// posting (mirrors, info projections, overdue buckets).
	InternalAddress = "INTERNAL"

	AvailableBalance         = "AVAILABLE_BALANCE"
	OutstandingBalance       = "OUTSTANDING_BALANCE"
	FullOutstandingBalance   = "FULL_OUTSTANDING_BALANCE"
	StatementBalance         = "STATEMENT_BALANCE"
	MADBalance               = "MAD_BALANCE"
	RevolverBalance          = "REVOLVER_BALANCE"
	DepositBalance           = "DEPOSIT_BALANCE"
	TrackStatementRepayments = "TRACK_STATEMENT_REPAYMENTS"
)

const overduePrefix = "OVERDUE_"

// OverdueAddress returns the bucket address for a statement-cycle age >= 1.
func OverdueAddress(age int) string {
	return overduePrefix + strconv.Itoa(age)
}

// OverdueAge extracts the age from an overdue bucket address.
func OverdueAge(address string) (int, bool) {
	rest, ok := strings.CutPrefix(address, overduePrefix)
	if !ok {
		return 0, false
	}
	age, err := strconv.Atoi(rest)
	if err != nil || age < 1 {
		return 0, false
	}
	return age, true
}

// =============================================================================
// BALANCE KEY - Typed address, one canonical codec
// =============================================================================

// BalanceKey identifies one tracked amount in the sparse ledger.
// The zero Ref and zero Accrual are valid (no sub-ledger, no phase bucket).
type BalanceKey struct {
	Kind    ChargeKind
	TxnType string
	Ref     string
	Accrual AccrualPhase
	Status  Status
}

const interestSegment = "INTEREST"

// feeSuffix pluralizes a fee type: ANNUAL_FEE -> ANNUAL_FEES_CHARGED.
const feeSuffix = "S"

// stem joins the upper-cased type and ref segments.
func (k BalanceKey) stem() string {
	s := strings.ToUpper(k.TxnType)
	if k.Ref != "" {
		s += "_" + strings.ToUpper(k.Ref)
	}
	return s
}

// Address renders the canonical address string for this key.
//
// Forms produced:
//
//	principal: PURCHASE_CHARGED, BALANCE_TRANSFER_REF1_UNPAID
//	interest:  PURCHASE_INTEREST_BILLED,
//	           CASH_ADVANCE_INTEREST_PRE_SCOD_UNCHARGED,
//	           PURCHASE_INTEREST_FREE_PERIOD_INTEREST_UNCHARGED
//	fee:       ANNUAL_FEES_CHARGED, PURCHASE_FEES_BILLED
func (k BalanceKey) Address() string {
	switch k.Kind {
	case KindInterest:
		stem := k.stem()
		switch k.Accrual {
		case PhaseInterestFree:
			// Types whose name already carries the interest-free marker must
			// not have it appended twice.
			if !strings.HasSuffix(stem, string(PhaseInterestFree)) {
				stem += "_" + string(PhaseInterestFree)
			}
			return stem + "_" + interestSegment + "_" + string(k.Status)
		case PhasePreSCOD, PhasePostSCOD:
			return stem + "_" + interestSegment + "_" + string(k.Accrual) + "_" + string(k.Status)
		default:
			return stem + "_" + interestSegment + "_" + string(k.Status)
		}
	case KindFee:
		// Fees ignore refs: one bucket per fee type.
		return strings.ToUpper(k.TxnType) + feeSuffix + "_" + string(k.Status)
	default:
		return k.stem() + "_" + string(k.Status)
	}
}

// PrincipalKey builds a principal balance key.
func PrincipalKey(txnType string, status Status, ref string) BalanceKey {
	return BalanceKey{Kind: KindPrincipal, TxnType: txnType, Ref: ref, Status: status}
}

// InterestKey builds an interest balance key.
func InterestKey(txnType string, status Status, ref string, phase AccrualPhase) BalanceKey {
	return BalanceKey{Kind: KindInterest, TxnType: txnType, Ref: ref, Accrual: phase, Status: status}
}

// FeeKey builds a fee balance key. Fee addresses have no ref segment.
func FeeKey(feeType string, status Status) BalanceKey {
	return BalanceKey{Kind: KindFee, TxnType: feeType, Status: status}
}

// PrincipalAddress is a convenience over PrincipalKey(...).Address().
func PrincipalAddress(txnType string, status Status, ref string) string {
	return PrincipalKey(txnType, status, ref).Address()
}

// InterestAddress is a convenience over InterestKey(...).Address().
func InterestAddress(txnType string, status Status, ref string, phase AccrualPhase) string {
	return InterestKey(txnType, status, ref, phase).Address()
}

// FeeAddress is a convenience over FeeKey(...).Address().
func FeeAddress(feeType string, status Status) string {
	return FeeKey(feeType, status).Address()
}

// =============================================================================
// PARSING - Address back to (type, ref)
// =============================================================================

// ParseTypeAndRef strips the known suffix from an address and matches the
// remaining stem against the known transaction types by longest prefix.
//
// knownTypes maps type name -> refs declared for it (nil for none).
// If no known type matches, the stripped stem itself is returned with an
// empty ref; callers must tolerate unknown stems.
func ParseTypeAndRef(address string, knownTypes map[string][]string, suffix string) (txnType, ref string) {
	stem := strings.TrimSuffix(address, "_"+suffix)

	best := ""
	for name := range knownTypes {
		upper := strings.ToUpper(name)
		if (stem == upper || strings.HasPrefix(stem, upper+"_")) && len(upper) > len(best) {
			best = upper
		}
	}
	if best == "" {
		return stem, ""
	}
	if len(stem) > len(best) {
		return best, stem[len(best)+1:]
	}
	return best, ""
}

// TxnTypeAndRefFromPosting resolves the (type, ref) a committed posting
// belongs to. The transaction code from the posting's instruction details
// is mapped through the configured code table and falls back to the default
// type when unmapped or unsupported. The ref is normalized to upper case.
func TxnTypeAndRefFromPosting(details map[string]string, codeToType map[string]string, supported map[string][]string, defaultType string) (string, string) {
	txnType := defaultType
	if code, ok := details[DetailTransactionCode]; ok {
		if mapped, ok := codeToType[code]; ok {
			if _, supportedType := supported[mapped]; supportedType {
				txnType = mapped
			}
		}
	}
	ref := strings.ToUpper(details[DetailTransactionRef])
	return txnType, ref
}

// Sentinel detail keys carried in posting instruction details.
const (
	DetailTransactionCode = "transaction_code"
	DetailTransactionRef  = "transaction_ref"
	DetailDescription     = "description"
	DetailEvent           = "event"
	DetailFeeType         = "fee_type"
)

func (k BalanceKey) String() string {
	return fmt.Sprintf("%s(%s)", k.Kind, k.Address())
}
