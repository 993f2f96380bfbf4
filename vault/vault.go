/*
Package vault defines the contract between the card engine and its host
core-banking platform.

PURPOSE:
  Hooks run inside a host runtime that supplies account state (balances,
  parameters, flags, schedule metadata) and consumes the directives hooks
  return (posting batches, notifications, schedule updates, rejections).
  This package is that boundary: the Vault interface the host implements,
  and the directive types hooks hand back.

KEY CONCEPTS IN THIS FILE (vault.go):
  - Vault: read-only account context supplied to every hook invocation
  - HookResult: posting batches + notifications + schedule updates
  - Rejection: the only caller-visible validation failure, returned as
    data and never raised
  - Parameter helpers: typed access over the versioned key/value store

DESIGN PRINCIPLES:
  1. Hooks are pure: all inputs arrive through Vault before the hook runs,
     all effects leave through HookResult
  2. The host commits a HookResult atomically and reschedules
  3. Retry safety: re-invoking a hook with the same inputs must produce
     the same directives

SEE ALSO:
  - sim.go: in-memory Vault used by tests and the simulator
  - hooks: the hook entry points consuming this contract
*/
package vault

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// =============================================================================
// VAULT - Host-supplied account context
// =============================================================================

// Vault is the read-only view of an account the host supplies to a hook.
// All methods are synchronous; no blocking I/O happens inside hook logic.
type Vault interface {
	// AccountID returns the customer account identifier.
	AccountID() string

	// CreationDatetime returns when the account was opened.
	CreationDatetime() time.Time

	// Parameter returns the raw value of a parameter at the hook's
	// effective time, and whether it is set.
	Parameter(name string) (string, bool)

	// BalancesObservation returns the live balances as of the hook's
	// effective time.
	BalancesObservation() ledger.Snapshot

	// BalancesAt slices the balance timeseries at an instant. Used by the
	// statement cut-off to value balances at cutoff-minus-1-microsecond
	// even when the schedule runs late.
	BalancesAt(at time.Time) ledger.Snapshot

	// IsFlagApplied reports whether any flag named in the given
	// parameter's JSON list is active on the account at the instant.
	IsFlagApplied(listParameter string, at time.Time) bool

	// LastExecution returns when the named scheduled event last ran.
	LastExecution(event string) (time.Time, bool)
}

// =============================================================================
// PARAMETER HELPERS - Typed access with defaults
// =============================================================================

// GetString returns a string parameter or the default when unset.
func GetString(v Vault, name, def string) string {
	if raw, ok := v.Parameter(name); ok {
		return raw
	}
	return def
}

// GetDecimal returns a decimal parameter or the default when unset or
// malformed. The contract trusts its declared schema: malformed values on
// required parameters are host configuration bugs, not runtime states to
// recover from.
func GetDecimal(v Vault, name string, def decimal.Decimal) decimal.Decimal {
	raw, ok := v.Parameter(name)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return def
	}
	return d
}

// GetInt returns an integer parameter or the default.
func GetInt(v Vault, name string, def int) int {
	d := GetDecimal(v, name, decimal.NewFromInt(int64(def)))
	return int(d.IntPart())
}

// GetBool returns a boolean parameter ("True"/"true"/"1") or the default.
func GetBool(v Vault, name string, def bool) bool {
	raw, ok := v.Parameter(name)
	if !ok {
		return def
	}
	switch raw {
	case "True", "true", "1":
		return true
	case "False", "false", "0":
		return false
	}
	return def
}

// GetJSON unmarshals a JSON-encoded parameter into out. Returns false when
// the parameter is unset or not valid JSON.
func GetJSON(v Vault, name string, out any) bool {
	raw, ok := v.Parameter(name)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

// =============================================================================
// REJECTION - Caller-visible validation failure
// =============================================================================

type RejectionCode string

const (
	RejectWrongDenomination  RejectionCode = "WRONG_DENOMINATION"
	RejectInsufficientFunds  RejectionCode = "INSUFFICIENT_FUNDS"
	RejectAgainstTerms       RejectionCode = "AGAINST_TERMS_AND_CONDITIONS"
	RejectClientCustomReason RejectionCode = "CLIENT_CUSTOM_REASON"
)

// Rejection aborts a proposed posting or parameter change with no side
// effects. It is returned as data, never panicked.
type Rejection struct {
	Code    RejectionCode
	Message string
}

func (r *Rejection) Error() string {
	return string(r.Code) + ": " + r.Message
}

// Reject builds a rejection.
func Reject(code RejectionCode, message string) *Rejection {
	return &Rejection{Code: code, Message: message}
}

// =============================================================================
// DIRECTIVES - What a hook hands back to the host
// =============================================================================

// Notification types published to downstream systems.
const (
	NotifyStatementData       = "PUBLISH_STATEMENT_DATA_NOTIFICATION"
	NotifyInterestFreeExpired = "EXPIRE_INTEREST_FREE_PERIODS_NOTIFICATION"
)

type Notification struct {
	ID      string
	Type    string
	Payload map[string]string
}

// NewNotification assigns a fresh id to a typed payload.
func NewNotification(notifType string, payload map[string]string) Notification {
	return Notification{ID: uuid.NewString(), Type: notifType, Payload: payload}
}

// ScheduleExpr is a cron-like expression for a named scheduled event.
// Day may be "last" for end-of-month scheduling (Feb-29 anniversaries).
type ScheduleExpr struct {
	Year   string
	Month  string
	Day    string
	Hour   string
	Minute string
	Second string
}

type ScheduleUpdate struct {
	Event string
	Expr  ScheduleExpr
	Skip  bool
}

// HookResult carries every effect of one hook invocation. The host commits
// it atomically.
type HookResult struct {
	Batches         []ledger.Batch
	Notifications   []Notification
	ScheduleUpdates []ScheduleUpdate
}

// Merge appends another result's directives onto this one.
func (r *HookResult) Merge(other HookResult) {
	r.Batches = append(r.Batches, other.Batches...)
	r.Notifications = append(r.Notifications, other.Notifications...)
	r.ScheduleUpdates = append(r.ScheduleUpdates, other.ScheduleUpdates...)
}

// AddBatch wraps postings into a batch unless empty.
func (r *HookResult) AddBatch(valueTimestamp time.Time, postings []ledger.Posting) {
	if len(postings) == 0 {
		return
	}
	r.Batches = append(r.Batches, ledger.NewBatch(valueTimestamp, postings))
}

// Postings flattens all batches, preserving order.
func (r HookResult) Postings() []ledger.Posting {
	var out []ledger.Posting
	for _, b := range r.Batches {
		out = append(out, b.Postings...)
	}
	return out
}
