/*
posting.go - Posting instructions and batch construction

PURPOSE:
  Hooks never mutate balances directly. They return posting instructions:
  double-entry deltas the host commits atomically. This file defines the
  instruction type, the batch wrapper tagged with a value datetime and a
  client batch id, and a small builder that keeps an InFlight working copy
  in sync with every instruction it emits.

CONSTRUCTION RULES:
  - Zero-amount postings are never emitted
  - Every posting has exactly one debit and one credit leg
  - Tracking-only movements (mirrors, info projections) balance against
    the customer's INTERNAL contra address
  - Real money movements always touch the DEFAULT address on one side

SEE ALSO:
  - balances.go: InFlight, updated by the builder
  - engine: the producers of these instructions
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// POSTING - One double-entry movement
// =============================================================================

type Posting struct {
	Amount       decimal.Decimal
	Denomination string
	Asset        string
	Phase        Phase

	DebitAccount  string
	DebitAddress  string
	CreditAccount string
	CreditAddress string

	Details map[string]string
}

// Batch groups the postings of one hook stage under a client batch id.
type Batch struct {
	ID             string
	ValueTimestamp time.Time
	Postings       []Posting
}

// NewBatch wraps postings with a fresh client batch id. Empty batches are
// represented as a zero Batch with no postings.
func NewBatch(valueTimestamp time.Time, postings []Posting) Batch {
	return Batch{
		ID:             uuid.NewString(),
		ValueTimestamp: valueTimestamp,
		Postings:       postings,
	}
}

// =============================================================================
// BUILDER - Emits postings and keeps the in-flight balances current
// =============================================================================

// Builder accumulates posting instructions for one hook invocation. Every
// emitted posting is immediately applied to the InFlight balances so later
// pipeline stages observe it.
type Builder struct {
	accountID    string
	denomination string
	balances     *InFlight
	postings     []Posting
}

func NewBuilder(accountID, denomination string, balances *InFlight) *Builder {
	return &Builder{accountID: accountID, denomination: denomination, balances: balances}
}

// Balances returns the working balances threaded through this builder.
func (b *Builder) Balances() *InFlight { return b.balances }

// Postings returns everything emitted so far, in order.
func (b *Builder) Postings() []Posting { return b.postings }

// Len reports how many postings have been emitted.
func (b *Builder) Len() int { return len(b.postings) }

func (b *Builder) emit(p Posting) {
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return
	}
	if p.Asset == "" {
		p.Asset = DefaultAsset
	}
	if p.Phase == "" {
		p.Phase = PhaseCommitted
	}
	if p.Denomination == "" {
		p.Denomination = b.denomination
	}
	b.postings = append(b.postings, p)
	b.balances.Apply(p)
}

// Move transfers an amount between two addresses on the customer account.
// Used for status transitions (CHARGED -> BILLED) and repayment allocation.
func (b *Builder) Move(amount decimal.Decimal, fromAddress, toAddress string, details map[string]string) {
	b.emit(Posting{
		Amount:        amount,
		DebitAccount:  b.accountID,
		DebitAddress:  toAddress,
		CreditAccount: b.accountID,
		CreditAddress: fromAddress,
		Details:       details,
	})
}

// Track records a tracking-only increase at an address, balanced against
// the INTERNAL contra. Used for mirrors, overdue buckets, and trackers.
func (b *Builder) Track(amount decimal.Decimal, address string, details map[string]string) {
	b.Move(amount, InternalAddress, address, details)
}

// Untrack reverses a tracking-only amount back into the INTERNAL contra.
func (b *Builder) Untrack(amount decimal.Decimal, address string, details map[string]string) {
	b.Move(amount, address, InternalAddress, details)
}

// SetAbsolute emits the delta posting that moves an info address from its
// current value to the given absolute value. No posting is emitted when
// the address is already at the target, which makes re-invocation of the
// same stage idempotent.
func (b *Builder) SetAbsolute(address string, target decimal.Decimal, details map[string]string) {
	current := b.balances.Net(address, b.denomination)
	delta := target.Sub(current)
	switch {
	case delta.IsPositive():
		b.Track(delta, address, details)
	case delta.IsNegative():
		b.Untrack(delta.Neg(), address, details)
	}
}

// Charge moves real money: debits the customer's DEFAULT address and
// credits an internal income account. Used for interest and fee charges.
func (b *Builder) Charge(amount decimal.Decimal, incomeAccount string, details map[string]string) {
	b.emit(Posting{
		Amount:        amount,
		DebitAccount:  b.accountID,
		DebitAddress:  DefaultAddress,
		CreditAccount: incomeAccount,
		CreditAddress: DefaultAddress,
		Details:       details,
	})
}

// Fund moves real money into the customer account from an internal
// account (write-off funding): credits DEFAULT, debits the source.
func (b *Builder) Fund(amount decimal.Decimal, sourceAccount string, details map[string]string) {
	b.emit(Posting{
		Amount:        amount,
		DebitAccount:  sourceAccount,
		DebitAddress:  DefaultAddress,
		CreditAccount: b.accountID,
		CreditAddress: DefaultAddress,
		Details:       details,
	})
}

// Sum returns the total amount across a list of postings.
func Sum(postings []Posting) decimal.Decimal {
	total := decimal.Zero
	for _, p := range postings {
		total = total.Add(p.Amount)
	}
	return total
}
