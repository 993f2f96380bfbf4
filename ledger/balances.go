/*
balances.go - Balance coordinates, snapshots, and in-flight working copies

PURPOSE:
  A balances snapshot is the immutable input a hook receives from the host:
  a sparse mapping from (address, asset, denomination, phase) to a net
  amount as of some instant. Hook logic never mutates a snapshot. Instead
  it threads an InFlight copy through its pipeline: every posting it
  constructs is applied to the copy so later stages see earlier stages'
  effects, while only the posting instructions themselves are returned to
  the host.

INVARIANTS:
  1. Snapshots are never written after construction
  2. InFlight is mutated exclusively through Apply(posting)
  3. Balances are created implicitly: missing coordinate == zero

SEE ALSO:
  - key.go: the address scheme used for Coordinate.Address
  - posting.go: the instructions Apply consumes
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COORDINATE - Where an amount lives
// =============================================================================

// Phase distinguishes settled amounts from not-yet-settled authorizations.
type Phase string

const (
	PhaseCommitted  Phase = "COMMITTED"
	PhasePendingOut Phase = "PENDING_OUT"
	PhasePendingIn  Phase = "PENDING_IN"
)

// DefaultAsset is the only asset class this contract tracks.
const DefaultAsset = "COMMERCIAL_BANK_MONEY"

type Coordinate struct {
	Address      string
	Asset        string
	Denomination string
	Phase        Phase
}

// Coord builds a committed-phase coordinate in the default asset.
func Coord(address, denomination string) Coordinate {
	return Coordinate{Address: address, Asset: DefaultAsset, Denomination: denomination, Phase: PhaseCommitted}
}

// PendingCoord builds a pending-out coordinate in the default asset.
func PendingCoord(address, denomination string) Coordinate {
	return Coordinate{Address: address, Asset: DefaultAsset, Denomination: denomination, Phase: PhasePendingOut}
}

// =============================================================================
// SNAPSHOT - Immutable balances as of a point in time
// =============================================================================

// Snapshot maps coordinates to net amounts. Missing coordinates are zero.
type Snapshot map[Coordinate]decimal.Decimal

// Net returns the committed net amount at an address.
func (s Snapshot) Net(address, denomination string) decimal.Decimal {
	return s[Coord(address, denomination)]
}

// NetPending returns the pending-out net amount at an address.
func (s Snapshot) NetPending(address, denomination string) decimal.Decimal {
	return s[PendingCoord(address, denomination)]
}

// Addresses returns every address present in the snapshot, sorted for
// deterministic iteration.
func (s Snapshot) Addresses() []string {
	seen := make(map[string]bool, len(s))
	for c := range s {
		seen[c.Address] = true
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy safe to mutate.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for c, v := range s {
		out[c] = v
	}
	return out
}

// =============================================================================
// IN-FLIGHT - Mutable working copy threaded through one hook invocation
// =============================================================================

// InFlight is the working balances value for one hook invocation. It starts
// as a copy of the host-supplied snapshot and is updated as posting
// instructions are constructed, so that each stage of a hook pipeline sees
// the effects of the stages before it. It is never persisted: only the
// posting instructions are.
type InFlight struct {
	accountID string
	balances  Snapshot
}

// NewInFlight copies a snapshot into a working value for the given account.
func NewInFlight(accountID string, snapshot Snapshot) *InFlight {
	return &InFlight{accountID: accountID, balances: snapshot.Clone()}
}

// AccountID returns the customer account these balances belong to.
func (f *InFlight) AccountID() string { return f.accountID }

// Net returns the committed net amount at an address.
func (f *InFlight) Net(address, denomination string) decimal.Decimal {
	return f.balances.Net(address, denomination)
}

// NetPending returns the pending-out net amount at an address.
func (f *InFlight) NetPending(address, denomination string) decimal.Decimal {
	return f.balances.NetPending(address, denomination)
}

// Addresses returns all addresses present, sorted.
func (f *InFlight) Addresses() []string { return f.balances.Addresses() }

// View exposes the working balances as a read-only snapshot.
func (f *InFlight) View() Snapshot { return f.balances }

// Apply folds a posting's customer-account legs into the working balances.
// A debit leg on the customer account increases the address balance, a
// credit leg decreases it. Legs on other (internal) accounts are ignored:
// this value tracks the customer ledger only.
func (f *InFlight) Apply(p Posting) {
	if p.Amount.IsZero() {
		return
	}
	if p.DebitAccount == f.accountID {
		c := Coordinate{Address: p.DebitAddress, Asset: p.Asset, Denomination: p.Denomination, Phase: p.Phase}
		f.balances[c] = f.balances[c].Add(p.Amount)
	}
	if p.CreditAccount == f.accountID {
		c := Coordinate{Address: p.CreditAddress, Asset: p.Asset, Denomination: p.Denomination, Phase: p.Phase}
		f.balances[c] = f.balances[c].Sub(p.Amount)
	}
}

// ApplyAll folds a list of postings in order.
func (f *InFlight) ApplyAll(ps []Posting) {
	for _, p := range ps {
		f.Apply(p)
	}
}
