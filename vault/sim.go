/*
sim.go - In-memory Vault for tests and the simulator

PURPOSE:
  A minimal host runtime: stores parameters, flags, a balance timeline,
  and schedule metadata, and commits HookResults the way the platform
  would. Tests drive whole lifecycles (open, spend, SCOD, PDD, repay,
  close) against this implementation; the sqlite store persists the same
  state shape for the HTTP simulator.

NOT A REAL HOST:
  No concurrency, no atomicity guarantees beyond "apply in order". The
  engine's race-tolerance behavior (DEFAULT-address reads, cutoff
  re-diffing) is still exercised by committing postings with timestamps
  between a nominal cutoff and the schedule execution.
*/
package vault

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/corebank/card-engine/ledger"
)

// =============================================================================
// SIM VAULT
// =============================================================================

type balancePoint struct {
	at       time.Time
	balances ledger.Snapshot
}

// Sim is an in-memory Vault implementation plus the host-side write
// operations hooks themselves never perform.
type Sim struct {
	mu sync.RWMutex

	accountID string
	created   time.Time
	now       time.Time

	parameters map[string]string
	flags      map[string][]flagWindow // flag name -> active windows
	history    []balancePoint          // balance timeline, ascending
	lastExec   map[string]time.Time

	Notifications   []Notification
	ScheduleUpdates []ScheduleUpdate
	Journal         []ledger.Posting
}

type flagWindow struct {
	from time.Time
	to   *time.Time // nil = still active
}

// NewSim creates a simulated account opened at the given instant.
func NewSim(accountID string, created time.Time, parameters map[string]string) *Sim {
	params := make(map[string]string, len(parameters))
	for k, v := range parameters {
		params[k] = v
	}
	return &Sim{
		accountID:  accountID,
		created:    created,
		now:        created,
		parameters: params,
		flags:      make(map[string][]flagWindow),
		history:    []balancePoint{{at: created, balances: ledger.Snapshot{}}},
		lastExec:   make(map[string]time.Time),
	}
}

var _ Vault = (*Sim)(nil)

// =============================================================================
// VAULT INTERFACE
// =============================================================================

func (s *Sim) AccountID() string { return s.accountID }

func (s *Sim) CreationDatetime() time.Time { return s.created }

func (s *Sim) Parameter(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.parameters[name]
	return v, ok
}

func (s *Sim) BalancesObservation() ledger.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balancesAtLocked(s.now)
}

func (s *Sim) BalancesAt(at time.Time) ledger.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balancesAtLocked(at)
}

func (s *Sim) balancesAtLocked(at time.Time) ledger.Snapshot {
	// History is ascending; take the latest point not after 'at'.
	idx := sort.Search(len(s.history), func(i int) bool { return s.history[i].at.After(at) })
	if idx == 0 {
		return ledger.Snapshot{}
	}
	return s.history[idx-1].balances.Clone()
}

func (s *Sim) IsFlagApplied(listParameter string, at time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.parameters[listParameter]
	if !ok {
		return false
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return false
	}
	for _, name := range names {
		for _, w := range s.flags[name] {
			if !at.Before(w.from) && (w.to == nil || at.Before(*w.to)) {
				return true
			}
		}
	}
	return false
}

func (s *Sim) LastExecution(event string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastExec[event]
	return t, ok
}

// =============================================================================
// HOST-SIDE OPERATIONS
// =============================================================================

// SetClock moves the simulated hook effective time.
func (s *Sim) SetClock(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Now returns the simulated hook effective time.
func (s *Sim) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// SetParameter overwrites a parameter value.
func (s *Sim) SetParameter(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parameters[name] = value
}

// ApplyFlag activates a named flag from the given instant.
func (s *Sim) ApplyFlag(name string, from time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[name] = append(s.flags[name], flagWindow{from: from})
}

// RemoveFlag deactivates a flag at the given instant.
func (s *Sim) RemoveFlag(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	windows := s.flags[name]
	for i := range windows {
		if windows[i].to == nil {
			end := at
			windows[i].to = &end
		}
	}
	s.flags[name] = windows
}

// RestoreExecution backfills a last-execution marker when rebuilding an
// account from a persisted journal.
func (s *Sim) RestoreExecution(event string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExec[event] = at
}

// CommitPosting applies a single host-committed posting (an incoming
// spend, auth, settlement, or repayment) to the balance timeline.
func (s *Sim) CommitPosting(at time.Time, p ledger.Posting) {
	s.CommitPostings(at, []ledger.Posting{p})
}

// CommitPostings applies host-committed postings at an instant.
func (s *Sim) CommitPostings(at time.Time, ps []ledger.Posting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendPointLocked(at, ps)
}

// Commit applies a HookResult the way the host would: every batch's
// postings land on the balance timeline at the batch value timestamp,
// notifications and schedule updates are recorded, and the named event's
// last-execution marker is advanced when given.
func (s *Sim) Commit(result HookResult, event string, executedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, batch := range result.Batches {
		s.appendPointLocked(batch.ValueTimestamp, batch.Postings)
	}
	s.Notifications = append(s.Notifications, result.Notifications...)
	s.ScheduleUpdates = append(s.ScheduleUpdates, result.ScheduleUpdates...)
	if event != "" {
		s.lastExec[event] = executedAt
	}
}

func (s *Sim) appendPointLocked(at time.Time, ps []ledger.Posting) {
	latest := s.history[len(s.history)-1]
	base := at
	if base.Before(latest.at) {
		// Out-of-order commits are folded onto the head of the timeline;
		// the engine only relies on ordering for cutoff re-diffing.
		base = latest.at
	}
	next := latest.balances.Clone()
	working := ledger.NewInFlight(s.accountID, next)
	for _, p := range ps {
		working.Apply(p)
		s.Journal = append(s.Journal, p)
	}
	s.history = append(s.history, balancePoint{at: base, balances: working.View()})
}

// NotificationsOfType filters recorded notifications.
func (s *Sim) NotificationsOfType(notifType string) []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Notification
	for _, n := range s.Notifications {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}
