/*
scheduler.go - Schedule expression evaluation and the auto-advance scheduler

PURPOSE:
  Hooks pin schedule expressions (one-shot instants and the recurring
  daily accrual); something still has to fire them. This file evaluates
  the pinned expressions into concrete due instants, and runs an optional
  background scheduler that advances every account's lifecycle toward
  wall-clock time.

EXPRESSION MODEL:
  - Year set:   one-shot. Day may be "last" (end-of-month anniversaries).
  - Year empty: daily recurrence at Hour:Minute:Second.
  An event is due when its next occurrence after the last execution is
  not later than the target instant. Firing at exactly the pinned instant
  advances the last-execution marker past it, so one-shots never refire.

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the background scheduler is active (default: true)

USAGE:
  scheduler := NewLifecycleScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Advance endpoint (manual, simulated-time advancement)
  - hooks/scheduled.go: The event executions being driven
*/
package api

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/corebank/card-engine/vault"
)

// =============================================================================
// EXPRESSION EVALUATION
// =============================================================================

// latestSchedules reduces the append-only schedule update stream to the
// current expression per event.
func latestSchedules(sim *vault.Sim) map[string]vault.ScheduleUpdate {
	out := make(map[string]vault.ScheduleUpdate)
	for _, update := range sim.ScheduleUpdates {
		out[update.Event] = update
	}
	return out
}

// scheduleCursor returns the instant to search forward from: the last
// execution when the event has run, the account opening otherwise.
func scheduleCursor(sim *vault.Sim, event string) time.Time {
	if last, ok := sim.LastExecution(event); ok {
		return last
	}
	return sim.CreationDatetime()
}

// nextOccurrence resolves an expression to its next instant strictly
// after the given one. Returns false for empty or skip-only expressions.
func nextOccurrence(expr vault.ScheduleExpr, after time.Time) (time.Time, bool) {
	if expr.Year != "" {
		year := atoiOr(expr.Year, 0)
		month := time.Month(atoiOr(expr.Month, 1))
		day := atoiOr(expr.Day, 1)
		if expr.Day == "last" {
			day = daysInMonth(year, month)
		}
		t := time.Date(year, month, day,
			atoiOr(expr.Hour, 0), atoiOr(expr.Minute, 0), atoiOr(expr.Second, 0), 0, time.UTC)
		if t.After(after) {
			return t, true
		}
		return time.Time{}, false
	}

	if expr.Hour == "" && expr.Minute == "" && expr.Second == "" {
		return time.Time{}, false
	}

	// Daily recurrence.
	candidate := time.Date(after.Year(), after.Month(), after.Day(),
		atoiOr(expr.Hour, 0), atoiOr(expr.Minute, 0), atoiOr(expr.Second, 0), 0, time.UTC)
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate, true
}

// nextDueEvent returns the earliest event due at or before 'to', if any.
func nextDueEvent(sim *vault.Sim, to time.Time) (string, time.Time, bool) {
	var dueEvent string
	var dueAt time.Time
	found := false

	for event, update := range latestSchedules(sim) {
		if update.Skip {
			continue
		}
		next, ok := nextOccurrence(update.Expr, scheduleCursor(sim, event))
		if !ok || next.After(to) {
			continue
		}
		if !found || next.Before(dueAt) || (next.Equal(dueAt) && event < dueEvent) {
			dueEvent, dueAt, found = event, next, true
		}
	}
	return dueEvent, dueAt, found
}

// exprString renders an expression compactly for API responses.
func exprString(expr vault.ScheduleExpr) string {
	pick := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	return pick(expr.Year) + "-" + pick(expr.Month) + "-" + pick(expr.Day) +
		" " + pick(expr.Hour) + ":" + pick(expr.Minute) + ":" + pick(expr.Second)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// BACKGROUND SCHEDULER
// =============================================================================

// LifecycleScheduler advances every account's schedules toward wall-clock
// time in the background, so a long-running server bills statements and
// accrues interest without manual event firing.
type LifecycleScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLifecycleScheduler creates a new scheduler.
func NewLifecycleScheduler(handler *Handler) *LifecycleScheduler {
	return &LifecycleScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ls *LifecycleScheduler) Start() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if !ls.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ls.ticker = time.NewTicker(ls.CheckInterval)
	ls.wg.Add(1)

	go ls.run()

	log.Printf("[Scheduler] Started with check interval: %v", ls.CheckInterval)
}

// Stop stops the scheduler.
func (ls *LifecycleScheduler) Stop() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ticker != nil {
		ls.ticker.Stop()
		close(ls.stop)
		ls.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ls *LifecycleScheduler) run() {
	defer ls.wg.Done()

	// Run immediately on start
	ls.checkAndProcess()

	for {
		select {
		case <-ls.ticker.C:
			ls.checkAndProcess()
		case <-ls.stop:
			return
		}
	}
}

func (ls *LifecycleScheduler) checkAndProcess() {
	now := time.Now().UTC()

	ids, err := ls.Handler.Store.ListAccounts()
	if err != nil {
		log.Printf("[Scheduler] Error listing accounts: %v", err)
		return
	}

	firedCount := 0
	for _, id := range ids {
		sim, err := ls.Handler.account(id)
		if err != nil {
			log.Printf("[Scheduler] Error loading account %s: %v", id, err)
			continue
		}
		// Accounts whose simulated clock is ahead of wall-clock time are
		// being driven manually; leave them alone.
		if sim.Now().After(now) {
			continue
		}
		fired, err := ls.Handler.advanceAccount(sim, now)
		if err != nil {
			log.Printf("[Scheduler] Error advancing account %s: %v", id, err)
			continue
		}
		firedCount += len(fired)
	}

	if firedCount > 0 {
		log.Printf("[Scheduler] Completed: %d events fired across %d accounts", firedCount, len(ids))
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (ls *LifecycleScheduler) RunNow() {
	ls.checkAndProcess()
}
