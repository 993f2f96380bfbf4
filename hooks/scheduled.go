/*
scheduled.go - Scheduled events, activation, deactivation

PURPOSE:
  Dispatches the four scheduled events (daily interest accrual, statement
  cut-off, payment due, annual fee), seeds the account's projections and
  schedules at activation, and runs the closure flow at deactivation.

SCHEDULING MODEL:
  Events are rescheduled one hop at a time: the statement cut-off pins the
  next payment due, payment due pins the next statement cut-off, and the
  annual fee pins its own next anniversary. The daily accrual is the only
  recurring expression, set once at activation.

LATE EXECUTION:
  A schedule may fire after its nominal instant. Every event therefore
  derives its nominal date from the account creation datetime and the
  execution time rather than trusting the clock: the statement cut-off
  values balances at the nominal cutoff, not at execution.
*/
package hooks

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/corebank/card-engine/engine"
	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// ErrUnknownEvent reports a scheduled event name this contract does not
// declare.
var ErrUnknownEvent = errors.New("unknown scheduled event")

// ScheduledEvent dispatches one scheduled-event execution.
func ScheduledEvent(v vault.Vault, event string, at time.Time) (vault.HookResult, error) {
	switch event {
	case engine.EventAccrueInterest:
		return accrueInterest(v, at), nil
	case engine.EventStatementCutOff:
		return statementCutOff(v, at), nil
	case engine.EventPaymentDue:
		return paymentDue(v, at), nil
	case engine.EventAnnualFee:
		return annualFee(v, at), nil
	default:
		return vault.HookResult{}, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
}

func newBuilder(cfg engine.Config, v vault.Vault) *ledger.Builder {
	return ledger.NewBuilder(cfg.AccountID, cfg.Denomination,
		ledger.NewInFlight(cfg.AccountID, v.BalancesObservation()))
}

// accrueInterest runs the daily accrual at the local cutoff.
func accrueInterest(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	st := ResolveState(v, at)
	b := newBuilder(cfg, v)

	// Between PDD and the next cut-off the interest-free promos of the
	// closed cycle stay honored even if the configured expiry has passed.
	lastPDD, pddRan := v.LastExecution(engine.EventPaymentDue)
	lastSCOD, scodRan := v.LastExecution(engine.EventStatementCutOff)
	betweenPDDAndSCOD := pddRan && (!scodRan || lastPDD.After(lastSCOD))

	immediate := engine.AccrueInterest(cfg, engine.AccrualInput{
		State:             st,
		Year:              at.Year(),
		InterestFree:      func(txnType, ref string) bool { return cfg.IsInterestFree(txnType, ref, at) },
		BetweenPDDAndSCOD: betweenPDDAndSCOD,
	}, b)
	engine.ChargeInterest(cfg, b, immediate, "accrue_interest")
	if len(immediate) > 0 {
		engine.AdjustAggregateBalances(cfg, b)
	}

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	return result
}

// statementCutOff closes the cycle whose nominal cutoff most recently
// passed, publishes the statement, and pins the payment due schedule.
func statementCutOff(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	st := ResolveState(v, at)
	b := newBuilder(cfg, v)
	creation := v.CreationDatetime()

	scodStart := engine.LastSCODStart(creation, at)
	res := engine.ProcessStatementCutOff(cfg, engine.StatementInput{
		State:     st,
		SCODStart: scodStart,
		Cutoff:    v.BalancesAt(engine.CutoffInstant(scodStart)),
	}, b)

	periodStart := creation
	if prev := scodStart.AddDate(0, -1, 0); !prev.Before(engine.FirstSCODStart(creation)) {
		periodStart = prev
	}

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	result.Notifications = append(result.Notifications,
		engine.StatementNotification(cfg, res, periodStart, engine.CutoffInstant(scodStart)))
	result.ScheduleUpdates = append(result.ScheduleUpdates,
		engine.ScheduleAt(engine.EventPaymentDue, res.NextPDD))
	return result
}

// paymentDue evaluates the cycle's repayments against MAD and pins the
// next statement cut-off.
func paymentDue(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	st := ResolveState(v, at)
	b := newBuilder(cfg, v)

	res := engine.ProcessPaymentDue(cfg, st, b)

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	result.Notifications = append(result.Notifications, res.Notifications...)
	result.ScheduleUpdates = append(result.ScheduleUpdates,
		engine.ScheduleAt(engine.EventStatementCutOff,
			engine.NextSCODStart(engine.LastSCODStart(v.CreationDatetime(), at))))
	return result
}

// annualFee charges the anniversary fee and pins next year's charge.
func annualFee(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	b := newBuilder(cfg, v)

	engine.ChargeAnnualFee(cfg, b)

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	result.ScheduleUpdates = append(result.ScheduleUpdates,
		engine.ScheduleAnnualFee(v.CreationDatetime(), at.Year()+1))
	return result
}

// =============================================================================
// ACTIVATION / DEACTIVATION
// =============================================================================

// Activation seeds the available-balance projection and installs the
// account's schedules: the recurring daily accrual, the first statement
// cut-off, and the first anniversary fee.
func Activation(v vault.Vault, at time.Time) vault.HookResult {
	cfg := BuildConfig(v)
	b := newBuilder(cfg, v)
	creation := v.CreationDatetime()

	b.SetAbsolute(ledger.AvailableBalance, cfg.CreditLimit, map[string]string{
		ledger.DetailEvent:       "activation",
		ledger.DetailDescription: "initial available balance",
	})

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	result.ScheduleUpdates = append(result.ScheduleUpdates,
		vault.ScheduleUpdate{
			Event: engine.EventAccrueInterest,
			Expr: vault.ScheduleExpr{
				Hour:   strconv.Itoa(engine.LocalAccrualCutoffHour),
				Minute: strconv.Itoa(engine.LocalAccrualCutoffMinute),
				Second: "0",
			},
		},
		engine.ScheduleAt(engine.EventStatementCutOff, engine.FirstSCODStart(creation)),
		engine.ScheduleAnnualFee(creation, creation.Year()+1),
	)
	return result
}

// Deactivation runs the closure flow. A non-nil rejection blocks the
// closure and nothing is committed.
func Deactivation(v vault.Vault, at time.Time) (vault.HookResult, *vault.Rejection) {
	cfg := BuildConfig(v)
	st := ResolveState(v, at)
	b := newBuilder(cfg, v)
	creation := v.CreationDatetime()

	res, rejection := engine.CloseAccount(cfg, st, engine.StatementInput{
		State:     st,
		SCODStart: engine.LastSCODStart(creation, at),
		Cutoff:    b.Balances().View(),
	}, b)
	if rejection != nil {
		return vault.HookResult{}, rejection
	}

	periodStart := creation
	if last, ok := v.LastExecution(engine.EventStatementCutOff); ok {
		periodStart = last
	}

	var result vault.HookResult
	result.AddBatch(at, b.Postings())
	result.Notifications = append(result.Notifications,
		engine.StatementNotification(cfg, res.Statement, periodStart, at))
	// Stop every schedule: the account is closing.
	for _, event := range []string{
		engine.EventAccrueInterest, engine.EventStatementCutOff,
		engine.EventPaymentDue, engine.EventAnnualFee,
	} {
		result.ScheduleUpdates = append(result.ScheduleUpdates,
			vault.ScheduleUpdate{Event: event, Skip: true})
	}
	return result, nil
}
