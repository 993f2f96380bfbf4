/*
handlers.go - HTTP API handlers for the card engine simulator

PURPOSE:
  Exposes the card lifecycle over REST. Each account is an in-memory
  simulated host (vault.Sim) backed by the SQLite store; handlers run the
  same hook entry points the production host would and persist every
  committed effect.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                     List account ids
    POST   /api/accounts                     Open account (runs activation)
    GET    /api/accounts/{id}                Account details
    GET    /api/accounts/{id}/balances       Live balances
    GET    /api/accounts/{id}/postings       Posting journal

  Postings:
    POST   /api/accounts/{id}/postings       Submit auth/settlement/spend/repayment

  Lifecycle:
    POST   /api/accounts/{id}/events         Fire one scheduled event
    POST   /api/accounts/{id}/advance        Run all due events up to an instant
    POST   /api/accounts/{id}/close          Deactivate (closure flow)
    POST   /api/accounts/{id}/clock          Move the simulated clock

  State:
    GET    /api/accounts/{id}/notifications  Published notifications
    GET    /api/accounts/{id}/statements     Statement payloads
    GET    /api/accounts/{id}/schedules      Pinned schedule expressions
    POST   /api/accounts/{id}/flags          Apply/remove an account flag
    GET    /api/accounts/{id}/parameters     Parameter values
    PUT    /api/accounts/{id}/parameters     Change one parameter

REQUEST FLOW:
  1. Parse HTTP request
  2. Load (or rebuild) the account runtime
  3. Run the hook entry point
  4. Commit the result to the runtime and persist it
  5. Serialize response

ERROR HANDLING:
  - 400: Malformed input
  - 404: Unknown account
  - 409: Hook rejection (posting, parameter change, closure)
  - 500: Storage errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Due-event computation used by advance
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/engine"
	"github.com/corebank/card-engine/hooks"
	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/store/sqlite"
	"github.com/corebank/card-engine/vault"
)

// merchantAccount is the internal counterparty for outbound spends.
const merchantAccount = "merchant_settlement"

// fundsAccount is the internal counterparty for incoming repayments.
const fundsAccount = "customer_funds"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	mu       sync.Mutex
	accounts map[string]*vault.Sim

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		accounts: make(map[string]*vault.Sim),
	}
}

// account returns the cached runtime for an id, rebuilding it from the
// store when the process has not seen the account yet.
func (h *Handler) account(id string) (*vault.Sim, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sim, ok := h.accounts[id]; ok {
		return sim, nil
	}

	rec, err := h.Store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	params, err := h.Store.Parameters(id)
	if err != nil {
		return nil, err
	}

	sim := vault.NewSim(rec.ID, rec.CreatedAt, params)
	journal, err := h.Store.Journal(id)
	if err != nil {
		return nil, err
	}
	for _, entry := range journal {
		sim.CommitPosting(entry.ValueAt, entry.Posting)
	}

	flagEvents, err := h.Store.FlagEvents(id)
	if err != nil {
		return nil, err
	}
	for _, fe := range flagEvents {
		if fe.Applied {
			sim.ApplyFlag(fe.Name, fe.At)
		} else {
			sim.RemoveFlag(fe.Name, fe.At)
		}
	}

	executions, err := h.Store.Executions(id)
	if err != nil {
		return nil, err
	}
	for event, at := range executions {
		sim.RestoreExecution(event, at)
	}

	schedules, err := h.Store.Schedules(id)
	if err != nil {
		return nil, err
	}
	sim.ScheduleUpdates = append(sim.ScheduleUpdates, schedules...)

	sim.SetClock(rec.Clock)
	h.accounts[id] = sim
	return sim, nil
}

// commit applies a hook result to the runtime and persists every effect.
func (h *Handler) commit(sim *vault.Sim, result vault.HookResult, event string, at time.Time) error {
	sim.Commit(result, event, at)
	id := sim.AccountID()

	for _, batch := range result.Batches {
		if err := h.Store.AppendPostings(id, batch.ValueTimestamp, batch.Postings); err != nil {
			return err
		}
	}
	if err := h.Store.SaveNotifications(id, at, result.Notifications); err != nil {
		return err
	}
	if err := h.Store.SaveScheduleUpdates(id, result.ScheduleUpdates); err != nil {
		return err
	}
	if event != "" {
		if err := h.Store.SaveExecution(id, event, at); err != nil {
			return err
		}
	}
	return nil
}

// setClock moves both the runtime and the persisted clock, never backwards.
func (h *Handler) setClock(sim *vault.Sim, at time.Time) error {
	if at.Before(sim.Now()) {
		return nil
	}
	sim.SetClock(at)
	return h.Store.SetClock(sim.AccountID(), at)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all account ids.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Store.ListAccounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateAccount opens a new account and runs the activation hook.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Account id is required", nil)
		return
	}

	openedAt := time.Now().UTC()
	if req.OpenedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OpenedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opened_at (use RFC3339)", err)
			return
		}
		openedAt = parsed.UTC()
	}

	if err := h.Store.CreateAccount(req.ID, openedAt, req.Parameters); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	sim := vault.NewSim(req.ID, openedAt, req.Parameters)
	if err := h.commit(sim, hooks.Activation(sim, openedAt), "", openedAt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to activate account", err)
		return
	}

	h.mu.Lock()
	h.accounts[req.ID] = sim
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, h.accountDTO(sim))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.accountDTO(sim))
}

func (h *Handler) accountDTO(sim *vault.Sim) AccountDTO {
	denomination, _ := sim.Parameter(hooks.ParamDenomination)
	return AccountDTO{
		ID:           sim.AccountID(),
		Denomination: denomination,
		OpenedAt:     sim.CreationDatetime().Format(time.RFC3339),
		Clock:        sim.Now().Format(time.RFC3339),
	}
}

// GetBalances returns the account's live balances.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, balanceDTOs(sim.BalancesObservation()))
}

// GetPostings returns the posting journal.
func (h *Handler) GetPostings(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	journal, err := h.Store.Journal(sim.AccountID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read journal", err)
		return
	}
	dtos := make([]PostingDTO, 0, len(journal))
	for _, entry := range journal {
		dtos = append(dtos, postingDTO(entry.ValueAt, entry.Posting))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// POSTING SUBMISSION
// =============================================================================

// SubmitPosting validates, commits, and post-processes one posting.
func (h *Handler) SubmitPosting(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req PostingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string)", err)
		return
	}
	at := sim.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
		at = parsed.UTC()
	}
	kind := hooks.PostingKind(req.Kind)
	denomination, _ := sim.Parameter(hooks.ParamDenomination)

	if err := h.setClock(sim, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance clock", err)
		return
	}

	// Pre-posting validation guards new spend exposure; adjustments,
	// settlements against held auths, releases, and incoming repayments
	// are host-driven continuations and always land.
	if kind == hooks.KindAuth || kind == hooks.KindHardSettlement {
		rejection := hooks.PrePosting(sim, engine.ProposedPosting{
			Amount:       amount,
			Denomination: denomination,
			Details:      req.Details,
			At:           at,
		})
		if rejection != nil {
			writeJSON(w, http.StatusConflict, RejectionDTO{
				Code:    string(rejection.Code),
				Message: rejection.Message,
			})
			return
		}
	}

	hostLegs := hostPostings(sim, kind, amount, req.Final, denomination)
	sim.CommitPostings(at, hostLegs)
	if err := h.Store.AppendPostings(sim.AccountID(), at, hostLegs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist posting", err)
		return
	}

	result := hooks.PostPosting(sim, hooks.CommittedPosting{
		Kind:         kind,
		Amount:       amount,
		Final:        req.Final,
		Denomination: denomination,
		Details:      req.Details,
		At:           at,
	})
	if err := h.commit(sim, result, "", at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist posting effects", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "committed",
		"kind":     req.Kind,
		"amount":   amount.String(),
		"balances": balanceDTOs(sim.BalancesObservation()),
	})
}

// hostPostings builds the real-money legs the host platform would commit
// for an instruction, before the post-posting hook adds its mirrors.
func hostPostings(sim *vault.Sim, kind hooks.PostingKind, amount decimal.Decimal, final bool, denomination string) []ledger.Posting {
	id := sim.AccountID()
	pending := sim.BalancesObservation().NetPending(ledger.DefaultAddress, denomination)

	leg := func(amount decimal.Decimal, phase ledger.Phase, debitAccount, creditAccount string) ledger.Posting {
		return ledger.Posting{
			Amount:        amount,
			Denomination:  denomination,
			Asset:         ledger.DefaultAsset,
			Phase:         phase,
			DebitAccount:  debitAccount,
			DebitAddress:  ledger.DefaultAddress,
			CreditAccount: creditAccount,
			CreditAddress: ledger.DefaultAddress,
		}
	}

	switch kind {
	case hooks.KindAuth:
		return []ledger.Posting{leg(amount, ledger.PhasePendingOut, id, merchantAccount)}

	case hooks.KindAuthAdjustment:
		if amount.IsNegative() {
			return []ledger.Posting{leg(decimal.Min(amount.Neg(), pending), ledger.PhasePendingOut, merchantAccount, id)}
		}
		return []ledger.Posting{leg(amount, ledger.PhasePendingOut, id, merchantAccount)}

	case hooks.KindRelease:
		released := amount
		if released.IsZero() {
			released = pending
		}
		return []ledger.Posting{leg(decimal.Min(released, pending), ledger.PhasePendingOut, merchantAccount, id)}

	case hooks.KindSettlement:
		settled := amount
		if final && settled.IsZero() {
			settled = pending
		}
		legs := []ledger.Posting{leg(settled, ledger.PhaseCommitted, id, merchantAccount)}
		unwound := decimal.Min(settled, pending)
		if final {
			unwound = pending
		}
		if unwound.IsPositive() {
			legs = append(legs, leg(unwound, ledger.PhasePendingOut, merchantAccount, id))
		}
		return legs

	case hooks.KindRepayment:
		return []ledger.Posting{leg(amount, ledger.PhaseCommitted, fundsAccount, id)}

	default: // outbound_hard_settlement and anything unrecognised spends committed
		return []ledger.Posting{leg(amount, ledger.PhaseCommitted, id, merchantAccount)}
	}
}

// =============================================================================
// SCHEDULED EVENTS
// =============================================================================

// FireEvent runs one scheduled event by name.
func (h *Handler) FireEvent(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := time.Parse(time.RFC3339, req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
		return
	}
	at = at.UTC()

	if err := h.setClock(sim, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance clock", err)
		return
	}
	result, err := hooks.ScheduledEvent(sim, req.Event, at)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown event", err)
		return
	}
	if err := h.commit(sim, result, req.Event, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist event effects", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "executed",
		"event":    req.Event,
		"at":       at.Format(time.RFC3339),
		"balances": balanceDTOs(sim.BalancesObservation()),
	})
}

// Advance runs every due scheduled event, in chronological order, up to
// the given instant.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	to, err := time.Parse(time.RFC3339, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to (use RFC3339)", err)
		return
	}
	to = to.UTC()

	fired, err := h.advanceAccount(sim, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance account", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "advanced",
		"to":       to.Format(time.RFC3339),
		"fired":    fired,
		"balances": balanceDTOs(sim.BalancesObservation()),
	})
}

// advanceAccount fires due events one at a time, recomputing the due set
// after each execution because events re-pin their successors.
func (h *Handler) advanceAccount(sim *vault.Sim, to time.Time) ([]map[string]string, error) {
	fired := []map[string]string{}
	for {
		event, at, due := nextDueEvent(sim, to)
		if !due {
			break
		}
		if err := h.setClock(sim, at); err != nil {
			return fired, err
		}
		result, err := hooks.ScheduledEvent(sim, event, at)
		if err != nil {
			return fired, err
		}
		if err := h.commit(sim, result, event, at); err != nil {
			return fired, err
		}
		fired = append(fired, map[string]string{"event": event, "at": at.Format(time.RFC3339)})
	}
	if err := h.setClock(sim, to); err != nil {
		return fired, err
	}
	return fired, nil
}

// =============================================================================
// NOTIFICATIONS, STATEMENTS, SCHEDULES
// =============================================================================

// GetNotifications returns published notifications, optionally filtered
// by ?type=.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	notifications, err := h.Store.Notifications(sim.AccountID(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read notifications", err)
		return
	}
	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, notificationDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetStatements returns statement payloads in publication order.
func (h *Handler) GetStatements(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	notifications, err := h.Store.Notifications(sim.AccountID(), vault.NotifyStatementData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read statements", err)
		return
	}
	statements := make([]map[string]string, 0, len(notifications))
	for _, n := range notifications {
		statements = append(statements, n.Payload)
	}
	writeJSON(w, http.StatusOK, statements)
}

// GetSchedules returns the latest pinned expression per event.
func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	dtos := make([]ScheduleDTO, 0, 4)
	for event, update := range latestSchedules(sim) {
		dto := ScheduleDTO{Event: event, Expr: exprString(update.Expr), Skip: update.Skip}
		cursor := scheduleCursor(sim, event)
		if next, ok := nextOccurrence(update.Expr, cursor); ok && !update.Skip {
			dto.NextAt = next.Format(time.RFC3339)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FLAGS, PARAMETERS, CLOCK, CLOSURE
// =============================================================================

// SetFlag applies or removes a named account flag.
func (h *Handler) SetFlag(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at := sim.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
		at = parsed.UTC()
	}

	switch req.Action {
	case "apply":
		sim.ApplyFlag(req.Name, at)
	case "remove":
		sim.RemoveFlag(req.Name, at)
	default:
		writeError(w, http.StatusBadRequest, "Action must be apply or remove", nil)
		return
	}
	if err := h.Store.AppendFlagEvent(sim.AccountID(), req.Name, at, req.Action == "apply"); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist flag", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": req.Action + "d",
		"flag":   req.Name,
	})
}

// GetParameters returns the account's parameter values.
func (h *Handler) GetParameters(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}
	params, err := h.Store.Parameters(sim.AccountID())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read parameters", err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}

// ChangeParameter validates and commits one parameter change, then runs
// the post-change projection refresh.
func (h *Handler) ChangeParameter(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req ParameterChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at := sim.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
		at = parsed.UTC()
	}

	if rejection := hooks.ValidateParameterChange(sim, req.Name, req.Value); rejection != nil {
		writeJSON(w, http.StatusConflict, RejectionDTO{
			Code:    string(rejection.Code),
			Message: rejection.Message,
		})
		return
	}

	sim.SetParameter(req.Name, req.Value)
	if err := h.Store.SetParameter(sim.AccountID(), req.Name, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist parameter", err)
		return
	}
	if err := h.setClock(sim, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance clock", err)
		return
	}
	if err := h.commit(sim, hooks.PostParameterChange(sim, at), "", at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist parameter effects", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "changed",
		"name":     req.Name,
		"balances": balanceDTOs(sim.BalancesObservation()),
	})
}

// SetClock moves the simulated clock forward.
func (h *Handler) SetClock(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	at, err := time.Parse(time.RFC3339, req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
		return
	}
	if err := h.setClock(sim, at.UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance clock", err)
		return
	}
	writeJSON(w, http.StatusOK, h.accountDTO(sim))
}

// CloseAccount runs the deactivation flow.
func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.loadOr404(w, r)
	if !ok {
		return
	}

	var req CloseRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	at := sim.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid at (use RFC3339)", err)
			return
		}
		at = parsed.UTC()
	}

	if err := h.setClock(sim, at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to advance clock", err)
		return
	}
	result, rejection := hooks.Deactivation(sim, at)
	if rejection != nil {
		writeJSON(w, http.StatusConflict, RejectionDTO{
			Code:    string(rejection.Code),
			Message: rejection.Message,
		})
		return
	}
	if err := h.commit(sim, result, "", at); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist closure", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "closed",
		"at":       at.Format(time.RFC3339),
		"balances": balanceDTOs(sim.BalancesObservation()),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// loadOr404 resolves the {id} route param into an account runtime.
func (h *Handler) loadOr404(w http.ResponseWriter, r *http.Request) (*vault.Sim, bool) {
	id := chi.URLParam(r, "id")
	sim, err := h.account(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "Account not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		}
		return nil, false
	}
	return sim, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
