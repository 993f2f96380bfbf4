/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  card lifecycles for testing and demos. Each scenario opens an account,
  drives spends and repayments, and advances the schedule timeline so the
  statement, interest, and delinquency mechanics are visible immediately.

AVAILABLE SCENARIOS:
  transactor:  Spends repaid in full each cycle, no interest charged
  revolver:    Partial repayments, daily interest accrual, late fee
  overlimit:   Opted-in limit breach and the overlimit fee billing
  delinquent:  Missed payments, overdue aging, write-off closure

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Open an account with demo parameters (runs activation)
 3. Commit spends/repayments through the posting hooks
 4. Advance the schedule timeline (accruals, cut-offs, payment due)

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "revolver"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(h)
 3. Add case to LoadScenario handler

NOTE:
  Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - hooks: The entry points each scenario drives
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/hooks"
	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "transactor",
		Name:        "Transactor",
		Description: "Spends repaid in full each cycle; uncharged interest forgiven",
		Category:    "repayment",
	},
	{
		ID:          "revolver",
		Name:        "Revolver",
		Description: "Partial repayments with daily interest accrual and a late fee",
		Category:    "repayment",
	},
	{
		ID:          "overlimit",
		Name:        "Overlimit",
		Description: "Opted-in credit limit breach billed with the overlimit fee",
		Category:    "fees",
	},
	{
		ID:          "delinquent",
		Name:        "Delinquent",
		Description: "Missed payments, overdue aging, and a write-off closure",
		Category:    "collections",
	},
}

// demoParameters is the declared schema for every scenario account.
func demoParameters() map[string]string {
	return map[string]string{
		hooks.ParamDenomination:   "GBP",
		hooks.ParamCreditLimit:    "1000",
		hooks.ParamTxnTypes:       `{"purchase": {}, "cash_advance": {"charge_interest_from_transaction_date": "True"}, "balance_transfer": {}}`,
		hooks.ParamTxnRefs:        `{"balance_transfer": ["ref1"]}`,
		hooks.ParamTxnCodeToType:  `{"00": "purchase", "01": "cash_advance", "02": "balance_transfer"}`,
		hooks.ParamDefaultTxnType: "purchase",
		hooks.ParamBaseRates:      `{"purchase": "0.24", "cash_advance": "0.36", "balance_transfer": "0.22"}`,

		hooks.ParamMADFixed:         "100",
		hooks.ParamMADPercentages:   `{"principal": "0.01", "interest": "1", "fees": "1"}`,
		hooks.ParamPaymentDuePeriod: "21",

		hooks.ParamAnnualFee:        "100",
		hooks.ParamLateRepaymentFee: "25",
		hooks.ParamOverlimitFee:     "80",
		hooks.ParamOverlimitOptIn:   "True",
		hooks.ParamExternalFeeTypes: `["dispute_fee", "atm_withdrawal_fee"]`,

		hooks.ParamMADZeroFlags:         `["REPAYMENT_HOLIDAY"]`,
		hooks.ParamMADAsStatementFlags:  `["MAD_AS_STATEMENT"]`,
		hooks.ParamOverdueBlockingFlags: `["REPAYMENT_HOLIDAY"]`,
		hooks.ParamUnpaidBlockingFlags:  `["REPAYMENT_HOLIDAY"]`,
		hooks.ParamClosureFlags:         `["ACCOUNT_CLOSURE_REQUESTED"]`,
		hooks.ParamWriteOffFlags:        `["ACCOUNT_WRITE_OFF"]`,
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the most recently loaded scenario id.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the database and loads a named scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
	})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets all data and loads one scenario. Exposed for
// the offline simulate command as well as the HTTP endpoint.
func (h *Handler) LoadScenarioByID(id string) error {
	if err := h.reset(); err != nil {
		return err
	}

	var err error
	switch id {
	case "transactor":
		err = h.loadTransactorScenario()
	case "revolver":
		err = h.loadRevolverScenario()
	case "overlimit":
		err = h.loadOverlimitScenario()
	case "delinquent":
		err = h.loadDelinquentScenario()
	default:
		return fmt.Errorf("%w: %s", errUnknownScenario, id)
	}
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// ResetDatabase wipes all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset() error {
	h.mu.Lock()
	h.accounts = make(map[string]*vault.Sim)
	h.currentScenario = ""
	h.mu.Unlock()
	return h.Store.Reset()
}

// =============================================================================
// SCENARIO BUILDING BLOCKS
// =============================================================================

// openScenarioAccount creates, persists, and activates one account.
func (h *Handler) openScenarioAccount(id string, openedAt time.Time) (*vault.Sim, error) {
	params := demoParameters()
	if err := h.Store.CreateAccount(id, openedAt, params); err != nil {
		return nil, err
	}
	sim := vault.NewSim(id, openedAt, params)
	if err := h.commit(sim, hooks.Activation(sim, openedAt), "", openedAt); err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.accounts[id] = sim
	h.mu.Unlock()
	return sim, nil
}

// scenarioPosting commits one posting through the same path as the HTTP
// endpoint.
func (h *Handler) scenarioPosting(sim *vault.Sim, kind hooks.PostingKind, amount string, at time.Time, details map[string]string) error {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if err := h.setClock(sim, at); err != nil {
		return err
	}
	denomination, _ := sim.Parameter(hooks.ParamDenomination)
	legs := hostPostings(sim, kind, value, false, denomination)
	sim.CommitPostings(at, legs)
	if err := h.Store.AppendPostings(sim.AccountID(), at, legs); err != nil {
		return err
	}
	result := hooks.PostPosting(sim, hooks.CommittedPosting{
		Kind:         kind,
		Amount:       value,
		Denomination: denomination,
		Details:      details,
		At:           at,
	})
	return h.commit(sim, result, "", at)
}

func (h *Handler) scenarioFlag(sim *vault.Sim, name string, at time.Time) error {
	sim.ApplyFlag(name, at)
	return h.Store.AppendFlagEvent(sim.AccountID(), name, at, true)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadTransactorScenario: two statement cycles, each repaid in full before
// payment due. No interest ever lands on the account.
func (h *Handler) loadTransactorScenario() error {
	opened := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	sim, err := h.openScenarioAccount("card-transactor", opened)
	if err != nil {
		return err
	}

	purchase := map[string]string{ledger.DetailTransactionCode: "00"}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "250", opened.AddDate(0, 0, 5), purchase); err != nil {
		return err
	}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "120.50", opened.AddDate(0, 0, 12), purchase); err != nil {
		return err
	}

	// Through the first cut-off, then repay the statement in full.
	if _, err := h.advanceAccount(sim, opened.AddDate(0, 1, 0)); err != nil {
		return err
	}
	if err := h.scenarioPosting(sim, hooks.KindRepayment, "370.50", opened.AddDate(0, 1, 5), nil); err != nil {
		return err
	}

	// Through payment due and into the next cycle.
	_, err = h.advanceAccount(sim, opened.AddDate(0, 2, 0))
	return err
}

// loadRevolverScenario: MAD-only repayment flips the account to revolver;
// daily accrual then charges interest immediately and a short second cycle
// shows it compounding onto the statement.
func (h *Handler) loadRevolverScenario() error {
	opened := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	sim, err := h.openScenarioAccount("card-revolver", opened)
	if err != nil {
		return err
	}

	purchase := map[string]string{ledger.DetailTransactionCode: "00"}
	cash := map[string]string{ledger.DetailTransactionCode: "01"}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "600", opened.AddDate(0, 0, 4), purchase); err != nil {
		return err
	}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "150", opened.AddDate(0, 0, 9), cash); err != nil {
		return err
	}

	if _, err := h.advanceAccount(sim, opened.AddDate(0, 1, 0)); err != nil {
		return err
	}
	// Minimum due only.
	if err := h.scenarioPosting(sim, hooks.KindRepayment, "100", opened.AddDate(0, 1, 10), nil); err != nil {
		return err
	}

	// Payment due, then ten days of revolver accrual.
	_, err = h.advanceAccount(sim, opened.AddDate(0, 2, 5))
	return err
}

// loadOverlimitScenario: opted-in breach past the credit limit; the
// overlimit fee is billed with the closing statement.
func (h *Handler) loadOverlimitScenario() error {
	opened := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	sim, err := h.openScenarioAccount("card-overlimit", opened)
	if err != nil {
		return err
	}

	purchase := map[string]string{ledger.DetailTransactionCode: "00"}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "950", opened.AddDate(0, 0, 3), purchase); err != nil {
		return err
	}
	// The opt-in admits one breach past the limit.
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "200", opened.AddDate(0, 0, 8), purchase); err != nil {
		return err
	}

	_, err = h.advanceAccount(sim, opened.AddDate(0, 1, 2))
	return err
}

// loadDelinquentScenario: no repayments for two cycles, so overdue buckets
// age and late fees stack; the account is then written off and closed.
func (h *Handler) loadDelinquentScenario() error {
	opened := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	sim, err := h.openScenarioAccount("card-delinquent", opened)
	if err != nil {
		return err
	}

	purchase := map[string]string{ledger.DetailTransactionCode: "00"}
	if err := h.scenarioPosting(sim, hooks.KindHardSettlement, "800", opened.AddDate(0, 0, 6), purchase); err != nil {
		return err
	}

	// Two full cycles with no repayment at all.
	if _, err := h.advanceAccount(sim, opened.AddDate(0, 2, 10)); err != nil {
		return err
	}

	// Write off and close.
	closeAt := sim.Now().Add(24 * time.Hour)
	if err := h.scenarioFlag(sim, "ACCOUNT_WRITE_OFF", closeAt.Add(-time.Hour)); err != nil {
		return err
	}
	if err := h.setClock(sim, closeAt); err != nil {
		return err
	}
	result, rejection := hooks.Deactivation(sim, closeAt)
	if rejection != nil {
		return fmt.Errorf("closure rejected: %s", rejection.Message)
	}
	return h.commit(sim, result, "", closeAt)
}
