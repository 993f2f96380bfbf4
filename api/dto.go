/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Defines the JSON shapes exchanged with API clients, separate from the
  domain types. Conversion helpers keep handlers free of field-by-field
  mapping noise.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  All monetary amounts cross the wire as decimal strings ("112.34"),
  never floats. The ledger works in exact decimals and floats would lose
  exactness on the way through JSON.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"
	"time"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// =============================================================================
// ACCOUNT DTOs
// =============================================================================

// AccountDTO is the public shape of a simulated card account.
type AccountDTO struct {
	ID           string `json:"id"`
	Denomination string `json:"denomination"`
	OpenedAt     string `json:"opened_at"`
	Clock        string `json:"clock"`
}

// CreateAccountRequest opens a new account. Parameters use the contract's
// declared schema names.
type CreateAccountRequest struct {
	ID         string            `json:"id"`
	OpenedAt   string            `json:"opened_at,omitempty"`
	Parameters map[string]string `json:"parameters"`
}

// BalanceDTO is one non-zero balance coordinate.
type BalanceDTO struct {
	Address      string `json:"address"`
	Denomination string `json:"denomination"`
	Phase        string `json:"phase"`
	Net          string `json:"net"`
}

// balanceDTOs flattens a snapshot into sorted non-zero coordinates.
func balanceDTOs(snapshot ledger.Snapshot) []BalanceDTO {
	dtos := make([]BalanceDTO, 0, len(snapshot))
	for coord, net := range snapshot {
		if net.IsZero() {
			continue
		}
		dtos = append(dtos, BalanceDTO{
			Address:      coord.Address,
			Denomination: coord.Denomination,
			Phase:        string(coord.Phase),
			Net:          net.String(),
		})
	}
	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Address != dtos[j].Address {
			return dtos[i].Address < dtos[j].Address
		}
		return dtos[i].Phase < dtos[j].Phase
	})
	return dtos
}

// =============================================================================
// POSTING DTOs
// =============================================================================

// PostingRequest submits a posting against an account. Kind follows the
// host instruction vocabulary: outbound_authorization,
// authorization_adjustment, settlement, release, outbound_hard_settlement,
// inbound_hard_settlement.
type PostingRequest struct {
	Kind    string            `json:"kind"`
	Amount  string            `json:"amount"`
	Final   bool              `json:"final,omitempty"`
	At      string            `json:"at,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// PostingDTO is one journal entry.
type PostingDTO struct {
	At            string            `json:"at"`
	Amount        string            `json:"amount"`
	Denomination  string            `json:"denomination"`
	Phase         string            `json:"phase"`
	DebitAccount  string            `json:"debit_account"`
	DebitAddress  string            `json:"debit_address"`
	CreditAccount string            `json:"credit_account"`
	CreditAddress string            `json:"credit_address"`
	Details       map[string]string `json:"details,omitempty"`
}

func postingDTO(at time.Time, p ledger.Posting) PostingDTO {
	return PostingDTO{
		At:            at.Format(time.RFC3339Nano),
		Amount:        p.Amount.String(),
		Denomination:  p.Denomination,
		Phase:         string(p.Phase),
		DebitAccount:  p.DebitAccount,
		DebitAddress:  p.DebitAddress,
		CreditAccount: p.CreditAccount,
		CreditAddress: p.CreditAddress,
		Details:       p.Details,
	}
}

// RejectionDTO reports a declined posting or parameter change.
type RejectionDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// EVENT / SCHEDULE DTOs
// =============================================================================

// EventRequest fires one scheduled event by name (ACCRUE_INTEREST,
// STATEMENT_CUT_OFF, PAYMENT_DUE, ANNUAL_FEE) at an instant.
type EventRequest struct {
	Event string `json:"event"`
	At    string `json:"at"`
}

// AdvanceRequest runs every due scheduled event, in order, up to an
// instant.
type AdvanceRequest struct {
	To string `json:"to"`
}

// ScheduleDTO is the latest pinned expression for one event.
type ScheduleDTO struct {
	Event  string `json:"event"`
	Expr   string `json:"expr"`
	Skip   bool   `json:"skip"`
	NextAt string `json:"next_at,omitempty"`
}

// NotificationDTO is one published notification.
type NotificationDTO struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Payload map[string]string `json:"payload"`
}

func notificationDTO(n vault.Notification) NotificationDTO {
	return NotificationDTO{ID: n.ID, Type: n.Type, Payload: n.Payload}
}

// =============================================================================
// FLAG / PARAMETER DTOs
// =============================================================================

// FlagRequest applies or removes a named account flag.
type FlagRequest struct {
	Name   string `json:"name"`
	Action string `json:"action"` // "apply" or "remove"
	At     string `json:"at,omitempty"`
}

// ParameterChangeRequest updates one instance parameter.
type ParameterChangeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	At    string `json:"at,omitempty"`
}

// ClockRequest moves the account's simulated clock.
type ClockRequest struct {
	At string `json:"at"`
}

// CloseRequest deactivates an account.
type CloseRequest struct {
	At string `json:"at,omitempty"`
}

// =============================================================================
// SCENARIO DTOs
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario by id.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}
