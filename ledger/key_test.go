package ledger_test

import (
	"testing"

	"github.com/corebank/card-engine/ledger"
)

// =============================================================================
// ADDRESS CONSTRUCTION
// =============================================================================

func TestAddress_Principal(t *testing.T) {
	cases := []struct {
		name    string
		txnType string
		ref     string
		status  ledger.Status
		want    string
	}{
		{"simple charged", "purchase", "", ledger.StatusCharged, "PURCHASE_CHARGED"},
		{"with ref", "balance_transfer", "ref1", ledger.StatusBilled, "BALANCE_TRANSFER_REF1_BILLED"},
		{"auth", "cash_advance", "", ledger.StatusAuth, "CASH_ADVANCE_AUTH"},
		{"lowercase ref upper-cased", "balance_transfer", "promo2024", ledger.StatusUnpaid, "BALANCE_TRANSFER_PROMO2024_UNPAID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ledger.PrincipalAddress(tc.txnType, tc.status, tc.ref)
			if got != tc.want {
				t.Errorf("PrincipalAddress() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAddress_Interest(t *testing.T) {
	cases := []struct {
		name    string
		txnType string
		ref     string
		phase   ledger.AccrualPhase
		status  ledger.Status
		want    string
	}{
		{"plain", "purchase", "", ledger.PhaseNone, ledger.StatusUncharged, "PURCHASE_INTEREST_UNCHARGED"},
		{"with ref billed", "balance_transfer", "ref1", ledger.PhaseNone, ledger.StatusBilled, "BALANCE_TRANSFER_REF1_INTEREST_BILLED"},
		{"pre scod", "cash_advance", "", ledger.PhasePreSCOD, ledger.StatusUncharged, "CASH_ADVANCE_INTEREST_PRE_SCOD_UNCHARGED"},
		{"post scod", "purchase", "", ledger.PhasePostSCOD, ledger.StatusUncharged, "PURCHASE_INTEREST_POST_SCOD_UNCHARGED"},
		{"interest free period", "purchase", "", ledger.PhaseInterestFree, ledger.StatusUncharged, "PURCHASE_INTEREST_FREE_PERIOD_INTEREST_UNCHARGED"},
		{
			// A type name already ending in the marker must not get it twice.
			"marker not duplicated", "promo_interest_free_period", "", ledger.PhaseInterestFree, ledger.StatusUncharged,
			"PROMO_INTEREST_FREE_PERIOD_INTEREST_UNCHARGED",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ledger.InterestAddress(tc.txnType, tc.status, tc.ref, tc.phase)
			if got != tc.want {
				t.Errorf("InterestAddress() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAddress_Fee(t *testing.T) {
	if got := ledger.FeeAddress("annual_fee", ledger.StatusCharged); got != "ANNUAL_FEES_CHARGED" {
		t.Errorf("FeeAddress() = %q, want ANNUAL_FEES_CHARGED", got)
	}
	if got := ledger.FeeAddress("purchase_fee", ledger.StatusBilled); got != "PURCHASE_FEES_BILLED" {
		t.Errorf("FeeAddress() = %q, want PURCHASE_FEES_BILLED", got)
	}
}

// =============================================================================
// PARSING AND ROUND-TRIP
// =============================================================================

func TestParseTypeAndRef_RoundTrip(t *testing.T) {
	// GIVEN: the configured transaction types with refs
	// WHEN:  constructing every (type, ref, status) principal address
	// THEN:  parsing recovers exactly (type, ref)

	knownTypes := map[string][]string{
		"PURCHASE":         nil,
		"CASH_ADVANCE":     nil,
		"TRANSFER":         nil,
		"BALANCE_TRANSFER": {"REF1", "REF2"},
	}
	statuses := []ledger.Status{
		ledger.StatusAuth, ledger.StatusCharged, ledger.StatusBilled,
		ledger.StatusUnpaid, ledger.StatusUncharged,
	}

	for txnType, refs := range knownTypes {
		for _, status := range statuses {
			allRefs := append([]string{""}, refs...)
			for _, ref := range allRefs {
				addr := ledger.PrincipalAddress(txnType, status, ref)
				gotType, gotRef := ledger.ParseTypeAndRef(addr, knownTypes, string(status))
				if gotType != txnType || gotRef != ref {
					t.Errorf("round trip %q: got (%q, %q), want (%q, %q)",
						addr, gotType, gotRef, txnType, ref)
				}
			}
		}
	}
}

func TestParseTypeAndRef_LongestPrefixWins(t *testing.T) {
	// TRANSFER is a prefix of TRANSFER_PLUS; the longer type must win.
	knownTypes := map[string][]string{
		"TRANSFER":      nil,
		"TRANSFER_PLUS": {"A"},
	}
	gotType, gotRef := ledger.ParseTypeAndRef("TRANSFER_PLUS_A_CHARGED", knownTypes, "CHARGED")
	if gotType != "TRANSFER_PLUS" || gotRef != "A" {
		t.Errorf("got (%q, %q), want (TRANSFER_PLUS, A)", gotType, gotRef)
	}
}

func TestParseTypeAndRef_UnknownStemFallsBack(t *testing.T) {
	// Unknown stems are returned as-is rather than failing: callers must
	// tolerate addresses they did not construct.
	gotType, gotRef := ledger.ParseTypeAndRef("MYSTERY_THING_CHARGED", map[string][]string{"PURCHASE": nil}, "CHARGED")
	if gotType != "MYSTERY_THING" || gotRef != "" {
		t.Errorf("got (%q, %q), want (MYSTERY_THING, \"\")", gotType, gotRef)
	}
}

func TestTxnTypeAndRefFromPosting(t *testing.T) {
	codeToType := map[string]string{"6011": "cash_advance", "0000": "retired_type"}
	supported := map[string][]string{"purchase": nil, "cash_advance": nil}

	cases := []struct {
		name     string
		details  map[string]string
		wantType string
		wantRef  string
	}{
		{"mapped code", map[string]string{ledger.DetailTransactionCode: "6011"}, "cash_advance", ""},
		{"unmapped code defaults", map[string]string{ledger.DetailTransactionCode: "9999"}, "purchase", ""},
		{"unsupported type defaults", map[string]string{ledger.DetailTransactionCode: "0000"}, "purchase", ""},
		{"no code defaults", map[string]string{}, "purchase", ""},
		{"ref upper-cased", map[string]string{ledger.DetailTransactionRef: "ref1"}, "purchase", "REF1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotType, gotRef := ledger.TxnTypeAndRefFromPosting(tc.details, codeToType, supported, "purchase")
			if gotType != tc.wantType || gotRef != tc.wantRef {
				t.Errorf("got (%q, %q), want (%q, %q)", gotType, gotRef, tc.wantType, tc.wantRef)
			}
		})
	}
}

// =============================================================================
// OVERDUE BUCKETS
// =============================================================================

func TestOverdueAddress(t *testing.T) {
	if got := ledger.OverdueAddress(1); got != "OVERDUE_1" {
		t.Errorf("OverdueAddress(1) = %q", got)
	}
	age, ok := ledger.OverdueAge("OVERDUE_3")
	if !ok || age != 3 {
		t.Errorf("OverdueAge(OVERDUE_3) = (%d, %v)", age, ok)
	}
	if _, ok := ledger.OverdueAge("PURCHASE_CHARGED"); ok {
		t.Error("OverdueAge accepted a non-overdue address")
	}
	if _, ok := ledger.OverdueAge("OVERDUE_X"); ok {
		t.Error("OverdueAge accepted a malformed age")
	}
}
