package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

var testCreation = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func proposed(amount string, details map[string]string) ProposedPosting {
	return ProposedPosting{
		Amount:       dec(amount),
		Denomination: testDenom,
		Details:      details,
		At:           testCreation.AddDate(0, 0, 5),
	}
}

func TestValidateRejectsWrongDenomination(t *testing.T) {
	cfg := testConfig()
	p := proposed("10", nil)
	p.Denomination = "USD"

	rej := ValidatePosting(cfg, ledger.Snapshot{}, p, testCreation)

	require.NotNil(t, rej)
	assert.Equal(t, vault.RejectWrongDenomination, rej.Code)
}

func TestValidateCreditsSkipSpendChecks(t *testing.T) {
	cfg := testConfig()
	p := proposed("99999", nil)
	p.Credit = true

	assert.Nil(t, ValidatePosting(cfg, ledger.Snapshot{}, p, testCreation))
}

func TestValidateInsufficientFunds(t *testing.T) {
	cfg := testConfig()
	cfg.OverlimitOptIn = false
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom): dec("900"),
	}

	rej := ValidatePosting(cfg, seed, proposed("150", nil), testCreation)

	require.NotNil(t, rej)
	assert.Equal(t, vault.RejectInsufficientFunds, rej.Code)

	assert.Nil(t, ValidatePosting(cfg, seed, proposed("100", nil), testCreation))
}

func TestValidateOverlimitOptInIsOneShot(t *testing.T) {
	cfg := testConfig()

	// Under the limit: the opt-in admits a breaching spend once.
	under := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                         dec("900"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusCharged, ""), testDenom): dec("900"),
	}
	assert.Nil(t, ValidatePosting(cfg, under, proposed("300", nil), testCreation))

	// Already over the limit: no further buffer.
	over := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                         dec("1200"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusCharged, ""), testDenom): dec("1200"),
	}
	rej := ValidatePosting(cfg, over, proposed("10", nil), testCreation)
	require.NotNil(t, rej)
	assert.Equal(t, vault.RejectInsufficientFunds, rej.Code)
}

func TestValidateRefRequiredForSubLedgerType(t *testing.T) {
	cfg := testConfig()
	details := map[string]string{ledger.DetailTransactionCode: "02"}

	// No ref at all.
	rej := ValidatePosting(cfg, ledger.Snapshot{}, proposed("10", details), testCreation)
	require.NotNil(t, rej)
	assert.Equal(t, vault.RejectAgainstTerms, rej.Code)

	// Undeclared ref.
	details[ledger.DetailTransactionRef] = "REF9"
	rej = ValidatePosting(cfg, ledger.Snapshot{}, proposed("10", details), testCreation)
	require.NotNil(t, rej)

	// Declared and unused: admitted.
	details[ledger.DetailTransactionRef] = "ref1"
	assert.Nil(t, ValidatePosting(cfg, ledger.Snapshot{}, proposed("10", details), testCreation))
}

func TestValidateRefAlreadyInUse(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("balance_transfer", ledger.StatusCharged, "REF1"), testDenom): dec("50"),
	}
	details := map[string]string{
		ledger.DetailTransactionCode: "02",
		ledger.DetailTransactionRef:  "REF1",
	}

	rej := ValidatePosting(cfg, seed, proposed("10", details), testCreation)

	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "already in use")
}

func TestValidateTxnTypeLimit(t *testing.T) {
	cfg := testConfig()
	flat := dec("200")
	pct := dec("0.3")
	cfg.TxnTypeLimits = map[string]TxnLimit{
		"cash_advance": {Flat: &flat, PctOfLimit: &pct},
	}
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("cash_advance", ledger.StatusCharged, ""), testDenom): dec("150"),
	}
	details := map[string]string{ledger.DetailTransactionCode: "01"}

	// The flat 200 is lower than 0.3 * 1000, so it governs: 150 + 60 > 200.
	rej := ValidatePosting(cfg, seed, proposed("60", details), testCreation)
	require.NotNil(t, rej)
	assert.Equal(t, vault.RejectAgainstTerms, rej.Code)

	assert.Nil(t, ValidatePosting(cfg, seed, proposed("50", details), testCreation))
}

func TestValidateTimeWindow(t *testing.T) {
	cfg := testConfig()
	days := 30
	cfg.TxnTypeLimits = map[string]TxnLimit{
		"balance_transfer": {AllowedDays: &days},
	}
	details := map[string]string{
		ledger.DetailTransactionCode: "02",
		ledger.DetailTransactionRef:  "REF1",
	}

	inWindow := proposed("10", details)
	inWindow.At = testCreation.AddDate(0, 0, 30)
	assert.Nil(t, ValidatePosting(cfg, ledger.Snapshot{}, inWindow, testCreation))

	late := proposed("10", details)
	late.At = testCreation.AddDate(0, 0, 30).Add(time.Hour)
	rej := ValidatePosting(cfg, ledger.Snapshot{}, late, testCreation)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "30 days")
}
