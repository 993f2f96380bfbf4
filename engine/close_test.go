package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebank/card-engine/ledger"
)

func closeInput(st AccountState, b *ledger.Builder) StatementInput {
	return StatementInput{State: st, SCODStart: testSCOD, Cutoff: b.Balances().View().Clone()}
}

func TestCloseRejectedWithoutFlag(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(nil)

	_, rej := CloseAccount(cfg, AccountState{}, closeInput(AccountState{}, b), b)

	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "flag")
}

func TestCloseRejectedWithOutstandingDebt(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(nil)
	spend(b, cfg, dec("100"), "purchase", "")

	st := AccountState{ClosureRequested: true}
	_, rej := CloseAccount(cfg, st, closeInput(st, b), b)

	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "outstanding")
}

func TestCloseRejectedWithOpenAuthorization(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusAuth, ""), testDenom): dec("30"),
	}
	b := newTestBuilder(seed)

	st := AccountState{ClosureRequested: true}
	_, rej := CloseAccount(cfg, st, closeInput(st, b), b)

	require.NotNil(t, rej)
	assert.Contains(t, rej.Message, "authorization")
}

func TestCloseCleanAccount(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.AvailableBalance, testDenom): dec("1000"),
	}
	b := newTestBuilder(seed)

	st := AccountState{ClosureRequested: true}
	res, rej := CloseAccount(cfg, st, closeInput(st, b), b)

	require.Nil(t, rej)
	assert.True(t, res.WrittenOff.IsZero())
	assert.True(t, b.Balances().Net(ledger.AvailableBalance, testDenom).IsZero(),
		"available balance must be zeroed on closure")
}

func TestCloseWriteOffFundsAllDebt(t *testing.T) {
	cfg := testConfig()

	// GIVEN unpaid principal, charged interest, and an unpaid fee
	seed := ledger.Snapshot{
		ledger.Coord(ledger.DefaultAddress, testDenom):                                                          dec("537.50"),
		ledger.Coord(ledger.PrincipalAddress("purchase", ledger.StatusUnpaid, ""), testDenom):                   dec("400"),
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone), testDenom): dec("12.50"),
		ledger.Coord(ledger.FeeAddress(FeeLateRepayment, ledger.StatusUnpaid), testDenom):                       dec("125"),
	}
	b := newTestBuilder(seed)

	st := AccountState{WriteOffRequested: true}
	res, rej := CloseAccount(cfg, st, closeInput(st, b), b)

	// THEN the full debt was funded and distributed
	require.Nil(t, rej)
	require.True(t, res.WrittenOff.Equal(dec("537.50")), "written off = %s", res.WrittenOff)

	for _, address := range []string{
		ledger.PrincipalAddress("purchase", ledger.StatusUnpaid, ""),
		ledger.InterestAddress("purchase", ledger.StatusCharged, "", ledger.PhaseNone),
		ledger.FeeAddress(FeeLateRepayment, ledger.StatusUnpaid),
		ledger.AvailableBalance,
	} {
		assert.True(t, b.Balances().Net(address, testDenom).IsZero(), "%s not cleared", address)
	}
	assert.True(t, b.Balances().Net(ledger.DefaultAddress, testDenom).IsZero(),
		"write-off funding must clear the real debt")
}

func TestCloseReversesUnchargedInterestEverywhere(t *testing.T) {
	cfg := testConfig()
	seed := ledger.Snapshot{
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseNone), testDenom):         dec("1.10"),
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhasePreSCOD), testDenom):      dec("2.20"),
		ledger.Coord(ledger.InterestAddress("purchase", ledger.StatusUncharged, "", ledger.PhaseInterestFree), testDenom): dec("3.30"),
	}
	b := newTestBuilder(seed)

	st := AccountState{WriteOffRequested: true}
	_, rej := CloseAccount(cfg, st, closeInput(st, b), b)
	require.Nil(t, rej)

	for _, phase := range []ledger.AccrualPhase{ledger.PhaseNone, ledger.PhasePreSCOD, ledger.PhaseInterestFree} {
		addr := ledger.InterestAddress("purchase", ledger.StatusUncharged, "", phase)
		assert.True(t, b.Balances().Net(addr, testDenom).IsZero(), "%s not reversed", addr)
	}
}

func TestCloseIsReInvokable(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(nil)
	st := AccountState{ClosureRequested: true}

	_, rej := CloseAccount(cfg, st, closeInput(st, b), b)
	require.Nil(t, rej)
	first := b.Len()

	// A second run over the already-clean account emits nothing further.
	_, rej = CloseAccount(cfg, st, closeInput(st, b), b)
	require.Nil(t, rej)
	assert.Equal(t, first, b.Len())
}
