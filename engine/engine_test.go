package engine

import (
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
)

// dec parses a decimal literal; test fixtures are always well formed.
func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

const (
	testAccount = "acct-1"
	testDenom   = "GBP"
)

// testConfig is the standard product fixture: a 1000 limit, three
// transaction types (one sub-ledgered, one charge-from-transaction-date),
// and every fee configured.
func testConfig() Config {
	return Config{
		AccountID:    testAccount,
		Denomination: testDenom,
		CreditLimit:  dec("1000"),

		TxnTypes: map[string][]string{
			"purchase":         nil,
			"cash_advance":     nil,
			"balance_transfer": {"REF1", "REF2"},
		},
		TxnCodeToType: map[string]string{
			"00": "purchase",
			"01": "cash_advance",
			"02": "balance_transfer",
		},
		DefaultTxnType: "purchase",
		ChargeInterestFromTxnDate: map[string]bool{
			"cash_advance": true,
		},

		BaseRates: map[string]decimal.Decimal{
			"purchase":         dec("0.24"),
			"cash_advance":     dec("0.36"),
			"balance_transfer": dec("0.22"),
		},
		RefRates: map[string]map[string]decimal.Decimal{
			"balance_transfer": {"REF2": dec("0.25")},
		},

		MADFixed:             dec("100"),
		MADPrincipalPct:      dec("0.01"),
		MADInterestPct:       dec("1"),
		MADFeePct:            dec("1"),
		PaymentDuePeriodDays: 21,

		AnnualFee:        dec("100"),
		LateRepaymentFee: dec("25"),
		OverlimitFee:     dec("80"),
		OverlimitOptIn:   true,

		InterestIncomeAccount:    "interest_income",
		DefaultFeeIncomeAccount:  "fee_income",
		PrincipalWriteOffAccount: "principal_write_off",
		InterestWriteOffAccount:  "interest_write_off",

		Hierarchy: DefaultHierarchy(),
	}
}

// newTestBuilder starts a builder over the given seed balances.
func newTestBuilder(seed ledger.Snapshot) *ledger.Builder {
	if seed == nil {
		seed = ledger.Snapshot{}
	}
	return ledger.NewBuilder(testAccount, testDenom, ledger.NewInFlight(testAccount, seed))
}

// spend simulates a host-committed spend plus its post-posting mirror:
// DEFAULT goes up by the amount and the CHARGED principal tracks it.
func spend(b *ledger.Builder, cfg Config, amount decimal.Decimal, txnType, ref string) {
	b.Charge(amount, "merchant_settlement", nil)
	b.Track(amount, ledger.PrincipalAddress(txnType, ledger.StatusCharged, ref), nil)
}

// repay simulates a host-committed repayment plus its distribution.
func repay(b *ledger.Builder, cfg Config, amount decimal.Decimal) RepaymentResult {
	b.Fund(amount, "customer_funds", nil)
	return DistributeRepayment(cfg, b, amount, "repayment")
}
