package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestEngineErrorMessage(t *testing.T) {
	err := New(CategoryValidation, CodeInvalidAmount, "bad amount").
		WithSuggestion("use a decimal number")

	if !strings.Contains(err.Error(), "bad amount") {
		t.Errorf("Error() = %q, want message included", err.Error())
	}
	if !strings.Contains(err.Error(), "use a decimal number") {
		t.Errorf("Error() = %q, want suggestion included", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(cause, CategoryFile, CodeFileNotFound, "could not read ledger")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause with errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the original cause")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(nil, CategoryFile, CodeFileNotFound, "msg"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryReconciliation, 5},
		{CategoryMarketData, 6},
		{CategorySimulation, 7},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "x")
		if got := err.GetExitCode(); got != tt.want {
			t.Errorf("GetExitCode(%s) = %d, want %d", tt.category, got, tt.want)
		}
	}

	if got := GetExitCode(stderrors.New("plain")); got != 1 {
		t.Errorf("GetExitCode(plain error) = %d, want 1", got)
	}
}

func TestConstructorsCarryContext(t *testing.T) {
	perr := ParseError(CodeInvalidData, "ledger_a.csv", 17, "amount", "abc", nil)
	if perr.Context["line"] != 17 {
		t.Errorf("parse error line context = %v, want 17", perr.Context["line"])
	}
	if perr.Category != CategoryParse {
		t.Errorf("category = %s, want %s", perr.Category, CategoryParse)
	}

	rerr := ReconciliationError(CodeDuplicateIdentifier, "ledger matching", nil)
	if !IsCategory(rerr, CategoryReconciliation) {
		t.Error("IsCategory should report reconciliation category")
	}

	merr := MarketDataError(CodeDuplicateRate, "EURUSD", nil)
	if merr.Context["currency_pair"] != "EURUSD" {
		t.Errorf("market data context = %v, want EURUSD", merr.Context["currency_pair"])
	}
}
