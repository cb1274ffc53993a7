package settlement

import (
	"errors"
	"testing"

	"dukabook/backend/internal/domain"
)

func cartTotal100k() []Line {
	return []Line{
		{ProductID: "p-1", Quantity: 2, UnitPrice: 25000, Stock: 10},
		{ProductID: "p-2", Quantity: 1, UnitPrice: 50000, Stock: 5},
	}
}

func TestComposeCash(t *testing.T) {
	draft, err := Compose(cartTotal100k(), domain.PaymentMethodCash, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.TotalAmount != 100000 {
		t.Fatalf("expected total 100000, got %d", draft.TotalAmount)
	}
	if draft.CashPaid != 100000 || draft.DebitBalance != 0 {
		t.Fatalf("unexpected split: cash=%d debit=%d", draft.CashPaid, draft.DebitBalance)
	}
	if draft.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected Completed, got %q", draft.Status)
	}
	if draft.ItemsCount != 2 {
		t.Fatalf("expected items_count 2 (distinct lines), got %d", draft.ItemsCount)
	}
}

func TestComposeCredit(t *testing.T) {
	draft, err := Compose(cartTotal100k(), domain.PaymentMethodCredit, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.CashPaid != 0 || draft.DebitBalance != 100000 {
		t.Fatalf("unexpected split: cash=%d debit=%d", draft.CashPaid, draft.DebitBalance)
	}
	if draft.Status != domain.SaleStatusPending {
		t.Fatalf("expected Pending, got %q", draft.Status)
	}
}

func TestComposePartial(t *testing.T) {
	draft, err := Compose(cartTotal100k(), domain.PaymentMethodPartial, 40000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.CashPaid != 40000 || draft.DebitBalance != 60000 {
		t.Fatalf("unexpected split: cash=%d debit=%d", draft.CashPaid, draft.DebitBalance)
	}
	if draft.Status != domain.SaleStatusPartial {
		t.Fatalf("expected Partial Payment, got %q", draft.Status)
	}
	if draft.CashPaid+draft.DebitBalance != draft.TotalAmount {
		t.Fatalf("balance invariant broken: %d + %d != %d", draft.CashPaid, draft.DebitBalance, draft.TotalAmount)
	}
}

func TestComposePartialBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		input int64
	}{
		{"zero", 0},
		{"negative", -5000},
		{"equal to total", 100000},
		{"above total", 150000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compose(cartTotal100k(), domain.PaymentMethodPartial, tc.input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error for input %d, got %v", tc.input, err)
			}
		})
	}
}

func TestComposeRejectsBadCarts(t *testing.T) {
	cases := []struct {
		name  string
		lines []Line
	}{
		{"empty cart", nil},
		{"zero quantity", []Line{{ProductID: "p-1", Quantity: 0, UnitPrice: 1000, Stock: 5}}},
		{"negative quantity", []Line{{ProductID: "p-1", Quantity: -2, UnitPrice: 1000, Stock: 5}}},
		{"negative price", []Line{{ProductID: "p-1", Quantity: 1, UnitPrice: -1, Stock: 5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compose(tc.lines, domain.PaymentMethodCash, 0)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestComposeRejectsQuantityOverStock(t *testing.T) {
	_, err := Compose([]Line{{ProductID: "p-1", Quantity: 6, UnitPrice: 1000, Stock: 5}}, domain.PaymentMethodCash, 0)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
}

func TestComposeSumsDuplicateLinesAgainstStock(t *testing.T) {
	// Two lines of the same product: each fits stock on its own but the
	// cart as a whole does not.
	over := []Line{
		{ProductID: "p-1", Quantity: 3, UnitPrice: 1000, Stock: 5},
		{ProductID: "p-1", Quantity: 3, UnitPrice: 1000, Stock: 5},
	}
	if _, err := Compose(over, domain.PaymentMethodCash, 0); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}

	within := []Line{
		{ProductID: "p-1", Quantity: 3, UnitPrice: 1000, Stock: 5},
		{ProductID: "p-1", Quantity: 2, UnitPrice: 1000, Stock: 5},
	}
	draft, err := Compose(within, domain.PaymentMethodCash, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.TotalAmount != 5000 {
		t.Fatalf("expected total 5000, got %d", draft.TotalAmount)
	}
}

func TestComposeUnknownMethod(t *testing.T) {
	_, err := Compose(cartTotal100k(), "mobile-money", 0)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestComposeDeterministic(t *testing.T) {
	a, err := Compose(cartTotal100k(), domain.PaymentMethodPartial, 40000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Compose(cartTotal100k(), domain.PaymentMethodPartial, 40000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("identical inputs produced different drafts: %+v vs %+v", a, b)
	}
}

func TestApplyPaymentSettlesBalance(t *testing.T) {
	applied, err := ApplyPayment(40000, 60000, 60000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied.DebitBalance != 0 {
		t.Fatalf("expected zero balance, got %d", applied.DebitBalance)
	}
	if applied.CashPaid != 100000 {
		t.Fatalf("expected cash 100000, got %d", applied.CashPaid)
	}
	if applied.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected Completed, got %q", applied.Status)
	}
}

func TestApplyPaymentPartialRemainder(t *testing.T) {
	applied, err := ApplyPayment(0, 50000, 20000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if applied.CashPaid != 20000 || applied.DebitBalance != 30000 {
		t.Fatalf("unexpected split: cash=%d debit=%d", applied.CashPaid, applied.DebitBalance)
	}
	if applied.Status != domain.SaleStatusPartial {
		t.Fatalf("expected Partial Payment, got %q", applied.Status)
	}
}

func TestApplyPaymentRejectsOverpayment(t *testing.T) {
	_, err := ApplyPayment(40000, 60000, 70000)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyPaymentRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []int64{0, -100} {
		if _, err := ApplyPayment(0, 50000, amount); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for amount %d, got %v", amount, err)
		}
	}
}

func TestApplyPaymentNeverExceedsTotal(t *testing.T) {
	// Sequential payments against one sale: the balance walks down to
	// zero and cumulative payments never exceed the original total.
	cash, debit := int64(0), int64(100000)
	var paid int64
	for _, p := range []int64{30000, 30000, 40000} {
		applied, err := ApplyPayment(cash, debit, p)
		if err != nil {
			t.Fatalf("unexpected error at payment %d: %v", p, err)
		}
		cash, debit = applied.CashPaid, applied.DebitBalance
		paid += p
		if cash+debit != 100000 {
			t.Fatalf("balance invariant broken: %d + %d", cash, debit)
		}
	}
	if paid != 100000 || debit != 0 {
		t.Fatalf("expected fully settled, got paid=%d debit=%d", paid, debit)
	}
	if _, err := ApplyPayment(cash, debit, 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on settled sale, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		cash, debit, total int64
		want               string
	}{
		{100000, 0, 100000, domain.SaleStatusCompleted},
		{0, 0, 0, domain.SaleStatusCompleted},
		{0, 100000, 100000, domain.SaleStatusPending},
		{40000, 60000, 100000, domain.SaleStatusPartial},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.cash, tc.debit, tc.total); got != tc.want {
			t.Fatalf("StatusFor(%d,%d,%d) = %q, want %q", tc.cash, tc.debit, tc.total, got, tc.want)
		}
	}
}
