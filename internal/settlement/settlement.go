package settlement

import (
	"errors"
	"fmt"

	"dukabook/backend/internal/domain"
)

// ErrValidation marks input that fails settlement policy before any state
// is touched. Callers match it with errors.Is.
var ErrValidation = errors.New("invalid settlement input")

// ErrInsufficientStock marks a cart line asking for more than the catalog
// snapshot has on hand. The store re-checks under its own lock at commit
// time; this is the early, friendly rejection.
var ErrInsufficientStock = errors.New("insufficient stock")

// Line is one cart entry with the catalog snapshot taken at composition
// time: the unit price that will be pinned on the sale item and the stock
// on hand used for the availability check.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice int64
	Stock     int
}

// Draft is a composed but not yet persisted sale: the money split and the
// initial status implied by the payment method. cash_paid + debit_balance
// always equals total_amount.
type Draft struct {
	TotalAmount   int64
	ItemsCount    int
	CashPaid      int64
	DebitBalance  int64
	Status        string
	PaymentMethod string
}

// Applied is the result of applying one payment to an existing balance.
type Applied struct {
	CashPaid     int64
	DebitBalance int64
	Status       string
}

// Compose turns a cart and a payment method into a sale draft. It is a
// pure function: no I/O, no clock, no randomness. Identical inputs yield
// identical drafts.
//
// cashPaidInput is only consulted for the partial method and must then be
// strictly between zero and the cart total; a zero or full payment must
// use credit or cash instead. That boundary is deliberate: it keeps the
// three statuses in one-to-one correspondence with the three methods at
// creation time.
func Compose(lines []Line, method string, cashPaidInput int64) (Draft, error) {
	if len(lines) == 0 {
		return Draft{}, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	// Availability is checked against the summed quantity per product, not
	// per line: a cart may carry the same product on several lines.
	var total int64
	requested := make(map[string]int, len(lines))
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Draft{}, fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		if line.UnitPrice < 0 {
			return Draft{}, fmt.Errorf("%w: line %d has negative unit price", ErrValidation, i+1)
		}
		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > line.Stock {
			return Draft{}, fmt.Errorf("%w: product %s quantity %d exceeds stock %d", ErrInsufficientStock, line.ProductID, requested[line.ProductID], line.Stock)
		}
		total += line.UnitPrice * int64(line.Quantity)
	}

	draft := Draft{
		TotalAmount:   total,
		ItemsCount:    len(lines),
		PaymentMethod: method,
	}

	switch method {
	case domain.PaymentMethodCash:
		draft.CashPaid = total
		draft.DebitBalance = 0
		draft.Status = domain.SaleStatusCompleted
	case domain.PaymentMethodCredit:
		draft.CashPaid = 0
		draft.DebitBalance = total
		draft.Status = domain.SaleStatusPending
	case domain.PaymentMethodPartial:
		if cashPaidInput <= 0 {
			return Draft{}, fmt.Errorf("%w: partial payment must be greater than zero", ErrValidation)
		}
		if cashPaidInput >= total {
			return Draft{}, fmt.Errorf("%w: partial payment must be less than the total; use cash for full payment", ErrValidation)
		}
		draft.CashPaid = cashPaidInput
		draft.DebitBalance = total - cashPaidInput
		draft.Status = domain.SaleStatusPartial
	default:
		return Draft{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	return draft, nil
}

// ApplyPayment applies one payment against a sale's stored balance.
// amount must be positive and must not exceed the outstanding balance;
// overpayment is rejected, never clamped.
func ApplyPayment(cashPaid int64, debitBalance int64, amount int64) (Applied, error) {
	if amount <= 0 {
		return Applied{}, fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	}
	if amount > debitBalance {
		return Applied{}, fmt.Errorf("%w: payment %d exceeds outstanding balance %d", ErrValidation, amount, debitBalance)
	}

	newCash := cashPaid + amount
	newDebit := debitBalance - amount
	if newDebit < 0 {
		newDebit = 0
	}

	applied := Applied{CashPaid: newCash, DebitBalance: newDebit}
	switch {
	case newDebit == 0:
		applied.Status = domain.SaleStatusCompleted
	default:
		applied.Status = domain.SaleStatusPartial
	}
	return applied, nil
}

// StatusFor derives a sale's status from its money split. Status is never
// stored truth on its own; anything that mutates the split recomputes it
// through here.
func StatusFor(cashPaid int64, debitBalance int64, totalAmount int64) string {
	switch {
	case debitBalance == 0:
		return domain.SaleStatusCompleted
	case cashPaid == 0 && debitBalance == totalAmount:
		return domain.SaleStatusPending
	default:
		return domain.SaleStatusPartial
	}
}
