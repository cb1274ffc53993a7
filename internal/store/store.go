package store

import (
	"context"
	"errors"
	"time"

	"dukabook/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("invalid input")
)

// Repository is the persistence boundary. Settlement operations
// (CreateSale, ApplySalePayment, DeleteSale) are atomic: either every
// derived row changes or none do.
type Repository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	// CreateSale persists the sale row, its line items, the per-line
	// conditional stock decrements, and the customer aggregate update in
	// one settlement. Returns ErrInsufficientStock if any decrement would
	// take stock below zero; nothing is persisted in that case. contact
	// carries the customer's details for a first-sale upsert.
	CreateSale(ctx context.Context, sale domain.Sale, contact domain.Customer) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	// DeleteSale removes the sale, its line items and its payment
	// records. It does not restore stock or rewind customer aggregates.
	DeleteSale(ctx context.Context, id string) error

	// ApplySalePayment moves amount from the sale's debit balance to its
	// cash paid, recomputes status, records the payment, and grows the
	// customer's total_spent by the same amount, atomically.
	ApplySalePayment(ctx context.Context, saleID string, amount int64, method string, actor string) (*domain.Sale, error)
	ListSalePayments(ctx context.Context, saleID string) ([]domain.Payment, error)

	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error)
	UpdateCustomerContact(ctx context.Context, id string, name string, email string, phone string) (*domain.Customer, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	GetExpense(ctx context.Context, id string) (*domain.Expense, error)
	ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error)
	ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error)

	// ListDueRecurringExpenses returns recurring templates whose next
	// occurrence falls on or before now and is not past their end date.
	ListDueRecurringExpenses(ctx context.Context, now time.Time) ([]domain.Expense, error)
	// HasExpenseClone reports whether a materialized copy of the template
	// already exists for the given date.
	HasExpenseClone(ctx context.Context, sourceExpenseID string, date time.Time) (bool, error)

	GetSalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
