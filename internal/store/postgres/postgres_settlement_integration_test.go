package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/store"
)

func TestSaleSettlementDecrementsStockAtomically(t *testing.T) {
	databaseURL := os.Getenv("DUKABOOK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set DUKABOOK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	sku := fmt.Sprintf("SKU-SETTLE-IT-%d", stamp)
	customerName := fmt.Sprintf("Settle IT %d", stamp)
	renamedName := fmt.Sprintf("Settle IT Renamed %d", stamp)

	product, err := s.CreateProduct(ctx, domain.Product{
		Name:     "Settlement IT Product",
		SKU:      sku,
		Category: "grocery",
		Price:    7000,
		Stock:    5,
		MinStock: 1,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM payments WHERE sale_id IN (SELECT id FROM sales WHERE customer_name = $1)`, customerName)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE customer_name = $1`, customerName)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE name IN ($1, $2)`, customerName, renamedName)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, product.ID)
	})

	sale := domain.Sale{
		OrderID:       fmt.Sprintf("ORD-IT-%d", stamp),
		CustomerName:  customerName,
		TotalAmount:   14000,
		PaymentMethod: domain.PaymentMethodCredit,
		CashPaid:      0,
		DebitBalance:  14000,
		Items: []domain.SaleItem{
			{ProductID: product.ID, Quantity: 2, UnitPrice: 7000},
		},
	}
	contact := domain.Customer{Email: "settle-it@example.com", Phone: "+256700000099"}

	created, err := s.CreateSale(ctx, sale, contact)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.Status != domain.SaleStatusPending {
		t.Fatalf("expected Pending credit sale, got %q", created.Status)
	}

	after, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 3 {
		t.Fatalf("expected stock 3 after settlement, got %d", after.Stock)
	}

	// An oversell must abort without decrementing anything.
	oversell := sale
	oversell.OrderID = fmt.Sprintf("ORD-IT-OVER-%d", stamp)
	oversell.Items = []domain.SaleItem{{ProductID: product.ID, Quantity: 99, UnitPrice: 7000}}
	oversell.TotalAmount = 99 * 7000
	oversell.DebitBalance = oversell.TotalAmount
	if _, err := s.CreateSale(ctx, oversell, contact); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	after, err = s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 3 {
		t.Fatalf("expected stock untouched after rejected oversell, got %d", after.Stock)
	}

	// Rename the customer before settling so the aggregate update has to
	// follow the sale's customer id, not the stored name.
	if _, err := s.UpdateCustomerContact(ctx, created.CustomerID, renamedName, "settle-it@example.com", "+256700000099"); err != nil {
		t.Fatalf("rename customer: %v", err)
	}

	// Settle the debit and check the sale and customer aggregates.
	settled, err := s.ApplySalePayment(ctx, created.ID, 14000, "cash", "it-test")
	if err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	if settled.Status != domain.SaleStatusCompleted || settled.DebitBalance != 0 {
		t.Fatalf("expected settled sale, got status=%q debit=%d", settled.Status, settled.DebitBalance)
	}

	customer, err := s.FindCustomerByName(ctx, renamedName)
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if customer.TotalOrders != 1 || customer.TotalSpent != 14000 {
		t.Fatalf("expected 1 order / 14000 spent, got %d / %d", customer.TotalOrders, customer.TotalSpent)
	}

	if _, err := s.ApplySalePayment(ctx, created.ID, 1, "cash", "it-test"); err == nil {
		t.Fatalf("expected payment against settled sale to be rejected")
	}
}
