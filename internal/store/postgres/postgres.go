package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/settlement"
	"dukabook/backend/internal/store"
	"dukabook/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, name, sku, category, price, stock, min_stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Stock, &p.MinStock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.StockStatus(p.Stock, p.MinStock)
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(lower(name) LIKE $%d OR lower(sku) LIKE $%d)", len(args), len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY category, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		// Status is derived from stock, so status filtering happens after
		// the scan rather than in SQL.
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		products = append(products, *p)
		if filter.Limit > 0 && len(products) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SKU == "" || product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.Status = domain.StockStatus(product.Stock, product.MinStock)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, category, price, stock, min_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, product.ID, product.Name, product.SKU, product.Category, product.Price, product.Stock, product.MinStock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SKU == "" || product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, sku = $2, category = $3, price = $4, stock = $5, min_stock = $6, updated_at = now()
		WHERE id = $7
	`, product.Name, product.SKU, product.Category, product.Price, product.Stock, product.MinStock, product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProduct(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateSale settles a composed sale in one serializable transaction: the
// sale row, its line items, the conditional stock decrements, and the
// customer aggregate update commit together or not at all. A decrement
// that would take stock below zero aborts the whole settlement with
// ErrInsufficientStock.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, contact domain.Customer) (*domain.Sale, error) {
	if sale.OrderID == "" || strings.TrimSpace(sale.CustomerName) == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.CashPaid+sale.DebitBalance != sale.TotalAmount {
		return nil, store.ErrValidation
	}
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = nowDateUTC(now)
	}
	sale.Status = settlement.StatusFor(sale.CashPaid, sale.DebitBalance, sale.TotalAmount)
	sale.ItemsCount = len(sale.Items)

	// Per-line conditional decrement: the stock >= qty guard in the WHERE
	// clause is what prevents concurrent settlements from overselling.
	for i := range sale.Items {
		item := &sale.Items[i]

		var productName string
		err := tx.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
			RETURNING name
		`, item.Quantity, item.ProductID).Scan(&productName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				var exists bool
				if checkErr := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&exists); checkErr == nil && !exists {
					return nil, store.ErrNotFound
				}
				return nil, store.ErrInsufficientStock
			}
			return nil, err
		}

		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.SaleID = sale.ID
		item.ProductName = productName
		item.TotalPrice = item.UnitPrice * int64(item.Quantity)
	}

	customerID, err := upsertCustomerTx(ctx, tx, sale.CustomerName, contact.Email, contact.Phone, now)
	if err != nil {
		return nil, err
	}
	sale.CustomerID = customerID

	_, err = tx.ExecContext(ctx, `
		UPDATE customers
		SET total_orders = total_orders + 1,
		    total_spent = total_spent + $1,
		    email = COALESCE(NULLIF(email, ''), $2),
		    phone = COALESCE(NULLIF(phone, ''), $3)
		WHERE id = $4
	`, sale.CashPaid, contact.Email, contact.Phone, customerID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, order_id, customer_id, customer_name, total_amount, items_count, status, payment_method, cash_paid, debit_balance, sale_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.OrderID, sale.CustomerID, sale.CustomerName, sale.TotalAmount, sale.ItemsCount, sale.Status, sale.PaymentMethod, sale.CashPaid, sale.DebitBalance, sale.SaleDate, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for _, item := range sale.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, item.ID, item.SaleID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

// upsertCustomerTx finds or creates the customer keyed by lowercased name
// and locks the row for the aggregate update that follows.
func upsertCustomerTx(ctx context.Context, tx *sql.Tx, name string, email string, phone string, now time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM customers WHERE lower(name) = lower($1) FOR UPDATE
	`, strings.TrimSpace(name)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	id = xid.New("cust")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, total_orders, total_spent, created_at)
		VALUES ($1,$2,$3,$4,0,0,$5)
	`, id, strings.TrimSpace(name), email, phone, now)
	if err != nil {
		return "", err
	}
	return id, nil
}

const saleColumns = `id, order_id, customer_id, customer_name, total_amount, items_count, status, payment_method, cash_paid, debit_balance, sale_date, created_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID sql.NullString
	err := row.Scan(&sale.ID, &sale.OrderID, &customerID, &sale.CustomerName, &sale.TotalAmount, &sale.ItemsCount,
		&sale.Status, &sale.PaymentMethod, &sale.CashPaid, &sale.DebitBalance, &sale.SaleDate, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadSaleItems(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = items[sale.ID]
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("sale_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("sale_date <= $%d", len(args)))
	}

	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return sales, nil
	}
	itemsBySale, err := s.loadSaleItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleItems(ctx context.Context, saleIDs []string) (map[string][]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, total_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]domain.SaleItem, len(saleIDs))
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		items[item.SaleID] = append(items[item.SaleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE sale_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) ApplySalePayment(ctx context.Context, saleID string, amount int64, method string, actor string) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cashPaid, debitBalance int64
	var customerID sql.NullString
	var customerName string
	err = tx.QueryRowContext(ctx, `
		SELECT cash_paid, debit_balance, customer_id, customer_name
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, saleID).Scan(&cashPaid, &debitBalance, &customerID, &customerName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	applied, err := settlement.ApplyPayment(cashPaid, debitBalance, amount)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET cash_paid = $1, debit_balance = $2, status = $3
		WHERE id = $4
	`, applied.CashPaid, applied.DebitBalance, applied.Status, saleID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, sale_id, amount, method, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, xid.New("pay"), saleID, amount, method, actor, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	// The sale's surrogate customer id survives renames; name matching is
	// only the fallback for legacy rows that predate it.
	if customerID.Valid && customerID.String != "" {
		_, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spent = total_spent + $1
			WHERE id = $2
		`, amount, customerID.String)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spent = total_spent + $1
			WHERE lower(name) = lower($2)
		`, amount, customerName)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, saleID)
}

func (s *Store) ListSalePayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sales WHERE id = $1)`, saleID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, amount, method, actor, created_at
		FROM payments
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 8)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Amount, &p.Method, &p.Actor, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

const customerColumns = `id, name, email, phone, total_orders, total_spent, created_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	var email, phone sql.NullString
	err := row.Scan(&c.ID, &c.Name, &email, &phone, &c.TotalOrders, &c.TotalSpent, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *Store) FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE lower(name) = lower($1)`, strings.TrimSpace(name))
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY name`
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $1"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 64)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func (s *Store) UpdateCustomerContact(ctx context.Context, id string, name string, email string, phone string) (*domain.Customer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrValidation
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET name = $1, email = $2, phone = $3
		WHERE id = $4
	`, strings.TrimSpace(name), email, phone, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetCustomer(ctx, id)
}

const expenseColumns = `e.id, e.expense_date, e.category_id, c.name, e.amount, e.payment_method, e.description, e.supplier_name, e.employee_name, e.is_recurring, e.recurring_frequency, e.recurring_end_date, e.source_expense_id, e.created_at`

func scanExpense(row interface{ Scan(...any) error }) (*domain.Expense, error) {
	var e domain.Expense
	var categoryID, categoryName, description, supplier, employee, frequency, sourceID sql.NullString
	var endDate sql.NullTime
	err := row.Scan(&e.ID, &e.ExpenseDate, &categoryID, &categoryName, &e.Amount, &e.PaymentMethod,
		&description, &supplier, &employee, &e.IsRecurring, &frequency, &endDate, &sourceID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.CategoryID = categoryID.String
	e.CategoryName = categoryName.String
	e.Description = description.String
	e.SupplierName = supplier.String
	e.EmployeeName = employee.String
	e.RecurringFrequency = frequency.String
	e.SourceExpenseID = sourceID.String
	if endDate.Valid {
		d := endDate.Time.UTC()
		e.RecurringEndDate = &d
	}
	return &e, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.CategoryID != "" {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM expense_categories WHERE id = $1)`, expense.CategoryID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
	}

	now := time.Now().UTC()
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = nowDateUTC(now)
	}
	expense.CreatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, expense_date, category_id, amount, payment_method, description, supplier_name, employee_name, is_recurring, recurring_frequency, recurring_end_date, source_expense_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, expense.ID, expense.ExpenseDate, nullIfEmpty(expense.CategoryID), expense.Amount, expense.PaymentMethod,
		nullIfEmpty(expense.Description), nullIfEmpty(expense.SupplierName), nullIfEmpty(expense.EmployeeName),
		expense.IsRecurring, nullIfEmpty(expense.RecurringFrequency), nullTime(expense.RecurringEndDate),
		nullIfEmpty(expense.SourceExpenseID), expense.CreatedAt)
	if err != nil {
		return nil, err
	}

	return s.GetExpense(ctx, expense.ID)
}

func (s *Store) GetExpense(ctx context.Context, id string) (*domain.Expense, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN expense_categories c ON c.id = e.category_id
		WHERE e.id = $1
	`, id)
	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	conditions := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("e.category_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("e.expense_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("e.expense_date <= $%d", len(args)))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses e LEFT JOIN expense_categories c ON c.id = e.category_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.expense_date DESC, e.id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 64)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) UpdateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.CategoryID != "" {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM expense_categories WHERE id = $1)`, expense.CategoryID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE expenses
		SET expense_date = $1, category_id = $2, amount = $3, payment_method = $4, description = $5,
		    supplier_name = $6, employee_name = $7, is_recurring = $8, recurring_frequency = $9, recurring_end_date = $10
		WHERE id = $11
	`, expense.ExpenseDate, nullIfEmpty(expense.CategoryID), expense.Amount, expense.PaymentMethod,
		nullIfEmpty(expense.Description), nullIfEmpty(expense.SupplierName), nullIfEmpty(expense.EmployeeName),
		expense.IsRecurring, nullIfEmpty(expense.RecurringFrequency), nullTime(expense.RecurringEndDate), expense.ID)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetExpense(ctx, expense.ID)
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expense_categories (id, name, description)
		VALUES ($1,$2,$3)
	`, category.ID, category.Name, nullIfEmpty(category.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description
		FROM expense_categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.ExpenseCategory, 0, 16)
	for rows.Next() {
		var c domain.ExpenseCategory
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description); err != nil {
			return nil, err
		}
		c.Description = description.String
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) ListDueRecurringExpenses(ctx context.Context, now time.Time) ([]domain.Expense, error) {
	today := nowDateUTC(now)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses e
		LEFT JOIN expense_categories c ON c.id = e.category_id
		WHERE e.is_recurring = true
		  AND e.source_expense_id IS NULL
		  AND e.expense_date <= $1
		  AND (e.recurring_end_date IS NULL OR e.recurring_end_date >= $1)
		ORDER BY e.id
	`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due := make([]domain.Expense, 0, 16)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return due, nil
}

func (s *Store) HasExpenseClone(ctx context.Context, sourceExpenseID string, date time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM expenses
			WHERE source_expense_id = $1 AND expense_date::date = $2::date
		)
	`, sourceExpenseID, nowDateUTC(date)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) GetSalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{From: from, To: to}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0), COALESCE(SUM(cash_paid), 0), COALESCE(SUM(debit_balance), 0)
		FROM sales
		WHERE sale_date >= $1 AND sale_date <= $2
	`, from, to).Scan(&summary.SaleCount, &summary.TotalAmount, &summary.CashCollected, &summary.OutstandingDebit)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date >= $1 AND expense_date <= $2
	`, from, to).Scan(&summary.ExpenseTotal)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.product_id, i.product_name, SUM(i.quantity), SUM(i.total_price)
		FROM sale_items i
		JOIN sales s ON s.id = i.sale_id
		WHERE s.sale_date >= $1 AND s.sale_date <= $2
		GROUP BY i.product_id, i.product_name
		ORDER BY SUM(i.total_price) DESC, i.product_id
		LIMIT 5
	`, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var stat domain.ProductSalesStat
		if err := rows.Scan(&stat.ProductID, &stat.ProductName, &stat.Quantity, &stat.Amount); err != nil {
			return domain.SalesSummary{}, err
		}
		summary.TopProducts = append(summary.TopProducts, stat)
	}
	if err := rows.Err(); err != nil {
		return domain.SalesSummary{}, err
	}

	return summary, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor, action, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.Actor, entry.Action, nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if !from.IsZero() {
		args = append(args, from)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT id, actor, action, entity_id, detail, created_at FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 64)
	for rows.Next() {
		var entry domain.AuditLog
		var entityID, detail sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entityID, &detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.EntityID = entityID.String
		entry.Detail = detail.String
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.PasswordHash == "" {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.PasswordHash, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $1 WHERE username = $2
	`, password, username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
