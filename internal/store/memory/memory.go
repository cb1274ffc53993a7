package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/settlement"
	"dukabook/backend/internal/store"
	"dukabook/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productsBySKU   map[string]string
	salesByID       map[string]*domain.Sale
	paymentsBySale  map[string][]domain.Payment
	customersByID   map[string]domain.Customer
	customersByName map[string]string
	expensesByID    map[string]domain.Expense
	categoriesByID  map[string]domain.ExpenseCategory
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		productsBySKU:   make(map[string]string),
		salesByID:       make(map[string]*domain.Sale),
		paymentsBySale:  make(map[string][]domain.Payment),
		customersByID:   make(map[string]domain.Customer),
		customersByName: make(map[string]string),
		expensesByID:    make(map[string]domain.Expense),
		categoriesByID:  make(map[string]domain.ExpenseCategory),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seed := []domain.Product{
		{Name: "Posho Maize Flour 2kg", SKU: "SKU-POSHO-01", Category: "grocery", Price: 8500, Stock: 120, MinStock: 15},
		{Name: "Sugar 1kg", SKU: "SKU-SUGAR-01", Category: "grocery", Price: 5200, Stock: 120, MinStock: 20},
		{Name: "Cooking Oil 1L", SKU: "SKU-OIL-01", Category: "grocery", Price: 11000, Stock: 80, MinStock: 10},
		{Name: "Rice 5kg", SKU: "SKU-RICE-01", Category: "grocery", Price: 24000, Stock: 60, MinStock: 8},
		{Name: "Drinking Water 500ml", SKU: "SKU-WATER-01", Category: "beverage", Price: 1000, Stock: 200, MinStock: 40},
		{Name: "Soda 300ml", SKU: "SKU-SODA-01", Category: "beverage", Price: 1500, Stock: 150, MinStock: 30},
		{Name: "Milk 500ml", SKU: "SKU-MILK-01", Category: "dairy", Price: 2000, Stock: 90, MinStock: 20},
		{Name: "Bread Loaf", SKU: "SKU-BREAD-01", Category: "bakery", Price: 4500, Stock: 50, MinStock: 10},
		{Name: "Bar Soap", SKU: "SKU-SOAP-01", Category: "household", Price: 3500, Stock: 70, MinStock: 12},
		{Name: "Matchbox", SKU: "SKU-MATCH-01", Category: "household", Price: 500, Stock: 300, MinStock: 50},
		{Name: "Exercise Book 96pg", SKU: "SKU-BOOK-01", Category: "stationery", Price: 1800, Stock: 140, MinStock: 25},
		{Name: "Ballpoint Pen", SKU: "SKU-PEN-01", Category: "stationery", Price: 700, Stock: 250, MinStock: 40},
	}
	for _, p := range seed {
		p.ID = xid.New("prod")
		p.Status = domain.StockStatus(p.Stock, p.MinStock)
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
		s.productsBySKU[p.SKU] = p.ID
	}

	categories := []domain.ExpenseCategory{
		{Name: "Rent", Description: "Shop rent and related charges"},
		{Name: "Utilities", Description: "Power, water, airtime"},
		{Name: "Transport", Description: "Stock collection and delivery"},
		{Name: "Salaries", Description: "Staff wages"},
		{Name: "Supplies", Description: "Packaging and consumables"},
	}
	for _, c := range categories {
		c.ID = xid.New("cat")
		s.categoriesByID[c.ID] = c
	}

	return s
}

func (s *Store) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		p.Status = domain.StockStatus(p.Stock, p.MinStock)
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.SKU), needle) {
				continue
			}
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	if filter.Limit > 0 && len(products) > filter.Limit {
		products = products[:filter.Limit]
	}
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	product.Status = domain.StockStatus(product.Stock, product.MinStock)
	return &product, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productsBySKU[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.products[id]
	product.Status = domain.StockStatus(product.Stock, product.MinStock)
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.SKU == "" || product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.productsBySKU[product.SKU]; exists {
		return nil, store.ErrConflict
	}

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	product.Status = domain.StockStatus(product.Stock, product.MinStock)
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	s.productsBySKU[product.SKU] = product.ID
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Name == "" || product.SKU == "" || product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return nil, store.ErrValidation
	}
	if otherID, ok := s.productsBySKU[product.SKU]; ok && otherID != product.ID {
		return nil, store.ErrConflict
	}

	if existing.SKU != product.SKU {
		delete(s.productsBySKU, existing.SKU)
		s.productsBySKU[product.SKU] = product.ID
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	product.Status = domain.StockStatus(product.Stock, product.MinStock)
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	delete(s.productsBySKU, product.SKU)
	return nil
}

// CreateSale settles a composed sale under one lock: the availability
// recheck, stock decrements, the sale row, and the customer aggregate all
// happen together or not at all. Validation failures leave every map
// untouched because no write occurs before the last check passes.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale, contact domain.Customer) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.OrderID == "" || strings.TrimSpace(sale.CustomerName) == "" || len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if sale.CashPaid+sale.DebitBalance != sale.TotalAmount {
		return nil, store.ErrValidation
	}

	// The recheck sums quantities per product so a cart carrying the same
	// product on several lines cannot decrement stock below zero.
	requested := make(map[string]int, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		product, exists := s.products[item.ProductID]
		if !exists {
			return nil, store.ErrNotFound
		}
		requested[item.ProductID] += item.Quantity
		if requested[item.ProductID] > product.Stock {
			return nil, store.ErrInsufficientStock
		}
	}

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

	for i := range sale.Items {
		item := &sale.Items[i]
		product := s.products[item.ProductID]
		product.Stock -= item.Quantity
		product.Status = domain.StockStatus(product.Stock, product.MinStock)
		product.UpdatedAt = now
		s.products[item.ProductID] = product

		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.SaleID = sale.ID
		item.ProductName = product.Name
		item.TotalPrice = item.UnitPrice * int64(item.Quantity)
	}

	customer := s.upsertCustomerLocked(sale.CustomerName, contact.Email, contact.Phone, now)
	customer.TotalOrders++
	customer.TotalSpent += sale.CashPaid
	if customer.Email == "" {
		customer.Email = contact.Email
	}
	if customer.Phone == "" {
		customer.Phone = contact.Phone
	}
	s.customersByID[customer.ID] = customer
	sale.CustomerID = customer.ID

	saleCopy := cloneSale(&sale)
	s.salesByID[sale.ID] = saleCopy

	return cloneSale(saleCopy), nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && sale.SaleDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sale.SaleDate.After(filter.To) {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}

	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	if filter.Limit > 0 && len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.salesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	delete(s.paymentsBySale, id)
	return nil
}

func (s *Store) ApplySalePayment(_ context.Context, saleID string, amount int64, method string, actor string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}

	applied, err := settlement.ApplyPayment(sale.CashPaid, sale.DebitBalance, amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sale.CashPaid = applied.CashPaid
	sale.DebitBalance = applied.DebitBalance
	sale.Status = applied.Status

	s.paymentsBySale[saleID] = append(s.paymentsBySale[saleID], domain.Payment{
		ID:        xid.New("pay"),
		SaleID:    saleID,
		Amount:    amount,
		Method:    method,
		Actor:     actor,
		CreatedAt: now,
	})

	// The sale's surrogate customer id survives renames; the name key is
	// only consulted for legacy rows that predate it.
	customerID := sale.CustomerID
	if _, ok := s.customersByID[customerID]; !ok {
		customerID = s.customersByName[nameKey(sale.CustomerName)]
	}
	if customer, ok := s.customersByID[customerID]; ok {
		customer.TotalSpent += amount
		s.customersByID[customerID] = customer
	}

	return cloneSale(sale), nil
}

func (s *Store) ListSalePayments(_ context.Context, saleID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.salesByID[saleID]; !ok {
		return nil, store.ErrNotFound
	}
	payments := make([]domain.Payment, len(s.paymentsBySale[saleID]))
	copy(payments, s.paymentsBySale[saleID])
	return payments, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) FindCustomerByName(_ context.Context, name string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.customersByName[nameKey(name)]
	if !ok {
		return nil, store.ErrNotFound
	}
	customer := s.customersByID[id]
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) UpdateCustomerContact(_ context.Context, id string, name string, email string, phone string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(name) == "" {
		return nil, store.ErrValidation
	}
	if otherID, ok := s.customersByName[nameKey(name)]; ok && otherID != id {
		return nil, store.ErrConflict
	}

	if customer.Name != name {
		delete(s.customersByName, nameKey(customer.Name))
		s.customersByName[nameKey(name)] = id
	}
	customer.Name = name
	customer.Email = email
	customer.Phone = phone
	s.customersByID[id] = customer
	return &customer, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.CategoryID != "" {
		category, ok := s.categoriesByID[expense.CategoryID]
		if !ok {
			return nil, store.ErrNotFound
		}
		expense.CategoryName = category.Name
	}

	now := time.Now().UTC()
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = nowDateUTC(now)
	}
	expense.CreatedAt = now
	s.expensesByID[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) GetExpense(_ context.Context, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expense, ok := s.expensesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		if filter.CategoryID != "" && e.CategoryID != filter.CategoryID {
			continue
		}
		if !filter.From.IsZero() && e.ExpenseDate.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.ExpenseDate.After(filter.To) {
			continue
		}
		expenses = append(expenses, e)
	}

	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		if a.ExpenseDate.Equal(b.ExpenseDate) {
			return cmpString(a.ID, b.ID)
		}
		if a.ExpenseDate.After(b.ExpenseDate) {
			return -1
		}
		return 1
	})

	if filter.Limit > 0 && len(expenses) > filter.Limit {
		expenses = expenses[:filter.Limit]
	}
	return expenses, nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expensesByID[expense.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if expense.Amount <= 0 {
		return nil, store.ErrValidation
	}
	if expense.CategoryID != "" {
		category, ok := s.categoriesByID[expense.CategoryID]
		if !ok {
			return nil, store.ErrNotFound
		}
		expense.CategoryName = category.Name
	}
	expense.CreatedAt = existing.CreatedAt
	s.expensesByID[expense.ID] = expense
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.expensesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.expensesByID, id)
	return nil
}

func (s *Store) CreateExpenseCategory(_ context.Context, category domain.ExpenseCategory) (*domain.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrValidation
	}
	for _, existing := range s.categoriesByID {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	s.categoriesByID[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListExpenseCategories(_ context.Context) ([]domain.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.ExpenseCategory, 0, len(s.categoriesByID))
	for _, c := range s.categoriesByID {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.ExpenseCategory) int {
		return cmpString(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) ListDueRecurringExpenses(_ context.Context, now time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := nowDateUTC(now)
	due := make([]domain.Expense, 0)
	for _, e := range s.expensesByID {
		if !e.IsRecurring || e.SourceExpenseID != "" {
			continue
		}
		if e.RecurringEndDate != nil && e.RecurringEndDate.Before(today) {
			continue
		}
		if e.ExpenseDate.After(today) {
			continue
		}
		due = append(due, e)
	}
	slices.SortFunc(due, func(a, b domain.Expense) int {
		return cmpString(a.ID, b.ID)
	})
	return due, nil
}

func (s *Store) HasExpenseClone(_ context.Context, sourceExpenseID string, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := nowDateUTC(date)
	for _, e := range s.expensesByID {
		if e.SourceExpenseID == sourceExpenseID && nowDateUTC(e.ExpenseDate).Equal(day) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetSalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{From: from, To: to}
	byProduct := map[string]*domain.ProductSalesStat{}

	for _, sale := range s.salesByID {
		if !from.IsZero() && sale.SaleDate.Before(from) {
			continue
		}
		if !to.IsZero() && sale.SaleDate.After(to) {
			continue
		}
		summary.SaleCount++
		summary.TotalAmount += sale.TotalAmount
		summary.CashCollected += sale.CashPaid
		summary.OutstandingDebit += sale.DebitBalance
		for _, item := range sale.Items {
			stat, ok := byProduct[item.ProductID]
			if !ok {
				stat = &domain.ProductSalesStat{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = stat
			}
			stat.Quantity += item.Quantity
			stat.Amount += item.TotalPrice
		}
	}

	for _, e := range s.expensesByID {
		if !from.IsZero() && e.ExpenseDate.Before(from) {
			continue
		}
		if !to.IsZero() && e.ExpenseDate.After(to) {
			continue
		}
		summary.ExpenseTotal += e.Amount
	}

	stats := make([]domain.ProductSalesStat, 0, len(byProduct))
	for _, stat := range byProduct {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b domain.ProductSalesStat) int {
		if a.Amount == b.Amount {
			return cmpString(a.ProductID, b.ProductID)
		}
		if a.Amount > b.Amount {
			return -1
		}
		return 1
	})
	if len(stats) > 5 {
		stats = stats[:5]
	}
	summary.TopProducts = stats

	return summary, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		logs = append(logs, entry)
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return logs, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.PasswordHash == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.PasswordHash = password
	s.usersByUsername[username] = user
	return nil
}

// upsertCustomerLocked returns the customer for the given name, creating
// one if needed. Callers must hold the write lock and store the returned
// value back after mutating aggregates.
func (s *Store) upsertCustomerLocked(name string, email string, phone string, now time.Time) domain.Customer {
	if id, ok := s.customersByName[nameKey(name)]; ok {
		return s.customersByID[id]
	}
	customer := domain.Customer{
		ID:        xid.New("cust"),
		Name:      strings.TrimSpace(name),
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
	}
	s.customersByID[customer.ID] = customer
	s.customersByName[nameKey(name)] = customer.ID
	return customer
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneSale(sale *domain.Sale) *domain.Sale {
	if sale == nil {
		return nil
	}
	clone := *sale
	clone.Items = make([]domain.SaleItem, len(sale.Items))
	copy(clone.Items, sale.Items)
	return &clone
}

func nowDateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
