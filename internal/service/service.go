package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"dukabook/backend/internal/bus"
	"dukabook/backend/internal/cache"
	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/settlement"
	"dukabook/backend/internal/store"
	"dukabook/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	events    *bus.Bus
	reports   cache.ReportCache
	reportTTL time.Duration

	mu         sync.Mutex
	reportKeys map[string]struct{}
}

func New(repo store.Repository, events *bus.Bus, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL < time.Second {
		reportTTL = 60 * time.Second
	}

	return &Service{
		repo:       repo,
		events:     events,
		reports:    reports,
		reportTTL:  reportTTL,
		reportKeys: make(map[string]struct{}),
	}
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.TrimSpace(product.Category)

	if product.SKU == "" || product.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name and sku are required", store.ErrValidation)
	}
	if product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price, stock and min_stock must not be negative", store.ErrValidation)
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", created.ID, fmt.Sprintf("sku=%s,price=%d,stock=%d", created.SKU, created.Price, created.Stock))
	s.publish(bus.TableProducts, bus.ActionInsert, created.ID)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.TrimSpace(product.Category)

	if product.ID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", store.ErrValidation)
	}
	if product.SKU == "" || product.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: name and sku are required", store.ErrValidation)
	}
	if product.Price < 0 || product.Stock < 0 || product.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price, stock and min_stock must not be negative", store.ErrValidation)
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", updated.ID, fmt.Sprintf("sku=%s,price=%d,stock=%d", updated.SKU, updated.Price, updated.Stock))
	s.publish(bus.TableProducts, bus.ActionUpdate, updated.ID)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireRole(ctx, "admin"); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", id, "")
	s.publish(bus.TableProducts, bus.ActionDelete, id)
	return nil
}

// CreateSale runs the full settlement: contact validation, catalog
// snapshot, composition, then the atomic commit. Prices and product names
// on the line items are pinned from the catalog here; the client only
// chooses products and quantities.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.Sale, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)

	if req.CustomerName == "" || req.CustomerEmail == "" || req.CustomerPhone == "" {
		return domain.Sale{}, fmt.Errorf("%w: customer name, email and phone are required", store.ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.Sale{}, fmt.Errorf("%w: cart is empty", store.ErrValidation)
	}

	lines := make([]settlement.Line, 0, len(req.Items))
	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, entry := range req.Items {
		if entry.ProductID == "" {
			return domain.Sale{}, fmt.Errorf("%w: cart line is missing a product", store.ErrValidation)
		}
		product, err := s.repo.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("product %s: %w", entry.ProductID, err)
		}
		lines = append(lines, settlement.Line{
			ProductID: product.ID,
			Quantity:  entry.Quantity,
			UnitPrice: product.Price,
			Stock:     product.Stock,
		})
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    entry.Quantity,
			UnitPrice:   product.Price,
			TotalPrice:  product.Price * int64(entry.Quantity),
		})
	}

	draft, err := settlement.Compose(lines, req.PaymentMethod, req.CashPaid)
	if err != nil {
		return domain.Sale{}, err
	}

	now := time.Now().UTC()
	saleDate := now
	if req.SaleDate != nil && !req.SaleDate.IsZero() {
		saleDate = req.SaleDate.UTC()
	}

	sale := domain.Sale{
		OrderID:       xid.NewOrderID(now),
		CustomerName:  req.CustomerName,
		TotalAmount:   draft.TotalAmount,
		ItemsCount:    draft.ItemsCount,
		Status:        draft.Status,
		PaymentMethod: draft.PaymentMethod,
		CashPaid:      draft.CashPaid,
		DebitBalance:  draft.DebitBalance,
		SaleDate:      dateOnly(saleDate),
		CreatedAt:     now,
		Items:         items,
	}

	contact := domain.Customer{
		Name:  req.CustomerName,
		Email: req.CustomerEmail,
		Phone: req.CustomerPhone,
	}

	created, err := s.repo.CreateSale(ctx, sale, contact)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_create", created.ID, fmt.Sprintf("order=%s,total=%d,method=%s,status=%s", created.OrderID, created.TotalAmount, created.PaymentMethod, created.Status))
	s.publish(bus.TableSales, bus.ActionInsert, created.ID)
	for _, item := range created.Items {
		s.publish(bus.TableProducts, bus.ActionUpdate, item.ProductID)
	}
	s.publish(bus.TableCustomers, bus.ActionUpdate, created.CustomerID)
	s.dropReportCache(ctx)

	return *created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

// DeleteSale removes a sale and its derived rows. Admin only; the HTTP
// layer additionally demands the manager PIN before it gets here. Stock
// and customer aggregates are deliberately left as-is: deleting a sale is
// a bookkeeping correction, not a return flow.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	if err := requireRole(ctx, "admin"); err != nil {
		return err
	}

	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSale(ctx, id); err != nil {
		return err
	}

	s.logAudit(ctx, "sale_delete", id, fmt.Sprintf("order=%s,total=%d", sale.OrderID, sale.TotalAmount))
	s.publish(bus.TableSales, bus.ActionDelete, id)
	s.dropReportCache(ctx)
	return nil
}

// RecordPayment applies a payment against a sale's outstanding balance.
// Validation (positive amount, no overpayment) happens inside the atomic
// store operation against the freshly loaded balance, so two concurrent
// payments cannot both pass a stale check.
func (s *Service) RecordPayment(ctx context.Context, saleID string, req domain.RecordPaymentRequest) (domain.Sale, error) {
	if saleID == "" {
		return domain.Sale{}, fmt.Errorf("%w: sale id is required", store.ErrValidation)
	}

	actorName := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		actorName = actor.Username
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = domain.PaymentMethodCash
	}

	updated, err := s.repo.ApplySalePayment(ctx, saleID, req.Amount, method, actorName)
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "payment_apply", saleID, fmt.Sprintf("amount=%d,balance=%d,status=%s", req.Amount, updated.DebitBalance, updated.Status))
	s.publish(bus.TableSales, bus.ActionUpdate, saleID)
	s.publish(bus.TableCustomers, bus.ActionUpdate, updated.CustomerID)
	s.dropReportCache(ctx)

	return *updated, nil
}

func (s *Service) ListSalePayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	return s.repo.ListSalePayments(ctx, saleID)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, limit)
}

func (s *Service) UpdateCustomerContact(ctx context.Context, id string, name string, email string, phone string) (domain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}

	updated, err := s.repo.UpdateCustomerContact(ctx, id, name, strings.TrimSpace(email), strings.TrimSpace(phone))
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "customer_update", id, fmt.Sprintf("name=%s", updated.Name))
	s.publish(bus.TableCustomers, bus.ActionUpdate, id)
	return *updated, nil
}

func (s *Service) CreateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	if err := validateExpense(expense); err != nil {
		return domain.Expense{}, err
	}

	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_create", created.ID, fmt.Sprintf("amount=%d,category=%s", created.Amount, created.CategoryName))
	s.publish(bus.TableExpenses, bus.ActionInsert, created.ID)
	s.dropReportCache(ctx)
	return *created, nil
}

func (s *Service) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	expense, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return domain.Expense{}, err
	}
	return *expense, nil
}

func (s *Service) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, filter)
}

func (s *Service) UpdateExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	if expense.ID == "" {
		return domain.Expense{}, fmt.Errorf("%w: expense id is required", store.ErrValidation)
	}
	if err := validateExpense(expense); err != nil {
		return domain.Expense{}, err
	}

	updated, err := s.repo.UpdateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}

	s.logAudit(ctx, "expense_update", updated.ID, fmt.Sprintf("amount=%d", updated.Amount))
	s.publish(bus.TableExpenses, bus.ActionUpdate, updated.ID)
	s.dropReportCache(ctx)
	return *updated, nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	if err := requireRole(ctx, "admin"); err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "expense_delete", id, "")
	s.publish(bus.TableExpenses, bus.ActionDelete, id)
	s.dropReportCache(ctx)
	return nil
}

func (s *Service) CreateExpenseCategory(ctx context.Context, category domain.ExpenseCategory) (domain.ExpenseCategory, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return domain.ExpenseCategory{}, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	created, err := s.repo.CreateExpenseCategory(ctx, category)
	if err != nil {
		return domain.ExpenseCategory{}, err
	}
	s.logAudit(ctx, "expense_category_create", created.ID, created.Name)
	return *created, nil
}

func (s *Service) ListExpenseCategories(ctx context.Context) ([]domain.ExpenseCategory, error) {
	return s.repo.ListExpenseCategories(ctx)
}

// SalesSummary serves the dashboard report with a read-through cache.
// Mutations drop every cached range, so a stale window is bounded by the
// TTL only when the drop itself fails.
func (s *Service) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	key := reportKey(from, to)

	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache get failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	summary, err := s.repo.GetSalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	if err := s.reports.Set(ctx, key, &summary, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache set failed key=%s: %v", key, err)
	} else {
		s.mu.Lock()
		s.reportKeys[key] = struct{}{}
		s.mu.Unlock()
	}

	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) publish(table string, action string, id string) {
	if s.events == nil {
		return
	}
	s.events.Publish(bus.Event{Table: table, Action: action, ID: id})
}

func (s *Service) dropReportCache(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.reportKeys))
	for key := range s.reportKeys {
		keys = append(keys, key)
	}
	s.reportKeys = make(map[string]struct{})
	s.mu.Unlock()

	if len(keys) == 0 {
		return
	}
	if err := s.reports.Delete(ctx, keys...); err != nil {
		log.Printf("[service] WARN: report cache invalidation failed: %v", err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:        xid.New("audit"),
		Actor:     actor.Username,
		Action:    action,
		EntityID:  entityID,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s entity=%s: %v", action, entityID, err)
	}
}

func requireRole(ctx context.Context, role string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != role {
		return fmt.Errorf("%s role required", role)
	}
	return nil
}

func validateExpense(expense domain.Expense) error {
	if expense.Amount <= 0 {
		return fmt.Errorf("%w: expense amount must be positive", store.ErrValidation)
	}
	if expense.IsRecurring {
		switch expense.RecurringFrequency {
		case domain.RecurringDaily, domain.RecurringWeekly, domain.RecurringMonthly:
		default:
			return fmt.Errorf("%w: unknown recurring frequency %q", store.ErrValidation, expense.RecurringFrequency)
		}
	}
	return nil
}

func reportKey(from time.Time, to time.Time) string {
	return fmt.Sprintf("sales-summary:%s:%s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
