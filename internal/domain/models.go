package domain

import "time"

// Money amounts are whole UGX units held as int64. UGX has no minor unit,
// so every amount in the system is an exact integer and balance checks
// never see rounding drift.

// Sale statuses.
const (
	SaleStatusCompleted = "Completed"
	SaleStatusPending   = "Pending"
	SaleStatusPartial   = "Partial Payment"
)

// Payment methods accepted at sale time.
const (
	PaymentMethodCash    = "cash"
	PaymentMethodCredit  = "credit"
	PaymentMethodPartial = "partial"
)

// Product stock statuses.
const (
	ProductStatusInStock    = "In Stock"
	ProductStatusLowStock   = "Low Stock"
	ProductStatusOutOfStock = "Out of Stock"
)

// Recurring expense frequencies.
const (
	RecurringDaily   = "daily"
	RecurringWeekly  = "weekly"
	RecurringMonthly = "monthly"
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Category  string    `json:"category"`
	Price     int64     `json:"price"`
	Stock     int       `json:"stock"`
	MinStock  int       `json:"min_stock"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockStatus derives a product's status from its stock level. Stored
// status values are never trusted; callers recompute on every read and
// after every stock mutation.
func StockStatus(stock int, minStock int) string {
	switch {
	case stock <= 0:
		return ProductStatusOutOfStock
	case stock <= minStock:
		return ProductStatusLowStock
	default:
		return ProductStatusInStock
	}
}

type SaleItem struct {
	ID          string `json:"id"`
	SaleID      string `json:"sale_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
}

type Sale struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name"`
	TotalAmount   int64      `json:"total_amount"`
	ItemsCount    int        `json:"items_count"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	CashPaid      int64      `json:"cash_paid"`
	DebitBalance  int64      `json:"debit_balance"`
	SaleDate      time.Time  `json:"sale_date"`
	CreatedAt     time.Time  `json:"created_at"`
	Items         []SaleItem `json:"items,omitempty"`
}

type Customer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	TotalOrders int       `json:"total_orders"`
	TotalSpent  int64     `json:"total_spent"`
	CreatedAt   time.Time `json:"created_at"`
}

// Payment is the audit record of a single payment applied against a
// sale's outstanding balance. The method label is informational only and
// never changes balance math.
type Payment struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

type ExpenseCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Expense struct {
	ID                 string     `json:"id"`
	ExpenseDate        time.Time  `json:"expense_date"`
	CategoryID         string     `json:"category_id,omitempty"`
	CategoryName       string     `json:"category_name,omitempty"`
	Amount             int64      `json:"amount"`
	PaymentMethod      string     `json:"payment_method"`
	Description        string     `json:"description,omitempty"`
	SupplierName       string     `json:"supplier_name,omitempty"`
	EmployeeName       string     `json:"employee_name,omitempty"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurringFrequency string     `json:"recurring_frequency,omitempty"`
	RecurringEndDate   *time.Time `json:"recurring_end_date,omitempty"`
	// SourceExpenseID points at the recurring template an expense was
	// materialized from; empty for manually entered rows.
	SourceExpenseID string    `json:"source_expense_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type UserAccount struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// CartLine is one entry of an incoming sale request: the product being
// sold and the quantity. Unit price and product name are snapshotted from
// the catalog at composition time, never taken from the client.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateSaleRequest struct {
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	CustomerPhone string     `json:"customer_phone"`
	PaymentMethod string     `json:"payment_method"`
	CashPaid      int64      `json:"cash_paid,omitempty"`
	SaleDate      *time.Time `json:"sale_date,omitempty"`
	Items         []CartLine `json:"items"`
}

type RecordPaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method,omitempty"`
}

type ProductFilter struct {
	Category string
	Status   string
	Search   string
	Limit    int
}

type SaleFilter struct {
	Status string
	From   time.Time
	To     time.Time
	Limit  int
}

type ExpenseFilter struct {
	CategoryID string
	From       time.Time
	To         time.Time
	Limit      int
}

// SalesSummary aggregates settled money over a date range. Revenue counts
// collected cash only; uncollected credit is reported separately as
// outstanding.
type SalesSummary struct {
	From             time.Time          `json:"from"`
	To               time.Time          `json:"to"`
	SaleCount        int                `json:"sale_count"`
	TotalAmount      int64              `json:"total_amount"`
	CashCollected    int64              `json:"cash_collected"`
	OutstandingDebit int64              `json:"outstanding_debit"`
	ExpenseTotal     int64              `json:"expense_total"`
	TopProducts      []ProductSalesStat `json:"top_products,omitempty"`
}

type ProductSalesStat struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Amount      int64  `json:"amount"`
}

type Actor struct {
	Username string
	Role     string
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
