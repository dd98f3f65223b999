package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentPaid    = "paid"
	PaymentPartial = "partial"
	PaymentDue     = "due"
)

// Sale - The invoice header
type Sale struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string          `gorm:"uniqueIndex;size:40;not null" json:"invoice_number"`
	BranchID       uint            `gorm:"index;not null" json:"branch_id"`
	CustomerID     *uint           `json:"customer_id"`
	PerOrderID     *uint           `gorm:"index" json:"per_order_id"`
	CashierID      uint            `json:"cashier_id"` // Who processed it
	Items          []SaleItem      `gorm:"foreignKey:SaleID" json:"items,omitempty"`
	Payments       []Payment       `gorm:"foreignKey:SaleID" json:"payments,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"discount_amount"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"paid_amount"`
	DueAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"due_amount"`
	PaymentStatus  string          `gorm:"size:16;index;not null" json:"payment_status"`
	Notes          string          `gorm:"type:text" json:"notes"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
}

// SaleItem - One invoice line. Unique products get one line per IMEI.
type SaleItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SaleID      uint            `gorm:"index;not null" json:"sale_id"`
	ProductID   *uint           `json:"product_id"`
	ProductName string          `gorm:"size:255" json:"product_name"`
	IMEI        *string         `gorm:"column:imei;uniqueIndex;size:32" json:"imei"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"` // Snapshot of price at time of sale
	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
}

// Payment is an instalment against a sale.
type Payment struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	SaleID    uint            `gorm:"index;not null" json:"sale_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Method    string          `gorm:"size:32;not null" json:"method"`
	CreatedAt time.Time       `json:"created_at"`
}
