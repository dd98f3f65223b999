package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PerOrderPending   = "pending"
	PerOrderCompleted = "completed"
	PerOrderCancelled = "cancelled"
)

// CustomerInfo is captured inline on the order. CustomerID links it to a
// customer record kept elsewhere, when there is one.
type CustomerInfo struct {
	Name    string `gorm:"size:120" json:"name"`
	Phone   string `gorm:"size:32" json:"phone"`
	Email   string `gorm:"size:120" json:"email"`
	Address string `gorm:"size:255" json:"address"`
}

// PerOrder - A reservation paid in advance; stock is committed only on conversion
type PerOrder struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	OrderNumber          string          `gorm:"uniqueIndex;size:40;not null" json:"order_number"`
	CustomerID           *uint           `json:"customer_id"`
	Customer             CustomerInfo    `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	BranchID             uint            `gorm:"index;not null" json:"branch_id"`
	Items                []PerOrderItem  `gorm:"foreignKey:PerOrderID" json:"items"`
	AdvancePayment       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"advance_payment"`
	Subtotal             decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
	DueAmount            decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"due_amount"`
	Status               string          `gorm:"size:16;index;not null" json:"status"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	Notes                string          `gorm:"type:text" json:"notes"`
	RefundedAmount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"refunded_amount"`
	CancelReason         string          `gorm:"size:255" json:"cancel_reason,omitempty"`
	CancelledAt          *time.Time      `json:"cancelled_at,omitempty"`
	SaleID               *uint           `json:"sale_id"`
	CreatedBy            uint            `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// PerOrderItem is either a catalog product or an ad-hoc custom line.
type PerOrderItem struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	PerOrderID        uint            `gorm:"index;not null" json:"per_order_id"`
	ProductID         *uint           `json:"product_id"`
	CustomProductName string          `gorm:"size:255" json:"custom_product_name,omitempty"`
	ProductName       string          `gorm:"size:255" json:"product_name"` // Snapshot for display
	Quantity          int             `gorm:"not null" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"unit_price"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"subtotal"`
}
