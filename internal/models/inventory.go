package models

import "time"

// BranchStock is the on-hand counter of a bulk product at one branch.
type BranchStock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"uniqueIndex:idx_branch_stock_product_branch;not null" json:"product_id"`
	BranchID  uint      `gorm:"uniqueIndex:idx_branch_stock_product_branch;not null" json:"branch_id"`
	Quantity  int       `gorm:"not null;check:chk_branch_stocks_quantity,quantity >= 0" json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	MovementSet         = "set"
	MovementSale        = "sale"
	MovementTransferOut = "transfer_out"
	MovementTransferIn  = "transfer_in"
)

// StockMovement is the audit row written next to every counter change.
type StockMovement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProductID     uint      `gorm:"index;not null" json:"product_id"`
	BranchID      uint      `gorm:"index;not null" json:"branch_id"`
	Change        int       `json:"change"`
	QuantityAfter int       `json:"quantity_after"`
	Reason        string    `gorm:"size:20;not null" json:"reason"`
	Reference     string    `gorm:"size:64" json:"reference"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	ImeiInStock  = "in_stock"
	ImeiReserved = "reserved"
	ImeiSold     = "sold"
)

// ImeiUnit is one serialized unit of a unique product.
type ImeiUnit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IMEI       string    `gorm:"column:imei;uniqueIndex;size:32;not null" json:"imei"`
	ProductID  uint      `gorm:"index;not null" json:"product_id"`
	BranchID   uint      `gorm:"index;not null" json:"branch_id"`
	Status     string    `gorm:"size:16;index;not null" json:"status"`
	SaleItemID *uint     `json:"sale_item_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StockTransfer records a committed movement of bulk stock between branches.
type StockTransfer struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FromBranchID uint      `gorm:"index;not null" json:"from_branch_id"`
	ToBranchID   uint      `gorm:"index;not null" json:"to_branch_id"`
	ProductID    uint      `gorm:"not null" json:"product_id"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedBy    uint      `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}
