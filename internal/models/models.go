package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User - The person signing in to the back office or the till
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'manager', 'staff', 'cashier'
	BranchID     *uint     `json:"branch_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Branch - A shop or warehouse holding stock
type Branch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Code      string    `gorm:"uniqueIndex;size:20;not null" json:"code"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	InventoryBulk   = "bulk"   // counted per branch in BranchStock
	InventoryUnique = "unique" // tracked per IMEI unit
)

// Product - The catalog entry, shared by every branch
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	SKU           string          `gorm:"uniqueIndex;size:64;not null" json:"sku"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Brand         string          `gorm:"size:120" json:"brand"`
	Category      string          `gorm:"size:120" json:"category"`
	BasePrice     decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"base_price"`
	Barcode       *string         `gorm:"uniqueIndex;size:32" json:"barcode"`
	InventoryType string          `gorm:"size:10;not null" json:"inventory_type"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Product) IsUnique() bool { return p.InventoryType == InventoryUnique }
