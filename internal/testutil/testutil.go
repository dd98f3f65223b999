// Package testutil builds throwaway databases and fixtures for service and
// handler tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/database"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// NewDB opens a private in-memory SQLite database with the full schema. The
// pool is capped at one connection, which serializes transactions the way row
// locks do on MySQL or Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pos_test_%d?mode=memory&cache=shared&_foreign_keys=1", atomic.AddInt64(&dbSeq, 1))
	db, err := database.Open("sqlite", dsn, logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func Logger() *zap.Logger { return zap.NewNop() }

func Branch(t *testing.T, db *gorm.DB, code string) models.Branch {
	t.Helper()
	b := models.Branch{Name: "Branch " + code, Code: code, IsActive: true}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("create branch %s: %v", code, err)
	}
	return b
}

func Product(t *testing.T, db *gorm.DB, sku, inventoryType, price string) models.Product {
	t.Helper()
	p := models.Product{
		SKU:           sku,
		Name:          "Product " + sku,
		BasePrice:     decimal.RequireFromString(price),
		InventoryType: inventoryType,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("create product %s: %v", sku, err)
	}
	return p
}

// Stock seeds a bulk counter directly, bypassing the ledger.
func Stock(t *testing.T, db *gorm.DB, productID, branchID uint, qty int) {
	t.Helper()
	row := models.BranchStock{ProductID: productID, BranchID: branchID, Quantity: qty}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func Units(t *testing.T, db *gorm.DB, productID, branchID uint, imeis ...string) {
	t.Helper()
	for _, imei := range imeis {
		u := models.ImeiUnit{IMEI: imei, ProductID: productID, BranchID: branchID, Status: models.ImeiInStock}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed imei %s: %v", imei, err)
		}
	}
}

// QuantityOf reads a counter, 0 when no row exists.
func QuantityOf(t *testing.T, db *gorm.DB, productID, branchID uint) int {
	t.Helper()
	var rows []models.BranchStock
	if err := db.Where("product_id = ? AND branch_id = ?", productID, branchID).Find(&rows).Error; err != nil {
		t.Fatalf("read stock: %v", err)
	}
	if len(rows) == 0 {
		return 0
	}
	return rows[0].Quantity
}

func UnitStatus(t *testing.T, db *gorm.DB, imei string) string {
	t.Helper()
	var u models.ImeiUnit
	if err := db.Where("imei = ?", imei).Take(&u).Error; err != nil {
		t.Fatalf("read imei %s: %v", imei, err)
	}
	return u.Status
}

func Staff(userID, branchID uint) scope.Actor {
	return scope.Actor{UserID: userID, Role: scope.RoleStaff, BranchID: &branchID}
}

func Manager(userID, branchID uint) scope.Actor {
	return scope.Actor{UserID: userID, Role: scope.RoleManager, BranchID: &branchID}
}

// Admin returns an admin acting on branchID, or in the aggregate view when
// branchID is 0.
func Admin(userID, branchID uint) scope.Actor {
	a := scope.Actor{UserID: userID, Role: scope.RoleAdmin}
	if branchID != 0 {
		a.BranchID = &branchID
	}
	return a
}

func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func DecPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func Cashier(userID, branchID uint) scope.Actor {
	return scope.Actor{UserID: userID, Role: scope.RoleCashier, BranchID: &branchID}
}
