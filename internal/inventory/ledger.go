package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger owns the per-branch counters of bulk products. Counters only change
// through SetQuantity, Deduct and Credit, and every change leaves a
// StockMovement behind in the same transaction.
type Ledger struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewLedger(db *gorm.DB, log *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{db: db, log: log, metrics: m}
}

// StockRow is one line of the stock screen. BranchID is nil in the aggregate
// view.
type StockRow struct {
	ProductID     uint            `json:"productId"`
	ProductName   string          `json:"productName"`
	SKU           string          `json:"sku"`
	Brand         string          `json:"brand"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	InventoryType string          `json:"inventoryType"`
	BranchID      *uint           `json:"branchId"`
	Quantity      int             `json:"quantity"`
}

type stockScan struct {
	ProductID     uint
	ProductName   string
	SKU           string `gorm:"column:sku"`
	Brand         string
	BasePrice     decimal.Decimal
	InventoryType string
	Quantity      int
}

// GetStock lists on-hand quantities for one branch, or summed over every
// branch when the scope is "all". Unique products report their count of
// in-stock units.
func (l *Ledger) GetStock(ctx context.Context, s scope.Scope) ([]StockRow, error) {
	db := l.db.WithContext(ctx)
	cols := "p.id AS product_id, p.name AS product_name, p.sku AS sku, p.brand AS brand, p.base_price AS base_price, p.inventory_type AS inventory_type"
	group := "p.id, p.name, p.sku, p.brand, p.base_price, p.inventory_type"

	var bulk []stockScan
	bulkJoin := "LEFT JOIN branch_stocks bs ON bs.product_id = p.id"
	var bulkArgs []interface{}
	if !s.All {
		bulkJoin += " AND bs.branch_id = ?"
		bulkArgs = append(bulkArgs, s.BranchID)
	}
	err := db.Table("products p").
		Select(cols+", COALESCE(SUM(bs.quantity), 0) AS quantity").
		Joins(bulkJoin, bulkArgs...).
		Where("p.inventory_type = ?", models.InventoryBulk).
		Group(group).
		Scan(&bulk).Error
	if err != nil {
		return nil, apperrors.Internal(err, "query bulk stock")
	}

	var unique []stockScan
	unitJoin := "LEFT JOIN imei_units u ON u.product_id = p.id AND u.status = ?"
	unitArgs := []interface{}{models.ImeiInStock}
	if !s.All {
		unitJoin += " AND u.branch_id = ?"
		unitArgs = append(unitArgs, s.BranchID)
	}
	err = db.Table("products p").
		Select(cols+", COUNT(u.id) AS quantity").
		Joins(unitJoin, unitArgs...).
		Where("p.inventory_type = ?", models.InventoryUnique).
		Group(group).
		Scan(&unique).Error
	if err != nil {
		return nil, apperrors.Internal(err, "query unit stock")
	}

	var branchID *uint
	if !s.All {
		id := s.BranchID
		branchID = &id
	}
	rows := make([]StockRow, 0, len(bulk)+len(unique))
	for _, r := range append(bulk, unique...) {
		rows = append(rows, StockRow{
			ProductID:     r.ProductID,
			ProductName:   r.ProductName,
			SKU:           r.SKU,
			Brand:         r.Brand,
			BasePrice:     r.BasePrice,
			InventoryType: r.InventoryType,
			BranchID:      branchID,
			Quantity:      r.Quantity,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ProductName == rows[j].ProductName {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].ProductName < rows[j].ProductName
	})
	return rows, nil
}

// Quantity returns the counter for one product at one branch, 0 when no row
// exists yet.
func (l *Ledger) Quantity(ctx context.Context, productID, branchID uint) (int, error) {
	return quantityOf(l.db.WithContext(ctx), productID, branchID)
}

func quantityOf(tx *gorm.DB, productID, branchID uint) (int, error) {
	var row models.BranchStock
	err := tx.Where("product_id = ? AND branch_id = ?", productID, branchID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Internal(err, "read stock")
	}
	return row.Quantity, nil
}

// SetQuantity overwrites a counter after a manual count. Only an actor scoped
// to exactly that branch may do it.
func (l *Ledger) SetQuantity(ctx context.Context, actor scope.Actor, productID, branchID uint, quantity int) (*models.BranchStock, error) {
	if quantity < 0 {
		return nil, apperrors.Validation("quantity cannot be negative").With("quantity", quantity)
	}
	if err := scope.AuthorizeBranchWrite(actor, branchID); err != nil {
		return nil, err
	}

	var result models.BranchStock
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := catalog.FindProduct(tx, productID)
		if err != nil {
			return err
		}
		if product.IsUnique() {
			return apperrors.Validation("product %d is tracked by IMEI; register units instead", productID)
		}
		if _, err := catalog.ActiveBranch(tx, branchID); err != nil {
			return err
		}

		var current models.BranchStock
		previous := 0
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND branch_id = ?", productID, branchID).
			Take(&current).Error
		switch {
		case err == nil:
			previous = current.Quantity
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.Internal(err, "lock stock row")
		}

		row := models.BranchStock{ProductID: productID, BranchID: branchID, Quantity: quantity}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "branch_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return apperrors.Internal(err, "set stock")
		}

		if err := recordMovement(tx, productID, branchID, quantity-previous, models.MovementSet, "manual"); err != nil {
			return err
		}
		return tx.Where("product_id = ? AND branch_id = ?", productID, branchID).Take(&result).Error
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("stock quantity set",
		zap.Uint("product_id", productID), zap.Uint("branch_id", branchID),
		zap.Int("quantity", quantity), zap.Uint("actor", actor.UserID))
	return &result, nil
}

// Deduct removes quantity from a counter inside tx. The decrement is a single
// conditional UPDATE, so two concurrent deductions can never both consume the
// last unit.
func (l *Ledger) Deduct(tx *gorm.DB, productID, branchID uint, quantity int, reason, reference string) error {
	if quantity <= 0 {
		return apperrors.Validation("quantity must be at least 1").With("quantity", quantity)
	}

	res := tx.Model(&models.BranchStock{}).
		Where("product_id = ? AND branch_id = ? AND quantity >= ?", productID, branchID, quantity).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return apperrors.Internal(res.Error, "deduct stock")
	}
	if res.RowsAffected == 0 {
		available, err := quantityOf(tx, productID, branchID)
		if err != nil {
			return err
		}
		l.metrics.StockConflict("insufficient_stock")
		return apperrors.Conflict("insufficient stock").
			With("product_id", productID).
			With("branch_id", branchID).
			With("requested", quantity).
			With("available", available)
	}
	return recordMovement(tx, productID, branchID, -quantity, reason, reference)
}

// Credit adds quantity to a counter inside tx, creating the row on first use.
func (l *Ledger) Credit(tx *gorm.DB, productID, branchID uint, quantity int, reason, reference string) error {
	if quantity <= 0 {
		return apperrors.Validation("quantity must be at least 1").With("quantity", quantity)
	}

	row := models.BranchStock{ProductID: productID, BranchID: branchID, Quantity: quantity}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "product_id"}, {Name: "branch_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("branch_stocks.quantity + ?", quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&row).Error
	if err != nil {
		return apperrors.Internal(err, "credit stock")
	}
	return recordMovement(tx, productID, branchID, quantity, reason, reference)
}

func recordMovement(tx *gorm.DB, productID, branchID uint, change int, reason, reference string) error {
	after, err := quantityOf(tx, productID, branchID)
	if err != nil {
		return err
	}
	m := models.StockMovement{
		ProductID:     productID,
		BranchID:      branchID,
		Change:        change,
		QuantityAfter: after,
		Reason:        reason,
		Reference:     reference,
	}
	if err := tx.Create(&m).Error; err != nil {
		return apperrors.Internal(err, "record stock movement")
	}
	return nil
}

type MovementFilter struct {
	BranchID  *uint
	ProductID *uint
	Limit     int
}

func (l *Ledger) ListMovements(ctx context.Context, actor scope.Actor, f MovementFilter) ([]models.StockMovement, error) {
	s, err := scope.ReadScope(actor, f.BranchID)
	if err != nil {
		return nil, err
	}

	q := l.db.WithContext(ctx).Order("id DESC")
	if !s.All {
		q = q.Where("branch_id = ?", s.BranchID)
	}
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var out []models.StockMovement
	if err := q.Limit(f.Limit).Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "list stock movements")
	}
	return out, nil
}
