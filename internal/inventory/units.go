package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/cache"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Registry tracks serialized units of unique products. It never touches the
// bulk counters.
type Registry struct {
	db      *gorm.DB
	cache   cache.Catalog
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewRegistry(db *gorm.DB, c cache.Catalog, log *zap.Logger, m *metrics.Metrics) *Registry {
	if c == nil {
		c = cache.Noop{}
	}
	return &Registry{db: db, cache: c, log: log, metrics: m}
}

type UnitFilter struct {
	ProductID uint
	BranchID  *uint
	Status    string // in_stock by default, "all" for every status
}

// ListUnits lists units of a product visible to the actor. With the default
// status it is the list offered when picking IMEIs for a conversion.
func (r *Registry) ListUnits(ctx context.Context, actor scope.Actor, f UnitFilter) ([]models.ImeiUnit, error) {
	if f.ProductID == 0 {
		return nil, apperrors.Validation("productId is required")
	}
	switch f.Status {
	case "":
		f.Status = models.ImeiInStock
	case models.ImeiInStock, models.ImeiReserved, models.ImeiSold, "all":
	default:
		return nil, apperrors.Validation("unknown status %q", f.Status)
	}

	s, err := scope.ReadScope(actor, f.BranchID)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Where("product_id = ?", f.ProductID)
	if !s.All {
		q = q.Where("branch_id = ?", s.BranchID)
	}
	if f.Status != "all" {
		q = q.Where("status = ?", f.Status)
	}

	var units []models.ImeiUnit
	if err := q.Order("imei").Find(&units).Error; err != nil {
		return nil, apperrors.Internal(err, "list imei units")
	}
	return units, nil
}

func (r *Registry) ListAvailable(ctx context.Context, actor scope.Actor, productID, branchID uint) ([]models.ImeiUnit, error) {
	return r.ListUnits(ctx, actor, UnitFilter{ProductID: productID, BranchID: &branchID, Status: models.ImeiInStock})
}

// NormalizeIMEI trims the identifier and rejects obviously malformed input.
func NormalizeIMEI(raw string) (string, error) {
	imei := strings.TrimSpace(raw)
	if imei == "" {
		return "", apperrors.Validation("imei cannot be empty")
	}
	if len(imei) > 32 || strings.ContainsAny(imei, " \t\r\n") {
		return "", apperrors.Validation("imei %q is malformed", raw).With("imei", raw)
	}
	return imei, nil
}

// Register adds new in-stock units of a unique product to a branch.
func (r *Registry) Register(ctx context.Context, actor scope.Actor, productID, branchID uint, imeis []string) ([]models.ImeiUnit, error) {
	if len(imeis) == 0 {
		return nil, apperrors.Validation("at least one imei is required")
	}
	seen := make(map[string]bool, len(imeis))
	clean := make([]string, 0, len(imeis))
	for _, raw := range imeis {
		imei, err := NormalizeIMEI(raw)
		if err != nil {
			return nil, err
		}
		if seen[imei] {
			return nil, apperrors.Validation("imei %s is listed twice", imei).With("imei", imei)
		}
		seen[imei] = true
		clean = append(clean, imei)
	}
	if err := scope.AuthorizeBranchWrite(actor, branchID); err != nil {
		return nil, err
	}

	var units []models.ImeiUnit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := catalog.FindProduct(tx, productID)
		if err != nil {
			return err
		}
		if !product.IsUnique() {
			return apperrors.Validation("product %d is a bulk product; adjust its quantity instead", productID)
		}
		if _, err := catalog.ActiveBranch(tx, branchID); err != nil {
			return err
		}

		var existing []models.ImeiUnit
		if err := tx.Where("imei IN ?", clean).Limit(1).Find(&existing).Error; err != nil {
			return apperrors.Internal(err, "check imei uniqueness")
		}
		if len(existing) > 0 {
			return apperrors.Conflict("imei %s already registered", existing[0].IMEI).With("imei", existing[0].IMEI)
		}

		// One insert per unit so a unique-index race still names the imei.
		units = make([]models.ImeiUnit, 0, len(clean))
		for _, imei := range clean {
			unit := models.ImeiUnit{
				IMEI:      imei,
				ProductID: productID,
				BranchID:  branchID,
				Status:    models.ImeiInStock,
			}
			if err := tx.Create(&unit).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperrors.Conflict("imei %s already registered", imei).With("imei", imei)
				}
				return apperrors.Internal(err, "register imei units")
			}
			units = append(units, unit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("imei units registered",
		zap.Uint("product_id", productID), zap.Uint("branch_id", branchID), zap.Int("count", len(units)))
	return units, nil
}

// Assign marks a unit sold inside tx. It is a compare-and-swap on
// status = in_stock, so a unit can only ever be sold once; a second caller
// gets a conflict naming the IMEI.
func (r *Registry) Assign(tx *gorm.DB, imei string, productID, branchID uint) error {
	res := tx.Model(&models.ImeiUnit{}).
		Where("imei = ? AND product_id = ? AND branch_id = ? AND status = ?", imei, productID, branchID, models.ImeiInStock).
		Updates(map[string]interface{}{
			"status":     models.ImeiSold,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return apperrors.Internal(res.Error, "assign imei")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var unit models.ImeiUnit
	err := tx.Where("imei = ?", imei).Take(&unit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("imei %s is not registered", imei).With("imei", imei)
	}
	if err != nil {
		return apperrors.Internal(err, "load imei unit")
	}
	if unit.ProductID != productID || unit.BranchID != branchID {
		return apperrors.Validation("imei %s does not belong to product %d at branch %d", imei, productID, branchID).
			With("imei", imei)
	}
	r.metrics.StockConflict("imei_unavailable")
	return apperrors.Conflict("imei not available").With("imei", imei).With("status", unit.Status)
}

// Bind links an assigned unit to the sale line that carries it.
func (r *Registry) Bind(tx *gorm.DB, imei string, saleItemID uint) error {
	err := tx.Model(&models.ImeiUnit{}).
		Where("imei = ? AND status = ?", imei, models.ImeiSold).
		Update("sale_item_id", saleItemID).Error
	if err != nil {
		return apperrors.Internal(err, "bind imei to sale line")
	}
	return nil
}
