// Package catalog owns products and branches: the reference data every
// ledger checks before it mutates anything.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/cache"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	cache cache.Catalog
	log   *zap.Logger
}

func New(db *gorm.DB, c cache.Catalog, log *zap.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{db: db, cache: c, log: log}
}

// FindProduct loads a product inside the caller's transaction.
func FindProduct(tx *gorm.DB, id uint) (*models.Product, error) {
	var p models.Product
	if err := tx.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product %d not found", id).With("product_id", id)
		}
		return nil, apperrors.Internal(err, "load product")
	}
	return &p, nil
}

// ActiveBranch loads a branch and rejects deactivated ones.
func ActiveBranch(tx *gorm.DB, id uint) (*models.Branch, error) {
	var b models.Branch
	if err := tx.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("branch %d not found", id).With("branch_id", id)
		}
		return nil, apperrors.Internal(err, "load branch")
	}
	if !b.IsActive {
		return nil, apperrors.Validation("branch inactive").With("branch_id", id)
	}
	return &b, nil
}

// --- Products ---

type ProductInput struct {
	SKU           string
	Name          string
	Brand         string
	Category      string
	BasePrice     decimal.Decimal
	InventoryType string
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	if products, ok := s.cache.Products(ctx); ok {
		return products, nil
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		return nil, apperrors.Internal(err, "list products")
	}
	s.cache.SetProducts(ctx, products)
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return FindProduct(s.db.WithContext(ctx), id)
}

func (s *Service) CreateProduct(ctx context.Context, actor scope.Actor, in ProductInput) (*models.Product, error) {
	if err := scope.RequireAdmin(actor); err != nil {
		return nil, err
	}

	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || in.Name == "" {
		return nil, apperrors.Validation("sku and name are required")
	}
	if in.BasePrice.IsNegative() {
		return nil, apperrors.Validation("base price cannot be negative")
	}
	if in.InventoryType == "" {
		in.InventoryType = models.InventoryBulk
	}
	if in.InventoryType != models.InventoryBulk && in.InventoryType != models.InventoryUnique {
		return nil, apperrors.Validation("inventory type must be %q or %q", models.InventoryBulk, models.InventoryUnique)
	}

	product := models.Product{
		SKU:           in.SKU,
		Name:          in.Name,
		Brand:         strings.TrimSpace(in.Brand),
		Category:      strings.TrimSpace(in.Category),
		BasePrice:     in.BasePrice.Round(2),
		InventoryType: in.InventoryType,
	}
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("sku %s already exists", in.SKU).With("sku", in.SKU)
		}
		return nil, apperrors.Internal(err, "create product")
	}

	s.cache.InvalidateProducts(ctx)
	s.log.Info("product created", zap.Uint("product_id", product.ID), zap.String("sku", product.SKU))
	return &product, nil
}

// --- Branches ---

type BranchPatch struct {
	Name     *string
	IsActive *bool
}

// ListBranches returns every branch to admins and only the bound branch to
// everyone else.
func (s *Service) ListBranches(ctx context.Context, actor scope.Actor) ([]models.Branch, error) {
	q := s.db.WithContext(ctx).Order("name")
	if !actor.IsAdmin() {
		sc := scope.ScopeFor(actor)
		if sc.BranchID == 0 {
			return []models.Branch{}, nil
		}
		q = q.Where("id = ?", sc.BranchID)
	}

	var branches []models.Branch
	if err := q.Find(&branches).Error; err != nil {
		return nil, apperrors.Internal(err, "list branches")
	}
	return branches, nil
}

func (s *Service) CreateBranch(ctx context.Context, actor scope.Actor, name, code string) (*models.Branch, error) {
	if err := scope.RequireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	code = strings.ToUpper(strings.TrimSpace(code))
	if name == "" || code == "" {
		return nil, apperrors.Validation("branch name and code are required")
	}

	branch := models.Branch{Name: name, Code: code, IsActive: true}
	if err := s.db.WithContext(ctx).Create(&branch).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("branch code %s already exists", code).With("code", code)
		}
		return nil, apperrors.Internal(err, "create branch")
	}
	s.log.Info("branch created", zap.Uint("branch_id", branch.ID), zap.String("code", code))
	return &branch, nil
}

// UpdateBranch renames or (de)activates a branch. Branches are never deleted
// because stock, units and invoices keep pointing at them.
func (s *Service) UpdateBranch(ctx context.Context, actor scope.Actor, id uint, patch BranchPatch) (*models.Branch, error) {
	if err := scope.RequireAdmin(actor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.Validation("branch name cannot be empty")
		}
		updates["name"] = name
	}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}

	var branch models.Branch
	db := s.db.WithContext(ctx)
	if err := db.First(&branch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("branch %d not found", id)
		}
		return nil, apperrors.Internal(err, "load branch")
	}
	if len(updates) == 0 {
		return &branch, nil
	}
	if err := db.Model(&branch).Updates(updates).Error; err != nil {
		return nil, apperrors.Internal(err, "update branch")
	}
	if err := db.First(&branch, id).Error; err != nil {
		return nil, apperrors.Internal(err, "reload branch")
	}
	return &branch, nil
}
