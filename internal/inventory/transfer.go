package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Transfers moves bulk quantity between branches on top of the Ledger.
type Transfers struct {
	db      *gorm.DB
	ledger  *Ledger
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewTransfers(db *gorm.DB, ledger *Ledger, log *zap.Logger, m *metrics.Metrics) *Transfers {
	return &Transfers{db: db, ledger: ledger, log: log, metrics: m}
}

type TransferInput struct {
	FromBranchID uint
	ToBranchID   uint
	ProductID    uint
	Quantity     int
	Notes        string
}

// Transfer debits the source and credits the destination in one transaction.
// The caller must be scoped to the source branch.
func (t *Transfers) Transfer(ctx context.Context, actor scope.Actor, in TransferInput) (*models.StockTransfer, error) {
	switch {
	case in.FromBranchID == 0 || in.ToBranchID == 0 || in.ProductID == 0:
		return nil, apperrors.Validation("fromBranchId, toBranchId and productId are required")
	case in.FromBranchID == in.ToBranchID:
		return nil, apperrors.Validation("source and destination branch must differ")
	case in.Quantity < 1:
		return nil, apperrors.Validation("quantity must be at least 1").With("quantity", in.Quantity)
	}
	if err := scope.AuthorizeBranchWrite(actor, in.FromBranchID); err != nil {
		return nil, err
	}

	transfer := models.StockTransfer{
		FromBranchID: in.FromBranchID,
		ToBranchID:   in.ToBranchID,
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedBy:    actor.UserID,
	}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := catalog.FindProduct(tx, in.ProductID)
		if err != nil {
			return err
		}
		if product.IsUnique() {
			return apperrors.Validation("product %d is tracked by IMEI and cannot be transferred by quantity", in.ProductID)
		}
		if _, err := catalog.ActiveBranch(tx, in.FromBranchID); err != nil {
			return err
		}
		if _, err := catalog.ActiveBranch(tx, in.ToBranchID); err != nil {
			return err
		}

		if err := tx.Create(&transfer).Error; err != nil {
			return apperrors.Internal(err, "create transfer")
		}
		ref := fmt.Sprintf("TRF-%06d", transfer.ID)
		if err := t.ledger.Deduct(tx, in.ProductID, in.FromBranchID, in.Quantity, models.MovementTransferOut, ref); err != nil {
			return err
		}
		return t.ledger.Credit(tx, in.ProductID, in.ToBranchID, in.Quantity, models.MovementTransferIn, ref)
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			t.log.Warn("stock transfer rejected", zap.Uint("product_id", in.ProductID),
				zap.Uint("from", in.FromBranchID), zap.Int("quantity", in.Quantity), zap.Error(err))
		}
		return nil, err
	}

	t.metrics.TransferCommitted()
	t.log.Info("stock transferred",
		zap.Uint("transfer_id", transfer.ID), zap.Uint("product_id", in.ProductID),
		zap.Uint("from", in.FromBranchID), zap.Uint("to", in.ToBranchID), zap.Int("quantity", in.Quantity))
	return &transfer, nil
}

// List returns transfers touching any branch in the actor's read scope.
func (t *Transfers) List(ctx context.Context, actor scope.Actor, branchID *uint) ([]models.StockTransfer, error) {
	s, err := scope.ReadScope(actor, branchID)
	if err != nil {
		return nil, err
	}

	q := t.db.WithContext(ctx).Order("id DESC").Limit(200)
	if !s.All {
		q = q.Where("from_branch_id = ? OR to_branch_id = ?", s.BranchID, s.BranchID)
	}

	var out []models.StockTransfer
	if err := q.Find(&out).Error; err != nil {
		return nil, apperrors.Internal(err, "list transfers")
	}
	return out, nil
}
