// Package perorder manages customer reservations paid in advance. A pending
// order holds no stock; conversion commits inventory and produces a sale.
//
//	pending --Convert--> completed
//	pending --Cancel---> cancelled
//
// Both targets are terminal.
package perorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/billing"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdvanceMethod labels the advance when it is carried onto the sale.
const AdvanceMethod = "advance"

type Service struct {
	db      *gorm.DB
	sales   *billing.Service
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(db *gorm.DB, sales *billing.Service, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, sales: sales, log: log, metrics: m}
}

// DueAmount is max(0, subtotal − advance).
func DueAmount(subtotal, advance decimal.Decimal) decimal.Decimal {
	due := subtotal.Sub(advance)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

type ItemInput struct {
	ProductID         *uint
	CustomProductName string
	Quantity          int
	UnitPrice         *decimal.Decimal // nil uses the catalog price
}

type CreateInput struct {
	CustomerID           *uint
	Customer             models.CustomerInfo
	BranchID             uint
	Items                []ItemInput
	AdvancePayment       decimal.Decimal
	ExpectedDeliveryDate *time.Time
	Notes                string
}

// Create records a pending reservation. It deliberately leaves stock and IMEI
// units alone.
func (s *Service) Create(ctx context.Context, actor scope.Actor, in CreateInput) (*models.PerOrder, error) {
	in.Customer.Name = strings.TrimSpace(in.Customer.Name)
	in.Customer.Phone = strings.TrimSpace(in.Customer.Phone)
	if in.CustomerID == nil && in.Customer.Name == "" {
		return nil, apperrors.Validation("customer name is required")
	}
	if len(in.Items) == 0 {
		return nil, apperrors.Validation("an order needs at least one item")
	}
	if in.AdvancePayment.IsNegative() {
		return nil, apperrors.Validation("advance payment cannot be negative")
	}
	for i, it := range in.Items {
		if it.Quantity < 1 {
			return nil, apperrors.Validation("item %d: quantity must be at least 1", i+1)
		}
		if it.ProductID == nil && strings.TrimSpace(it.CustomProductName) == "" {
			return nil, apperrors.Validation("item %d: choose a product or enter a custom name", i+1)
		}
		if it.ProductID == nil && it.UnitPrice == nil {
			return nil, apperrors.Validation("item %d: custom items need a unit price", i+1)
		}
		if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
			return nil, apperrors.Validation("item %d: unit price cannot be negative", i+1)
		}
	}
	if err := scope.AuthorizeBranchWrite(actor, in.BranchID); err != nil {
		return nil, err
	}

	order := models.PerOrder{
		OrderNumber:          "TMP-" + uuid.NewString(),
		CustomerID:           in.CustomerID,
		Customer:             in.Customer,
		BranchID:             in.BranchID,
		AdvancePayment:       in.AdvancePayment.Round(2),
		Status:               models.PerOrderPending,
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		Notes:                strings.TrimSpace(in.Notes),
		CreatedBy:            actor.UserID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := catalog.ActiveBranch(tx, in.BranchID); err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, it := range in.Items {
			item := models.PerOrderItem{
				ProductID:         it.ProductID,
				CustomProductName: strings.TrimSpace(it.CustomProductName),
				Quantity:          it.Quantity,
			}
			if it.ProductID != nil {
				p, err := catalog.FindProduct(tx, *it.ProductID)
				if err != nil {
					return err
				}
				item.ProductName = p.Name
				item.CustomProductName = ""
				item.UnitPrice = p.BasePrice
			} else {
				item.ProductName = item.CustomProductName
			}
			if it.UnitPrice != nil {
				item.UnitPrice = it.UnitPrice.Round(2)
			}
			item.Subtotal = billing.LineSubtotal(item.Quantity, item.UnitPrice)
			subtotal = subtotal.Add(item.Subtotal)
			order.Items = append(order.Items, item)
		}
		order.Subtotal = subtotal
		order.DueAmount = DueAmount(subtotal, order.AdvancePayment)

		if err := tx.Create(&order).Error; err != nil {
			return apperrors.Internal(err, "create per-order")
		}
		order.OrderNumber = fmt.Sprintf("PO-%06d", order.ID)
		if err := tx.Model(&models.PerOrder{}).Where("id = ?", order.ID).Update("order_number", order.OrderNumber).Error; err != nil {
			return apperrors.Internal(err, "number per-order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PerOrderTransition(models.PerOrderPending)
	s.log.Info("per-order created",
		zap.String("order", order.OrderNumber), zap.Uint("branch_id", order.BranchID),
		zap.String("subtotal", order.Subtotal.StringFixed(2)), zap.String("advance", order.AdvancePayment.StringFixed(2)))
	return &order, nil
}

// UpdateInput carries the editable fields; nil leaves a field unchanged.
// Items cannot be edited.
type UpdateInput struct {
	Notes                *string
	ExpectedDeliveryDate *time.Time
	AdvancePayment       *decimal.Decimal
}

func (s *Service) Update(ctx context.Context, actor scope.Actor, id uint, in UpdateInput) (*models.PerOrder, error) {
	if in.AdvancePayment != nil && in.AdvancePayment.IsNegative() {
		return nil, apperrors.Validation("advance payment cannot be negative")
	}

	var order models.PerOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, id, &order); err != nil {
			return err
		}
		if err := scope.AuthorizeBranchWrite(actor, order.BranchID); err != nil {
			return err
		}
		if order.Status != models.PerOrderPending {
			return notPending(&order)
		}

		updates := map[string]interface{}{}
		if in.Notes != nil {
			order.Notes = strings.TrimSpace(*in.Notes)
			updates["notes"] = order.Notes
		}
		if in.ExpectedDeliveryDate != nil {
			order.ExpectedDeliveryDate = in.ExpectedDeliveryDate
			updates["expected_delivery_date"] = *in.ExpectedDeliveryDate
		}
		if in.AdvancePayment != nil {
			order.AdvancePayment = in.AdvancePayment.Round(2)
			updates["advance_payment"] = order.AdvancePayment
		}
		order.DueAmount = DueAmount(order.Subtotal, order.AdvancePayment)
		updates["due_amount"] = order.DueAmount

		if err := tx.Model(&order).Updates(updates).Error; err != nil {
			return apperrors.Internal(err, "update per-order")
		}
		return tx.Preload("Items").First(&order, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Cancel terminates a pending order. Nothing was deducted at creation, so
// there is no stock to release; a refund only records that the advance went
// back to the customer.
func (s *Service) Cancel(ctx context.Context, actor scope.Actor, id uint, refund bool, reason string) (*models.PerOrder, error) {
	var order models.PerOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrder(tx, id, &order); err != nil {
			return err
		}
		if err := scope.AuthorizeBranchWrite(actor, order.BranchID); err != nil {
			return err
		}

		now := time.Now()
		refunded := decimal.Zero
		if refund {
			refunded = order.AdvancePayment
		}
		res := tx.Model(&models.PerOrder{}).
			Where("id = ? AND status = ?", id, models.PerOrderPending).
			Updates(map[string]interface{}{
				"status":          models.PerOrderCancelled,
				"refunded_amount": refunded,
				"cancel_reason":   strings.TrimSpace(reason),
				"cancelled_at":    now,
			})
		if res.Error != nil {
			return apperrors.Internal(res.Error, "cancel per-order")
		}
		if res.RowsAffected == 0 {
			return notPending(&order)
		}
		return tx.Preload("Items").First(&order, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PerOrderTransition(models.PerOrderCancelled)
	s.log.Info("per-order cancelled",
		zap.String("order", order.OrderNumber), zap.Bool("refund", refund),
		zap.String("refunded", order.RefundedAmount.StringFixed(2)))
	return &order, nil
}

// Assignment picks the IMEI for one unit of a per-order line. A line of a
// unique product with quantity n needs n assignments.
type Assignment struct {
	PerOrderItemID uint
	IMEI           string
}

type ConvertInput struct {
	RemainingPayment decimal.Decimal
	PaymentMethod    string
	Items            []Assignment
}

// ConvertToSale finalizes a pending order. Inventory commitment, the sale and
// the status change share one transaction: on any failure the order stays
// pending and no counter or unit is touched.
func (s *Service) ConvertToSale(ctx context.Context, actor scope.Actor, id uint, in ConvertInput) (*models.Sale, error) {
	if in.RemainingPayment.IsNegative() {
		return nil, apperrors.Validation("remaining payment cannot be negative")
	}

	order, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := scope.AuthorizeBranchWrite(actor, order.BranchID); err != nil {
		return nil, err
	}
	if order.Status != models.PerOrderPending {
		return nil, notPending(order)
	}

	lines, err := s.planLines(ctx, order, in.Items)
	if err != nil {
		return nil, err
	}

	// Payments are checked against the locked row: the advance may have been
	// edited since the order was loaded.
	var sale *models.Sale
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.PerOrder
		if err := lockOrder(tx, id, &locked); err != nil {
			return err
		}
		if locked.Status != models.PerOrderPending {
			return notPending(&locked)
		}
		if locked.AdvancePayment.Add(in.RemainingPayment).GreaterThan(locked.Subtotal) {
			return apperrors.Validation("overpayment").
				With("due_amount", locked.DueAmount.StringFixed(2)).
				With("remaining_payment", in.RemainingPayment.StringFixed(2))
		}
		payments := []billing.PaymentInput{
			{Amount: locked.AdvancePayment, Method: AdvanceMethod},
			{Amount: in.RemainingPayment, Method: in.PaymentMethod},
		}

		res := tx.Model(&models.PerOrder{}).
			Where("id = ? AND status = ? AND advance_payment = ?", id, models.PerOrderPending, locked.AdvancePayment).
			Update("status", models.PerOrderCompleted)
		if res.Error != nil {
			return apperrors.Internal(res.Error, "complete per-order")
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("order changed during conversion").With("order_id", id)
		}

		orderID := locked.ID
		var err error
		sale, err = s.sales.Record(tx, billing.Draft{
			BranchID:   locked.BranchID,
			CustomerID: locked.CustomerID,
			CashierID:  actor.UserID,
			PerOrderID: &orderID,
			Lines:      lines,
			Payments:   payments,
			Notes:      fmt.Sprintf("Converted from %s", locked.OrderNumber),
		})
		if err != nil {
			return err
		}
		if err := tx.Model(&models.PerOrder{}).Where("id = ?", id).Update("sale_id", sale.ID).Error; err != nil {
			return apperrors.Internal(err, "link sale to per-order")
		}
		return nil
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			s.log.Warn("per-order conversion rejected", zap.String("order", order.OrderNumber), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.PerOrderTransition(models.PerOrderCompleted)
	s.metrics.SaleCreated(billing.SourcePerOrder)
	s.log.Info("per-order converted",
		zap.String("order", order.OrderNumber), zap.String("invoice", sale.InvoiceNumber),
		zap.String("paid", sale.PaidAmount.StringFixed(2)), zap.String("status", sale.PaymentStatus))
	return sale, nil
}

// planLines expands order items into sale lines, pairing unique-product lines
// with the caller's IMEI choices. Everything here is validation; nothing is
// written.
func (s *Service) planLines(ctx context.Context, order *models.PerOrder, assignments []Assignment) ([]billing.Line, error) {
	byItem := map[uint][]string{}
	seen := map[string]bool{}
	known := map[uint]bool{}
	for _, it := range order.Items {
		known[it.ID] = true
	}
	for _, a := range assignments {
		if !known[a.PerOrderItemID] {
			return nil, apperrors.Validation("item %d is not part of order %s", a.PerOrderItemID, order.OrderNumber).
				With("per_order_item_id", a.PerOrderItemID)
		}
		if strings.TrimSpace(a.IMEI) == "" {
			continue
		}
		imei, err := inventory.NormalizeIMEI(a.IMEI)
		if err != nil {
			return nil, err
		}
		if seen[imei] {
			return nil, apperrors.Validation("imei %s is assigned twice", imei).With("imei", imei)
		}
		seen[imei] = true
		byItem[a.PerOrderItemID] = append(byItem[a.PerOrderItemID], imei)
	}

	db := s.db.WithContext(ctx)
	var lines []billing.Line
	for _, it := range order.Items {
		imeis := byItem[it.ID]
		if it.ProductID == nil {
			if len(imeis) > 0 {
				return nil, apperrors.Validation("custom item %d cannot carry an imei", it.ID)
			}
			lines = append(lines, billing.Line{ProductName: it.ProductName, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
			continue
		}

		p, err := catalog.FindProduct(db, *it.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.IsUnique() {
			if len(imeis) > 0 {
				return nil, apperrors.Validation("product %s is not tracked by imei", p.SKU).With("per_order_item_id", it.ID)
			}
			lines = append(lines, billing.Line{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
			continue
		}

		if len(imeis) != it.Quantity {
			return nil, apperrors.Validation("item %d needs %d imei(s), got %d", it.ID, it.Quantity, len(imeis)).
				With("per_order_item_id", it.ID).
				With("product_id", p.ID)
		}
		for _, imei := range imeis {
			imei := imei
			lines = append(lines, billing.Line{ProductID: it.ProductID, ProductName: it.ProductName, IMEI: &imei, Quantity: 1, UnitPrice: it.UnitPrice})
		}
	}
	return lines, nil
}

// --- Reads ---

func (s *Service) Get(ctx context.Context, actor scope.Actor, id uint) (*models.PerOrder, error) {
	order, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if err := scope.AuthorizeBranchRead(actor, order.BranchID); err != nil {
		return nil, err
	}
	return order, nil
}

type ListFilter struct {
	BranchID *uint
	Status   string
	Limit    int
}

func (s *Service) List(ctx context.Context, actor scope.Actor, f ListFilter) ([]models.PerOrder, error) {
	sc, err := scope.ReadScope(actor, f.BranchID)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Preload("Items").Order("id DESC")
	if !sc.All {
		q = q.Where("branch_id = ?", sc.BranchID)
	}
	switch f.Status {
	case "":
	case models.PerOrderPending, models.PerOrderCompleted, models.PerOrderCancelled:
		q = q.Where("status = ?", f.Status)
	default:
		return nil, apperrors.Validation("unknown status %q", f.Status)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var orders []models.PerOrder
	if err := q.Limit(f.Limit).Find(&orders).Error; err != nil {
		return nil, apperrors.Internal(err, "list per-orders")
	}
	return orders, nil
}

func (s *Service) load(db *gorm.DB, id uint) (*models.PerOrder, error) {
	var order models.PerOrder
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("per-order %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "load per-order")
	}
	return &order, nil
}

func lockOrder(tx *gorm.DB, id uint, order *models.PerOrder) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("per-order %d not found", id)
	}
	if err != nil {
		return apperrors.Internal(err, "lock per-order")
	}
	return nil
}

func notPending(order *models.PerOrder) error {
	return apperrors.Conflict("order not pending").
		With("order_id", order.ID).
		With("status", order.Status)
}
