package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
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

const (
	SourcePOS      = "pos"
	SourcePerOrder = "per_order"

	DefaultPaymentMethod = "cash"
)

// Service is the sale / invoice ledger.
type Service struct {
	db      *gorm.DB
	stock   *inventory.Ledger
	units   *inventory.Registry
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(db *gorm.DB, stock *inventory.Ledger, units *inventory.Registry, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{db: db, stock: stock, units: units, log: log, metrics: m}
}

// Line is one priced invoice line. ProductID nil means a custom line with no
// inventory behind it; IMEI is set for unique products (quantity 1).
type Line struct {
	ProductID   *uint
	ProductName string
	IMEI        *string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type PaymentInput struct {
	Amount decimal.Decimal
	Method string
}

// Draft is everything needed to finalize a sale.
type Draft struct {
	BranchID       uint
	CustomerID     *uint
	CashierID      uint
	PerOrderID     *uint
	Lines          []Line
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	Payments       []PaymentInput
	Notes          string
}

// Record finalizes a sale inside tx: it commits inventory for every line
// (bulk deduction or IMEI assignment), writes the invoice with its lines and
// payments, and numbers it. Any failure leaves nothing behind once the caller
// rolls tx back. Both the POS checkout and per-order conversion go through
// here.
func (s *Service) Record(tx *gorm.DB, d Draft) (*models.Sale, error) {
	if len(d.Lines) == 0 {
		return nil, apperrors.Validation("a sale needs at least one item")
	}
	if _, err := catalog.ActiveBranch(tx, d.BranchID); err != nil {
		return nil, err
	}

	products := make([]*models.Product, len(d.Lines))
	seenIMEI := map[string]bool{}
	for i := range d.Lines {
		l := &d.Lines[i]
		if l.Quantity < 1 {
			return nil, apperrors.Validation("item %d: quantity must be at least 1", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, apperrors.Validation("item %d: unit price cannot be negative", i+1)
		}
		l.UnitPrice = l.UnitPrice.Round(2)

		if l.ProductID == nil {
			if strings.TrimSpace(l.ProductName) == "" {
				return nil, apperrors.Validation("item %d: custom items need a name", i+1)
			}
			if l.IMEI != nil {
				return nil, apperrors.Validation("item %d: custom items cannot carry an imei", i+1)
			}
			continue
		}

		p, err := catalog.FindProduct(tx, *l.ProductID)
		if err != nil {
			return nil, err
		}
		products[i] = p
		if l.ProductName == "" {
			l.ProductName = p.Name
		}
		if p.IsUnique() {
			if l.IMEI == nil || *l.IMEI == "" {
				return nil, apperrors.Validation("item %d: product %s requires an imei", i+1, p.SKU).
					With("product_id", p.ID)
			}
			if l.Quantity != 1 {
				return nil, apperrors.Validation("item %d: one imei per line, quantity must be 1", i+1)
			}
			if seenIMEI[*l.IMEI] {
				return nil, apperrors.Validation("imei %s appears twice", *l.IMEI).With("imei", *l.IMEI)
			}
			seenIMEI[*l.IMEI] = true
		} else if l.IMEI != nil {
			return nil, apperrors.Validation("item %d: product %s is not tracked by imei", i+1, p.SKU)
		}
	}

	totals, err := ComputeTotals(d.Lines, d.DiscountAmount, d.TaxRate)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	var payments []models.Payment
	for _, p := range d.Payments {
		if p.Amount.IsNegative() {
			return nil, apperrors.Validation("payment amount cannot be negative")
		}
		if p.Amount.IsZero() {
			continue
		}
		method := strings.TrimSpace(p.Method)
		if method == "" {
			method = DefaultPaymentMethod
		}
		amount := p.Amount.Round(2)
		paid = paid.Add(amount)
		payments = append(payments, models.Payment{Amount: amount, Method: method})
	}
	if paid.GreaterThan(totals.Total) {
		return nil, apperrors.Validation("overpayment").
			With("total_amount", totals.Total.StringFixed(2)).
			With("paid_amount", paid.StringFixed(2))
	}

	sale := models.Sale{
		InvoiceNumber:  "TMP-" + uuid.NewString(),
		BranchID:       d.BranchID,
		CustomerID:     d.CustomerID,
		PerOrderID:     d.PerOrderID,
		CashierID:      d.CashierID,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.Discount,
		TaxRate:        d.TaxRate,
		TaxAmount:      totals.TaxAmount,
		TotalAmount:    totals.Total,
		PaidAmount:     paid,
		DueAmount:      totals.Total.Sub(paid),
		PaymentStatus:  PaymentStatusFor(totals.Total, paid),
		Notes:          strings.TrimSpace(d.Notes),
	}
	if err := tx.Omit(clause.Associations).Create(&sale).Error; err != nil {
		return nil, apperrors.Internal(err, "create sale")
	}
	sale.InvoiceNumber = fmt.Sprintf("INV-%06d", sale.ID)
	if err := tx.Model(&sale).Update("invoice_number", sale.InvoiceNumber).Error; err != nil {
		return nil, apperrors.Internal(err, "number sale")
	}

	// Commit inventory before writing lines so a taken IMEI is reported by
	// the registry, not by the sale_items unique index.
	for i, l := range d.Lines {
		p := products[i]
		if p == nil {
			continue
		}
		if p.IsUnique() {
			if err := s.units.Assign(tx, *l.IMEI, p.ID, d.BranchID); err != nil {
				return nil, err
			}
			continue
		}
		if err := s.stock.Deduct(tx, p.ID, d.BranchID, l.Quantity, models.MovementSale, sale.InvoiceNumber); err != nil {
			return nil, err
		}
	}

	items := make([]models.SaleItem, len(d.Lines))
	for i, l := range d.Lines {
		items[i] = models.SaleItem{
			SaleID:      sale.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			IMEI:        l.IMEI,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Subtotal:    LineSubtotal(l.Quantity, l.UnitPrice),
		}
	}
	if err := tx.Create(&items).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Conflict("imei not available")
		}
		return nil, apperrors.Internal(err, "create sale items")
	}
	for _, item := range items {
		if item.IMEI != nil {
			if err := s.units.Bind(tx, *item.IMEI, item.ID); err != nil {
				return nil, err
			}
		}
	}

	for i := range payments {
		payments[i].SaleID = sale.ID
	}
	if len(payments) > 0 {
		if err := tx.Create(&payments).Error; err != nil {
			return nil, apperrors.Internal(err, "record payments")
		}
	}

	sale.Items = items
	sale.Payments = payments
	return &sale, nil
}

// --- POS checkout ---

type SaleItemInput struct {
	ProductID uint
	Quantity  int
	UnitPrice *decimal.Decimal // nil uses the catalog price
	IMEI      *string
}

type CreateSaleInput struct {
	BranchID       uint // 0 uses the actor's branch
	Items          []SaleItemInput
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	PaidAmount     decimal.Decimal
	PaymentMethod  string
	CustomerID     *uint
	Notes          string
}

func (s *Service) CreateSale(ctx context.Context, actor scope.Actor, in CreateSaleInput) (*models.Sale, error) {
	if in.BranchID == 0 {
		in.BranchID = scope.ScopeFor(actor).BranchID
	}
	if len(in.Items) == 0 {
		return nil, apperrors.Validation("a sale needs at least one item")
	}
	if in.PaidAmount.IsNegative() {
		return nil, apperrors.Validation("paid amount cannot be negative")
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			return nil, apperrors.Validation("item %d: productId is required", i+1)
		}
		if it.IMEI != nil {
			imei, err := inventory.NormalizeIMEI(*it.IMEI)
			if err != nil {
				return nil, err
			}
			in.Items[i].IMEI = &imei
		}
	}
	if err := scope.AuthorizeBranchWrite(actor, in.BranchID); err != nil {
		return nil, err
	}

	var sale *models.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := make([]Line, len(in.Items))
		for i, it := range in.Items {
			productID := it.ProductID
			lines[i] = Line{ProductID: &productID, IMEI: it.IMEI, Quantity: it.Quantity}
			if it.UnitPrice != nil {
				lines[i].UnitPrice = *it.UnitPrice
				continue
			}
			p, err := catalog.FindProduct(tx, productID)
			if err != nil {
				return err
			}
			lines[i].UnitPrice = p.BasePrice
		}

		var err error
		sale, err = s.Record(tx, Draft{
			BranchID:       in.BranchID,
			CustomerID:     in.CustomerID,
			CashierID:      actor.UserID,
			Lines:          lines,
			DiscountAmount: in.DiscountAmount,
			TaxRate:        in.TaxRate,
			Payments:       []PaymentInput{{Amount: in.PaidAmount, Method: in.PaymentMethod}},
			Notes:          in.Notes,
		})
		return err
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			s.log.Warn("sale rejected", zap.Uint("branch_id", in.BranchID), zap.Error(err))
		}
		return nil, err
	}

	s.metrics.SaleCreated(SourcePOS)
	s.log.Info("sale created",
		zap.String("invoice", sale.InvoiceNumber), zap.Uint("branch_id", sale.BranchID),
		zap.String("total", sale.TotalAmount.StringFixed(2)), zap.String("status", sale.PaymentStatus))
	return sale, nil
}

// AddPayment records an instalment. The sale row is locked for the duration
// so concurrent payments cannot jointly overpay.
func (s *Service) AddPayment(ctx context.Context, actor scope.Actor, saleID uint, amount decimal.Decimal, method string) (*models.Sale, error) {
	if !amount.IsPositive() {
		return nil, apperrors.Validation("payment amount must be greater than zero")
	}
	amount = amount.Round(2)
	method = strings.TrimSpace(method)
	if method == "" {
		method = DefaultPaymentMethod
	}

	var sale models.Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("sale %d not found", saleID)
			}
			return apperrors.Internal(err, "lock sale")
		}
		if err := scope.AuthorizeBranchWrite(actor, sale.BranchID); err != nil {
			return err
		}

		paid := sale.PaidAmount.Add(amount)
		if paid.GreaterThan(sale.TotalAmount) {
			return apperrors.Validation("overpayment").
				With("due_amount", sale.DueAmount.StringFixed(2)).
				With("amount", amount.StringFixed(2))
		}

		payment := models.Payment{SaleID: sale.ID, Amount: amount, Method: method}
		if err := tx.Create(&payment).Error; err != nil {
			return apperrors.Internal(err, "record payment")
		}

		sale.PaidAmount = paid
		sale.DueAmount = sale.TotalAmount.Sub(paid)
		sale.PaymentStatus = PaymentStatusFor(sale.TotalAmount, paid)
		err := tx.Model(&sale).Updates(map[string]interface{}{
			"paid_amount":    sale.PaidAmount,
			"due_amount":     sale.DueAmount,
			"payment_status": sale.PaymentStatus,
		}).Error
		if err != nil {
			return apperrors.Internal(err, "update sale balance")
		}
		return tx.Preload("Items").Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).First(&sale, sale.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("invoice", sale.InvoiceNumber), zap.String("amount", amount.StringFixed(2)),
		zap.String("due", sale.DueAmount.StringFixed(2)))
	return &sale, nil
}

// --- Reads ---

func (s *Service) GetSale(ctx context.Context, actor scope.Actor, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("sale %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "load sale")
	}
	if err := scope.AuthorizeBranchRead(actor, sale.BranchID); err != nil {
		return nil, err
	}
	return &sale, nil
}

type SaleFilter struct {
	BranchID      *uint
	PaymentStatus string
	From          *time.Time
	To            *time.Time
	Limit         int
}

func (s *Service) ListSales(ctx context.Context, actor scope.Actor, f SaleFilter) ([]models.Sale, error) {
	sc, err := scope.ReadScope(actor, f.BranchID)
	if err != nil {
		return nil, err
	}

	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if !sc.All {
		q = q.Where("branch_id = ?", sc.BranchID)
	}
	switch f.PaymentStatus {
	case "":
	case models.PaymentPaid, models.PaymentPartial, models.PaymentDue:
		q = q.Where("payment_status = ?", f.PaymentStatus)
	default:
		return nil, apperrors.Validation("unknown payment status %q", f.PaymentStatus)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var sales []models.Sale
	if err := q.Limit(f.Limit).Find(&sales).Error; err != nil {
		return nil, apperrors.Internal(err, "list sales")
	}
	return sales, nil
}
