package handlers

import (
	"net/http"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/billing"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type SaleItemRequest struct {
	ProductID uint             `json:"productId" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	IMEI      *string          `json:"imei"`
}

type CreateSaleRequest struct {
	BranchID       uint              `json:"branchId"`
	Items          []SaleItemRequest `json:"items" binding:"required,dive"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	TaxRate        decimal.Decimal   `json:"taxRate"`
	PaidAmount     decimal.Decimal   `json:"paidAmount"`
	PaymentMethod  string            `json:"paymentMethod"`
	CustomerID     *uint             `json:"customerId"`
	Notes          string            `json:"notes"`
}

// --- POST: /api/billing/sales ---
func (h *Handler) CreateSale(c *gin.Context) {
	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	in := billing.CreateSaleInput{
		BranchID:       req.BranchID,
		DiscountAmount: req.DiscountAmount,
		TaxRate:        req.TaxRate,
		PaidAmount:     req.PaidAmount,
		PaymentMethod:  req.PaymentMethod,
		CustomerID:     req.CustomerID,
		Notes:          req.Notes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, billing.SaleItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			IMEI:      it.IMEI,
		})
	}

	sale, err := h.Sales.CreateSale(c.Request.Context(), middleware.CurrentActor(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

type AddPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
}

// --- POST: /api/billing/sales/:id/payments ---
func (h *Handler) AddPayment(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	sale, err := h.Sales.AddPayment(c.Request.Context(), middleware.CurrentActor(c), id, req.Amount, req.PaymentMethod)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// --- GET: /api/billing/sales?branchId=&paymentStatus=&from=&to= ---
func (h *Handler) ListSales(c *gin.Context) {
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}
	from, err := optionalDate(c, "from", false)
	if err != nil {
		h.fail(c, err)
		return
	}
	to, err := optionalDate(c, "to", true)
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}

	sales, err := h.Sales.ListSales(c.Request.Context(), middleware.CurrentActor(c), billing.SaleFilter{
		BranchID:      branchID,
		PaymentStatus: c.Query("paymentStatus"),
		From:          from,
		To:            to,
		Limit:         limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) GetSale(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	sale, err := h.Sales.GetSale(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
