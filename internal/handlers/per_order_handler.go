package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/perorder"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type PerOrderItemRequest struct {
	ProductID         *uint            `json:"product_id"`
	CustomProductName string           `json:"custom_product_name"`
	Quantity          int              `json:"quantity"`
	UnitPrice         *decimal.Decimal `json:"unit_price"`
}

type CreatePerOrderRequest struct {
	CustomerID           *uint                 `json:"customer_id"`
	CustomerName         string                `json:"customer_name"`
	CustomerPhone        string                `json:"customer_phone"`
	CustomerEmail        string                `json:"customer_email"`
	CustomerAddress      string                `json:"customer_address"`
	BranchID             uint                  `json:"branch_id"`
	Items                []PerOrderItemRequest `json:"items" binding:"required"`
	AdvancePayment       decimal.Decimal       `json:"advance_payment"`
	ExpectedDeliveryDate string                `json:"expected_delivery_date"`
	Notes                string                `json:"notes"`
}

// --- POST: /api/per-orders ---
func (h *Handler) CreatePerOrder(c *gin.Context) {
	var req CreatePerOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	delivery, err := deliveryDate(req.ExpectedDeliveryDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	actor := middleware.CurrentActor(c)
	branchID := req.BranchID
	if branchID == 0 && actor.BranchID != nil {
		branchID = *actor.BranchID
	}

	in := perorder.CreateInput{
		CustomerID: req.CustomerID,
		Customer: models.CustomerInfo{
			Name:    req.CustomerName,
			Phone:   req.CustomerPhone,
			Email:   req.CustomerEmail,
			Address: req.CustomerAddress,
		},
		BranchID:             branchID,
		AdvancePayment:       req.AdvancePayment,
		ExpectedDeliveryDate: delivery,
		Notes:                req.Notes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, perorder.ItemInput{
			ProductID:         it.ProductID,
			CustomProductName: it.CustomProductName,
			Quantity:          it.Quantity,
			UnitPrice:         it.UnitPrice,
		})
	}

	order, err := h.Orders.Create(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type UpdatePerOrderRequest struct {
	Notes                *string          `json:"notes"`
	ExpectedDeliveryDate *string          `json:"expected_delivery_date"`
	AdvancePayment       *decimal.Decimal `json:"advance_payment"`
}

// --- PATCH: /api/per-orders/:id ---
func (h *Handler) UpdatePerOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req UpdatePerOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	in := perorder.UpdateInput{Notes: req.Notes, AdvancePayment: req.AdvancePayment}
	if req.ExpectedDeliveryDate != nil {
		if in.ExpectedDeliveryDate, err = deliveryDate(*req.ExpectedDeliveryDate); err != nil {
			h.fail(c, err)
			return
		}
	}

	order, err := h.Orders.Update(c.Request.Context(), middleware.CurrentActor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type CancelPerOrderRequest struct {
	Refund bool   `json:"refund"`
	Reason string `json:"reason"`
}

// --- POST: /api/per-orders/:id/cancel ---
func (h *Handler) CancelPerOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req CancelPerOrderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, err)
			return
		}
	}

	order, err := h.Orders.Cancel(c.Request.Context(), middleware.CurrentActor(c), id, req.Refund, req.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type ConvertItemRequest struct {
	PerOrderItemID uint   `json:"perOrderItemId" binding:"required"`
	IMEI           string `json:"imei"`
}

type ConvertPerOrderRequest struct {
	RemainingPayment decimal.Decimal      `json:"remainingPayment"`
	PaymentMethod    string               `json:"paymentMethod"`
	Items            []ConvertItemRequest `json:"items" binding:"dive"`
}

// --- POST: /api/per-orders/:id/convert-to-sale ---
func (h *Handler) ConvertPerOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req ConvertPerOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	in := perorder.ConvertInput{RemainingPayment: req.RemainingPayment, PaymentMethod: req.PaymentMethod}
	for _, it := range req.Items {
		in.Items = append(in.Items, perorder.Assignment{PerOrderItemID: it.PerOrderItemID, IMEI: it.IMEI})
	}

	sale, err := h.Orders.ConvertToSale(c.Request.Context(), middleware.CurrentActor(c), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// --- GET: /api/per-orders?status=&branchId= ---
func (h *Handler) ListPerOrders(c *gin.Context) {
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}

	orders, err := h.Orders.List(c.Request.Context(), middleware.CurrentActor(c), perorder.ListFilter{
		BranchID: branchID,
		Status:   c.Query("status"),
		Limit:    limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetPerOrder(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	order, err := h.Orders.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deliveryDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, apperrors.Validation("expected_delivery_date must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}
