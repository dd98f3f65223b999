package handlers

import (
	"net/http"
	"strings"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// --- GET: /api/inventory/stock?branchId= ---
func (h *Handler) GetStock(c *gin.Context) {
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := scope.ReadScope(middleware.CurrentActor(c), branchID)
	if err != nil {
		h.fail(c, err)
		return
	}

	rows, err := h.Stock.GetStock(c.Request.Context(), s)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scope": s.String(), "items": rows})
}

type SetQuantityRequest struct {
	ProductID uint `json:"productId" binding:"required"`
	BranchID  uint `json:"branchId" binding:"required"`
	Quantity  *int `json:"quantity" binding:"required"`
}

// --- PUT: /api/inventory/stock-quantity ---
func (h *Handler) SetStockQuantity(c *gin.Context) {
	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	row, err := h.Stock.SetQuantity(c.Request.Context(), middleware.CurrentActor(c), req.ProductID, req.BranchID, *req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// --- GET: /api/inventory/products ---
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.Catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.Catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type CreateProductRequest struct {
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Brand         string          `json:"brand"`
	Category      string          `json:"category"`
	BasePrice     decimal.Decimal `json:"base_price"`
	InventoryType string          `json:"inventory_type"`
}

// --- POST: /api/inventory/products (admin) ---
func (h *Handler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	p, err := h.Catalog.CreateProduct(c.Request.Context(), middleware.CurrentActor(c), catalog.ProductInput{
		SKU:           req.SKU,
		Name:          req.Name,
		Brand:         req.Brand,
		Category:      req.Category,
		BasePrice:     req.BasePrice,
		InventoryType: req.InventoryType,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// --- GET: /api/inventory/barcode/generate/:productId ---
func (h *Handler) GenerateBarcode(c *gin.Context) {
	id, err := idParam(c, "productId")
	if err != nil {
		h.fail(c, err)
		return
	}
	p, err := h.Units.GenerateBarcode(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"productId": p.ID, "barcode": p.Barcode, "product": p})
}

// --- GET: /api/inventory/barcode/pdf/:barcode ---
// Label rendering lives outside this service; the route only confirms the
// code is known.
func (h *Handler) BarcodePDF(c *gin.Context) {
	p, err := h.Units.ProductByBarcode(c.Request.Context(), strings.TrimSpace(c.Param("barcode")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusNotImplemented, gin.H{
		"error":   "barcode label rendering is not available on this server",
		"code":    "not_implemented",
		"details": gin.H{"productId": p.ID, "barcode": p.Barcode},
	})
}

// --- GET: /api/inventory/imei?productId=&branchId=&status= ---
func (h *Handler) ListIMEIs(c *gin.Context) {
	productID, err := optionalUint(c, "productId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if productID == nil {
		h.fail(c, apperrors.Validation("productId is required"))
		return
	}
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}

	units, err := h.Units.ListUnits(c.Request.Context(), middleware.CurrentActor(c), inventory.UnitFilter{
		ProductID: *productID,
		BranchID:  branchID,
		Status:    c.Query("status"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, units)
}

type RegisterIMEIRequest struct {
	ProductID uint     `json:"productId" binding:"required"`
	BranchID  uint     `json:"branchId" binding:"required"`
	IMEIs     []string `json:"imeis" binding:"required"`
}

// --- POST: /api/inventory/imei ---
func (h *Handler) RegisterIMEIs(c *gin.Context) {
	var req RegisterIMEIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	units, err := h.Units.Register(c.Request.Context(), middleware.CurrentActor(c), req.ProductID, req.BranchID, req.IMEIs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, units)
}

type TransferRequest struct {
	FromBranchID uint   `json:"fromBranchId" binding:"required"`
	ToBranchID   uint   `json:"toBranchId" binding:"required"`
	ProductID    uint   `json:"productId" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	Notes        string `json:"notes"`
}

// --- POST: /api/inventory/transfers ---
func (h *Handler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tr, err := h.Transfers.Transfer(c.Request.Context(), middleware.CurrentActor(c), inventory.TransferInput{
		FromBranchID: req.FromBranchID,
		ToBranchID:   req.ToBranchID,
		ProductID:    req.ProductID,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tr)
}

// --- GET: /api/inventory/transfers?branchId= ---
func (h *Handler) ListTransfers(c *gin.Context) {
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}
	out, err := h.Transfers.List(c.Request.Context(), middleware.CurrentActor(c), branchID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- GET: /api/inventory/movements?branchId=&productId=&limit= ---
func (h *Handler) ListMovements(c *gin.Context) {
	branchID, err := optionalUint(c, "branchId")
	if err != nil {
		h.fail(c, err)
		return
	}
	productID, err := optionalUint(c, "productId")
	if err != nil {
		h.fail(c, err)
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		h.fail(c, err)
		return
	}

	out, err := h.Stock.ListMovements(c.Request.Context(), middleware.CurrentActor(c), inventory.MovementFilter{
		BranchID:  branchID,
		ProductID: productID,
		Limit:     limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
