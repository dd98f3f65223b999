package handlers

import (
	"net/http"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
)

// --- GET: /api/branches ---
func (h *Handler) ListBranches(c *gin.Context) {
	branches, err := h.Catalog.ListBranches(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, branches)
}

type CreateBranchRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

// --- POST: /api/branches (admin) ---
func (h *Handler) CreateBranch(c *gin.Context) {
	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	b, err := h.Catalog.CreateBranch(c.Request.Context(), middleware.CurrentActor(c), req.Name, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

type UpdateBranchRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

// --- PATCH: /api/branches/:id (admin) ---
func (h *Handler) UpdateBranch(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	b, err := h.Catalog.UpdateBranch(c.Request.Context(), middleware.CurrentActor(c), id, catalog.BranchPatch{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
