package handlers

import (
	"errors"
	"net/http"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/ai"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AskRequest struct {
	Message string `json:"message" binding:"required"`
}

// --- POST: /api/ask (admin) ---
func (h *Handler) AskAI(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	response, err := h.Agent.Ask(c.Request.Context(), middleware.CurrentActor(c), req.Message)
	if errors.Is(err, ai.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "unavailable"})
		return
	}
	if err != nil {
		h.Log.Error("assistant failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant is unavailable right now", "code": "upstream"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": response})
}
