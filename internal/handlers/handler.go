package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/ai"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/auth"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/billing"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/cache"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/perorder"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler holds the services behind the JSON API.
type Handler struct {
	DB        *gorm.DB
	Tokens    *auth.Tokens
	Catalog   *catalog.Service
	Stock     *inventory.Ledger
	Units     *inventory.Registry
	Transfers *inventory.Transfers
	Sales     *billing.Service
	Orders    *perorder.Service
	Agent     *ai.Agent
	Log       *zap.Logger

	AllowRegistration bool
}

// New wires every service over one database handle.
func New(db *gorm.DB, tokens *auth.Tokens, c cache.Catalog, m *metrics.Metrics, aiCfg config.AI, log *zap.Logger) *Handler {
	stock := inventory.NewLedger(db, log, m)
	units := inventory.NewRegistry(db, c, log, m)
	sales := billing.New(db, stock, units, log, m)
	orders := perorder.New(db, sales, log, m)
	return &Handler{
		DB:        db,
		Tokens:    tokens,
		Catalog:   catalog.New(db, c, log),
		Stock:     stock,
		Units:     units,
		Transfers: inventory.NewTransfers(db, stock, log, m),
		Sales:     sales,
		Orders:    orders,
		Agent:     ai.New(aiCfg, db, stock, orders, log),
		Log:       log,
	}
}

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindValidation:    http.StatusBadRequest,
	apperrors.KindAuthorization: http.StatusForbidden,
	apperrors.KindNotFound:      http.StatusNotFound,
	apperrors.KindConflict:      http.StatusConflict,
}

// fail writes err as {"error", "code", "details"}. Internal errors are logged
// and replaced by a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		body := gin.H{"error": appErr.Message, "code": appErr.Kind}
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
		c.JSON(statusByKind[appErr.Kind], body)
		return
	}

	_ = c.Error(err)
	h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": apperrors.KindInternal})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid input",
		"code":  apperrors.KindValidation,
		"details": gin.H{
			"reason": err.Error(),
		},
	})
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("%s must be a positive integer", name)
	}
	return uint(id), nil
}

// optionalUint reads a numeric query parameter. Empty and "all" mean unset.
func optionalUint(c *gin.Context, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" || raw == "all" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return nil, apperrors.Validation("%s must be a positive integer", name)
	}
	id := uint(v)
	return &id, nil
}

// optionalDate accepts YYYY-MM-DD or RFC 3339. With endOfDay a bare date
// becomes the start of the following day, for use as an exclusive bound.
func optionalDate(c *gin.Context, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be a date (YYYY-MM-DD)", name)
	}
	return &t, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func optionalInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validation("%s must be a non-negative integer", name)
	}
	return v, nil
}
