package handlers

import (
	"net/http"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/database"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/middleware"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/gin-gonic/gin"
)

// --- GET: /api/reports/sales-summary?from=&to=&branchId= ---
// Defaults to the last 30 days.
func (h *Handler) SalesSummary(c *gin.Context) {
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

	end := time.Now()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		h.fail(c, apperrors.Validation("from must be before to"))
		return
	}

	s, err := scope.ReadScope(middleware.CurrentActor(c), branchID)
	if err != nil {
		h.fail(c, err)
		return
	}

	report, err := database.GetSalesReport(c.Request.Context(), h.DB, s, start, end)
	if err != nil {
		h.fail(c, apperrors.Internal(err, "sales report"))
		return
	}
	c.JSON(http.StatusOK, report)
}
