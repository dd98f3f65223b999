package database

import (
	"context"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TopSeller struct {
	ProductName string          `json:"product_name"`
	Sold        int             `json:"sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// SalesReportResult holds the figures shown on the dashboard and handed to
// the stock assistant.
type SalesReportResult struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Scope          string          `json:"scope"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalCount     int64           `json:"total_count"`
	OutstandingDue decimal.Decimal `json:"outstanding_due"`
	TopSelling     []TopSeller     `json:"top_selling"`
}

// GetSalesReport calculates sales within [from, to) for one branch or all of
// them.
func GetSalesReport(ctx context.Context, db *gorm.DB, s scope.Scope, from, to time.Time) (*SalesReportResult, error) {
	result := SalesReportResult{From: from, To: to, Scope: s.String()}

	sales := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&models.Sale{}).Where("sales.created_at >= ? AND sales.created_at < ?", from, to)
		if !s.All {
			q = q.Where("sales.branch_id = ?", s.BranchID)
		}
		return q
	}

	// COALESCE ensures we get 0 instead of NULL if no sales exist
	var totals struct {
		Revenue decimal.Decimal
		Due     decimal.Decimal
	}
	err := sales().
		Select("COALESCE(SUM(total_amount), 0) AS revenue, COALESCE(SUM(due_amount), 0) AS due").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	result.TotalRevenue = totals.Revenue
	result.OutstandingDue = totals.Due

	if err := sales().Count(&result.TotalCount).Error; err != nil {
		return nil, err
	}

	err = sales().
		Select("sale_items.product_name AS product_name, SUM(sale_items.quantity) AS sold, SUM(sale_items.subtotal) AS revenue").
		Joins("JOIN sale_items ON sale_items.sale_id = sales.id").
		Group("sale_items.product_name").
		Order("sold DESC").
		Limit(5).
		Scan(&result.TopSelling).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}
