package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/billing"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/database"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"
)

func TestGetSalesReport(t *testing.T) {
	db := testutil.NewDB(t)
	log := testutil.Logger()
	sales := billing.New(db, inventory.NewLedger(db, log, nil), inventory.NewRegistry(db, nil, log, nil), log, nil)
	ctx := context.Background()

	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	cases := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1000")
	cables := testutil.Product(t, db, "CBL-1", models.InventoryBulk, "500")
	for _, b := range []models.Branch{b1, b2} {
		testutil.Stock(t, db, cases.ID, b.ID, 10)
		testutil.Stock(t, db, cables.ID, b.ID, 10)
	}

	sell := func(branchID, productID uint, qty int, paid string) {
		t.Helper()
		_, err := sales.CreateSale(ctx, testutil.Staff(2, branchID), billing.CreateSaleInput{
			Items:      []billing.SaleItemInput{{ProductID: productID, Quantity: qty}},
			PaidAmount: testutil.Dec(paid),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	sell(b1.ID, cases.ID, 2, "2000")
	sell(b1.ID, cables.ID, 1, "0")
	sell(b2.ID, cases.ID, 3, "3000")

	from, to := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		scope   scope.Scope
		revenue string
		due     string
		count   int64
		top     string
	}{
		{"all branches", scope.Scope{All: true}, "5500", "500", 3, "Product CASE-1"},
		{"one branch", scope.Scope{BranchID: b1.ID}, "2500", "500", 2, "Product CASE-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := database.GetSalesReport(ctx, db, tt.scope, from, to)
			if err != nil {
				t.Fatal(err)
			}
			if !r.TotalRevenue.Equal(testutil.Dec(tt.revenue)) || !r.OutstandingDue.Equal(testutil.Dec(tt.due)) {
				t.Errorf("revenue = %s, due = %s", r.TotalRevenue, r.OutstandingDue)
			}
			if r.TotalCount != tt.count {
				t.Errorf("count = %d, want %d", r.TotalCount, tt.count)
			}
			if len(r.TopSelling) == 0 || r.TopSelling[0].ProductName != tt.top {
				t.Errorf("top = %+v", r.TopSelling)
			}
		})
	}

	empty, err := database.GetSalesReport(ctx, db, scope.Scope{All: true}, to, to.Add(time.Hour))
	if err != nil || !empty.TotalRevenue.IsZero() || empty.TotalCount != 0 {
		t.Errorf("empty window = %+v, %v", empty, err)
	}
}
