package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/billing"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/perorder"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"

	"github.com/google/generative-ai-go/genai"
)

func newAgent(t *testing.T) *Agent {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	ledger := inventory.NewLedger(db, log, nil)
	sales := billing.New(db, ledger, inventory.NewRegistry(db, nil, log, nil), log, nil)
	orders := perorder.New(db, sales, log, nil)

	b := testutil.Branch(t, db, "B1")
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	testutil.Stock(t, db, p.ID, b.ID, 6)
	_, err := orders.Create(context.Background(), testutil.Staff(2, b.ID), perorder.CreateInput{
		Customer:       models.CustomerInfo{Name: "Kamal"},
		BranchID:       b.ID,
		Items:          []perorder.ItemInput{{CustomProductName: "Charger", Quantity: 1, UnitPrice: testutil.DecPtr("2500")}},
		AdvancePayment: testutil.Dec("1000"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return New(config.AI{}, db, ledger, orders, log)
}

func TestAskWithoutKey(t *testing.T) {
	a := newAgent(t)
	if a.Enabled() {
		t.Fatal("agent without key reports enabled")
	}
	if _, err := a.Ask(context.Background(), testutil.Admin(1, 0), "stock?"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestCallTool(t *testing.T) {
	a := newAgent(t)
	ctx := context.Background()
	admin := testutil.Admin(1, 0)

	res, err := a.callTool(ctx, admin, genai.FunctionCall{Name: "check_stock"})
	if err != nil {
		t.Fatalf("check_stock: %v", err)
	}
	rows, _ := res["stock"].([]inventory.StockRow)
	if res["scope"] != "all" || len(rows) != 1 || rows[0].Quantity != 6 {
		t.Errorf("check_stock = %+v", res)
	}

	res, err = a.callTool(ctx, admin, genai.FunctionCall{Name: "list_pending_orders", Args: map[string]interface{}{"branch_id": float64(1)}})
	if err != nil {
		t.Fatalf("list_pending_orders: %v", err)
	}
	if res["scope"] != "1" {
		t.Errorf("list_pending_orders scope = %v", res["scope"])
	}

	res, err = a.callTool(ctx, admin, genai.FunctionCall{Name: "get_sales_report", Args: map[string]interface{}{
		"start_date": "2020-01-01", "end_date": "2099-12-31",
	}})
	if err != nil {
		t.Fatalf("get_sales_report: %v", err)
	}
	if res["revenue"] != "0.00" || res["sales_count"] != int64(0) {
		t.Errorf("get_sales_report = %+v", res)
	}
}

func TestCallToolRejects(t *testing.T) {
	a := newAgent(t)
	ctx := context.Background()

	tests := []struct {
		name string
		call genai.FunctionCall
	}{
		{"bad date", genai.FunctionCall{Name: "get_sales_report", Args: map[string]interface{}{"start_date": "yesterday", "end_date": "2024-01-01"}}},
		{"bad branch", genai.FunctionCall{Name: "check_stock", Args: map[string]interface{}{"branch_id": 1.5}}},
		{"unknown tool", genai.FunctionCall{Name: "update_product_price"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.callTool(ctx, testutil.Admin(1, 0), tt.call); err == nil {
				t.Fatal("expected an error")
			}
		})
	}

	_, err := a.callTool(ctx, testutil.Staff(2, 1), genai.FunctionCall{Name: "check_stock", Args: map[string]interface{}{"branch_id": float64(2)}})
	if !apperrors.Is(err, apperrors.KindAuthorization) {
		t.Errorf("cross-branch err = %v", err)
	}
}
