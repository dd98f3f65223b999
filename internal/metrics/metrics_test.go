package metrics_test

import (
	"context"
	"testing"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *metrics.Metrics
	m.SaleCreated("pos")
	m.PerOrderTransition("completed")
	m.StockConflict("insufficient_stock")
	m.TransferCommitted()
}

func TestTransferCounters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	db := testutil.NewDB(t)
	log := testutil.Logger()
	transfers := inventory.NewTransfers(db, inventory.NewLedger(db, log, m), log, m)

	from := testutil.Branch(t, db, "B1")
	to := testutil.Branch(t, db, "B2")
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1000")
	testutil.Stock(t, db, p.ID, from.ID, 5)

	ctx := context.Background()
	in := inventory.TransferInput{FromBranchID: from.ID, ToBranchID: to.ID, ProductID: p.ID, Quantity: 3}
	if _, err := transfers.Transfer(ctx, testutil.Staff(1, from.ID), in); err != nil {
		t.Fatal(err)
	}
	if _, err := transfers.Transfer(ctx, testutil.Staff(1, from.ID), in); err == nil {
		t.Fatal("second transfer should overdraw")
	}

	if got := promtest.ToFloat64(m.StockTransfers); got != 1 {
		t.Errorf("transfers = %v, want 1", got)
	}
	if got := promtest.CollectAndCount(m.StockConflicts); got != 1 {
		t.Errorf("conflict series = %d, want 1", got)
	}
}
