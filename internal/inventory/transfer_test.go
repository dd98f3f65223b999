package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"
)

func TestTransferConservesQuantity(t *testing.T) {
	db := testutil.NewDB(t)
	ledger := inventory.NewLedger(db, testutil.Logger(), nil)
	transfers := inventory.NewTransfers(db, ledger, testutil.Logger(), nil)
	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	testutil.Stock(t, db, p.ID, b1.ID, 10)
	ctx := context.Background()

	tr, err := transfers.Transfer(ctx, testutil.Manager(2, b1.ID), inventory.TransferInput{
		FromBranchID: b1.ID, ToBranchID: b2.ID, ProductID: p.ID, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if tr.ID == 0 || tr.Quantity != 4 {
		t.Errorf("transfer = %+v", tr)
	}
	if got := testutil.QuantityOf(t, db, p.ID, b1.ID); got != 6 {
		t.Errorf("source = %d, want 6", got)
	}
	if got := testutil.QuantityOf(t, db, p.ID, b2.ID); got != 4 {
		t.Errorf("destination = %d, want 4", got)
	}

	var moves []models.StockMovement
	db.Where("reference = ?", "TRF-000001").Order("id").Find(&moves)
	if len(moves) != 2 || moves[0].Reason != models.MovementTransferOut || moves[1].Reason != models.MovementTransferIn {
		t.Errorf("movements = %+v", moves)
	}
}

func TestTransferRejections(t *testing.T) {
	db := testutil.NewDB(t)
	ledger := inventory.NewLedger(db, testutil.Logger(), nil)
	transfers := inventory.NewTransfers(db, ledger, testutil.Logger(), nil)
	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	closed := testutil.Branch(t, db, "B3")
	db.Model(&closed).Update("is_active", false)
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	phone := testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	testutil.Stock(t, db, p.ID, b1.ID, 3)

	tests := []struct {
		name     string
		in       inventory.TransferInput
		wantKind apperrors.Kind
	}{
		{"same branch", inventory.TransferInput{FromBranchID: b1.ID, ToBranchID: b1.ID, ProductID: p.ID, Quantity: 1}, apperrors.KindValidation},
		{"zero quantity", inventory.TransferInput{FromBranchID: b1.ID, ToBranchID: b2.ID, ProductID: p.ID, Quantity: 0}, apperrors.KindValidation},
		{"more than on hand", inventory.TransferInput{FromBranchID: b1.ID, ToBranchID: b2.ID, ProductID: p.ID, Quantity: 4}, apperrors.KindConflict},
		{"unique product", inventory.TransferInput{FromBranchID: b1.ID, ToBranchID: b2.ID, ProductID: phone.ID, Quantity: 1}, apperrors.KindValidation},
		{"inactive destination", inventory.TransferInput{FromBranchID: b1.ID, ToBranchID: closed.ID, ProductID: p.ID, Quantity: 1}, apperrors.KindValidation},
		{"source outside scope", inventory.TransferInput{FromBranchID: b2.ID, ToBranchID: b1.ID, ProductID: p.ID, Quantity: 1}, apperrors.KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transfers.Transfer(context.Background(), testutil.Manager(2, b1.ID), tt.in)
			if !apperrors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
		})
	}

	if got := testutil.QuantityOf(t, db, p.ID, b1.ID); got != 3 {
		t.Errorf("source changed to %d after rejected transfers", got)
	}
	if got := testutil.QuantityOf(t, db, p.ID, b2.ID); got != 0 {
		t.Errorf("destination changed to %d after rejected transfers", got)
	}
	var n int64
	db.Model(&models.StockTransfer{}).Count(&n)
	if n != 0 {
		t.Errorf("%d transfer records left behind", n)
	}
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	db := testutil.NewDB(t)
	ledger := inventory.NewLedger(db, testutil.Logger(), nil)
	transfers := inventory.NewTransfers(db, ledger, testutil.Logger(), nil)
	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	testutil.Stock(t, db, p.ID, b1.ID, 5)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := transfers.Transfer(context.Background(), testutil.Staff(3, b1.ID), inventory.TransferInput{
				FromBranchID: b1.ID, ToBranchID: b2.ID, ProductID: p.ID, Quantity: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, conflicts := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case apperrors.Is(err, apperrors.KindConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 5 || conflicts != 3 {
		t.Errorf("ok = %d, conflicts = %d, want 5 and 3", ok, conflicts)
	}
	src := testutil.QuantityOf(t, db, p.ID, b1.ID)
	dst := testutil.QuantityOf(t, db, p.ID, b2.ID)
	if src != 0 || dst != 5 {
		t.Errorf("source = %d, destination = %d, want 0 and 5", src, dst)
	}
}
