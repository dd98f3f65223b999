package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"

	"gorm.io/gorm"
)

func TestRegisterUnits(t *testing.T) {
	db := testutil.NewDB(t)
	reg := inventory.NewRegistry(db, nil, testutil.Logger(), nil)
	b := testutil.Branch(t, db, "B1")
	phone := testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	bulk := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	ctx := context.Background()
	actor := testutil.Staff(1, b.ID)

	units, err := reg.Register(ctx, actor, phone.ID, b.ID, []string{" 356938035643809 ", "356938035643810"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(units) != 2 || units[0].IMEI != "356938035643809" || units[0].Status != models.ImeiInStock {
		t.Errorf("units = %+v", units)
	}

	tests := []struct {
		name      string
		productID uint
		imeis     []string
		wantKind  apperrors.Kind
	}{
		{"already registered", phone.ID, []string{"356938035643809"}, apperrors.KindConflict},
		{"listed twice", phone.ID, []string{"1", "1"}, apperrors.KindValidation},
		{"empty", phone.ID, nil, apperrors.KindValidation},
		{"bulk product", bulk.ID, []string{"999"}, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Register(ctx, actor, tt.productID, b.ID, tt.imeis)
			if !apperrors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestRegisterRaceNamesIMEI(t *testing.T) {
	db := testutil.NewDB(t)
	reg := inventory.NewRegistry(db, nil, testutil.Logger(), nil)
	b := testutil.Branch(t, db, "B1")
	phone := testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	ctx := context.Background()

	// A competing registration lands the second imei after the uniqueness
	// check but before this one inserts it.
	fired := false
	err := db.Callback().Create().Before("gorm:create").Register("test:competing_register", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "imei_units" {
			return
		}
		fired = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO imei_units (imei, product_id, branch_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			"356938035643810", phone.ID, b.ID, models.ImeiInStock, time.Now(), time.Now())
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = reg.Register(ctx, testutil.Staff(1, b.ID), phone.ID, b.ID, []string{"356938035643809", "356938035643810"})
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
	if appErr.Details["imei"] != "356938035643810" {
		t.Errorf("details = %v, want the colliding imei", appErr.Details)
	}

	var n int64
	db.Model(&models.ImeiUnit{}).Count(&n)
	if n != 0 {
		t.Errorf("%d units left behind", n)
	}
}

func TestListUnits(t *testing.T) {
	db := testutil.NewDB(t)
	reg := inventory.NewRegistry(db, nil, testutil.Logger(), nil)
	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	phone := testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	testutil.Units(t, db, phone.ID, b1.ID, "A1", "A2")
	testutil.Units(t, db, phone.ID, b2.ID, "B1")
	db.Model(&models.ImeiUnit{}).Where("imei = ?", "A2").Update("status", models.ImeiSold)
	ctx := context.Background()

	avail, err := reg.ListAvailable(ctx, testutil.Staff(1, b1.ID), phone.ID, b1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(avail) != 1 || avail[0].IMEI != "A1" {
		t.Errorf("available = %+v", avail)
	}

	if _, err := reg.ListAvailable(ctx, testutil.Staff(1, b1.ID), phone.ID, b2.ID); !apperrors.Is(err, apperrors.KindAuthorization) {
		t.Errorf("other branch: err = %v, want authorization", err)
	}

	all, err := reg.ListUnits(ctx, testutil.Admin(9, 0), inventory.UnitFilter{ProductID: phone.ID, Status: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d units, want 3", len(all))
	}
}

func TestAssignIsCompareAndSwap(t *testing.T) {
	db := testutil.NewDB(t)
	reg := inventory.NewRegistry(db, nil, testutil.Logger(), nil)
	b1 := testutil.Branch(t, db, "B1")
	b2 := testutil.Branch(t, db, "B2")
	phone := testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	other := testutil.Product(t, db, "IP14", models.InventoryUnique, "250000")
	testutil.Units(t, db, phone.ID, b1.ID, "X1")

	assign := func(imei string, productID, branchID uint) error {
		return db.Transaction(func(tx *gorm.DB) error {
			return reg.Assign(tx, imei, productID, branchID)
		})
	}

	if err := assign("X1", phone.ID, b1.ID); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if got := testutil.UnitStatus(t, db, "X1"); got != models.ImeiSold {
		t.Errorf("status = %s, want sold", got)
	}

	tests := []struct {
		name      string
		imei      string
		productID uint
		branchID  uint
		wantKind  apperrors.Kind
	}{
		{"already sold", "X1", phone.ID, b1.ID, apperrors.KindConflict},
		{"unknown", "NOPE", phone.ID, b1.ID, apperrors.KindNotFound},
		{"wrong product", "X1", other.ID, b1.ID, apperrors.KindValidation},
		{"wrong branch", "X1", phone.ID, b2.ID, apperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := assign(tt.imei, tt.productID, tt.branchID); !apperrors.Is(err, tt.wantKind) {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}
