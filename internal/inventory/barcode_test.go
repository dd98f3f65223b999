package inventory

import (
	"context"
	"testing"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"
)

func TestEAN13(t *testing.T) {
	tests := []struct {
		id   uint
		want string
	}{
		{1, "2000000000015"},
		{42, "2000000000428"},
		{123456789, "2001234567893"},
	}
	for _, tt := range tests {
		got, err := EAN13(tt.id)
		if err != nil {
			t.Fatalf("EAN13(%d): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("EAN13(%d) = %s, want %s", tt.id, got, tt.want)
		}
	}

	if _, err := EAN13(0); !apperrors.Is(err, apperrors.KindValidation) {
		t.Errorf("EAN13(0) err = %v", err)
	}
}

func TestGenerateBarcode(t *testing.T) {
	db := testutil.NewDB(t)
	reg := NewRegistry(db, nil, testutil.Logger(), nil)
	p := testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1500")
	ctx := context.Background()

	got, err := reg.GenerateBarcode(ctx, p.ID)
	if err != nil {
		t.Fatalf("GenerateBarcode: %v", err)
	}
	if got.Barcode == nil || len(*got.Barcode) != 13 {
		t.Fatalf("barcode = %v", got.Barcode)
	}

	found, err := reg.ProductByBarcode(ctx, *got.Barcode)
	if err != nil || found.ID != p.ID {
		t.Errorf("ProductByBarcode = %+v, %v", found, err)
	}
	if _, err := reg.ProductByBarcode(ctx, "0000000000000"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("unknown barcode err = %v", err)
	}
	if _, err := reg.GenerateBarcode(ctx, 999); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("unknown product err = %v", err)
	}
}
