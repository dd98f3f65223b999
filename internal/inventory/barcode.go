package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/apperrors"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/catalog"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// In-store EAN-13 prefix (200-299 is reserved for internal numbering).
const barcodePrefix = "200"

// EAN13 derives the product's barcode from its id, so regenerating always
// yields the same code and two products can never share one.
func EAN13(productID uint) (string, error) {
	if productID == 0 || productID > 999999999 {
		return "", apperrors.Validation("product id %d cannot be encoded as EAN-13", productID)
	}
	body := fmt.Sprintf("%s%09d", barcodePrefix, productID)
	return body + string(rune('0'+ean13CheckDigit(body))), nil
}

func ean13CheckDigit(body string) int {
	sum := 0
	for i, c := range body {
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return (10 - sum%10) % 10
}

// GenerateBarcode stores the product's barcode, replacing any previous value.
func (r *Registry) GenerateBarcode(ctx context.Context, productID uint) (*models.Product, error) {
	code, err := EAN13(productID)
	if err != nil {
		return nil, err
	}

	var product *models.Product
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := catalog.FindProduct(tx, productID)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Update("barcode", code).Error; err != nil {
			return apperrors.Internal(err, "store barcode")
		}
		p.Barcode = &code
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.cache.InvalidateProducts(ctx)
	r.log.Debug("barcode generated", zap.Uint("product_id", productID), zap.String("barcode", code))
	return product, nil
}

// ProductByBarcode resolves a scanned or printed code.
func (r *Registry) ProductByBarcode(ctx context.Context, code string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("barcode = ?", code).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("barcode %s not found", code)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "lookup barcode")
	}
	return &p, nil
}
