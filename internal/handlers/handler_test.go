package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/auth"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/handlers"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/router"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/testutil"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	tokens *auth.Tokens
	b1, b2 models.Branch
	case1  models.Product
	phone  models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	tokens := auth.NewTokens("test-secret", time.Hour)
	h := handlers.New(db, tokens, nil, nil, config.AI{}, testutil.Logger())
	h.AllowRegistration = true

	engine, err := router.New(h, router.Options{
		HTTP: config.HTTP{CORSOrigins: []string{"http://localhost:5173"}},
		Log:  testutil.Logger(),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	f := &fixture{t: t, db: db, engine: engine, tokens: tokens}
	f.b1 = testutil.Branch(t, db, "B1")
	f.b2 = testutil.Branch(t, db, "B2")
	f.case1 = testutil.Product(t, db, "CASE-1", models.InventoryBulk, "1000")
	f.phone = testutil.Product(t, db, "IP15", models.InventoryUnique, "350000")
	testutil.Stock(t, db, f.case1.ID, f.b1.ID, 10)
	return f
}

func (f *fixture) token(userID uint, role string, branchID *uint) string {
	tok, err := f.tokens.GenerateToken(userID, role, branchID)
	if err != nil {
		f.t.Fatal(err)
	}
	return tok
}

func (f *fixture) staff() string { id := f.b1.ID; return f.token(2, scope.RoleStaff, &id) }
func (f *fixture) admin() string { return f.token(1, scope.RoleAdmin, nil) }

func (f *fixture) do(method, path, token string, body interface{}, headers ...string) (int, map[string]interface{}) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			f.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "nope", http.StatusUnauthorized},
		{"valid token", f.staff(), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := f.do("GET", "/api/inventory/stock", tt.token, nil); code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	hash, _ := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	branchID := f.b1.ID
	f.db.Create(&models.User{Username: "nimal", PasswordHash: string(hash), Role: scope.RoleCashier, BranchID: &branchID})

	code, body := f.do("POST", "/login", "", map[string]string{"username": "nimal", "password": "s3cret-pass"})
	if code != http.StatusOK {
		t.Fatalf("login status = %d, body = %v", code, body)
	}
	claims, err := f.tokens.ValidateToken(body["token"].(string))
	if err != nil || claims.BranchID == nil || *claims.BranchID != f.b1.ID || claims.Role != scope.RoleCashier {
		t.Errorf("claims = %+v, %v", claims, err)
	}

	if code, _ := f.do("POST", "/login", "", map[string]string{"username": "nimal", "password": "wrong"}); code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", code)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"staff with branch", map[string]interface{}{"username": "kamal", "password": "longenough", "role": "staff", "branch_id": f.b1.ID}, http.StatusCreated},
		{"duplicate", map[string]interface{}{"username": "kamal", "password": "longenough", "role": "staff", "branch_id": f.b1.ID}, http.StatusConflict},
		{"staff without branch", map[string]interface{}{"username": "sunil", "password": "longenough", "role": "staff"}, http.StatusBadRequest},
		{"unknown role", map[string]interface{}{"username": "sunil", "password": "longenough", "role": "owner"}, http.StatusBadRequest},
		{"short password", map[string]interface{}{"username": "sunil", "password": "short"}, http.StatusBadRequest},
		{"admin", map[string]interface{}{"username": "root", "password": "longenough", "role": "admin"}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := f.do("POST", "/register", "", tt.body); code != tt.want {
				t.Fatalf("status = %d, want %d (%v)", code, tt.want, body)
			}
		})
	}
}

func TestStockQuantityScope(t *testing.T) {
	f := newFixture(t)
	body := map[string]interface{}{"productId": f.case1.ID, "branchId": f.b1.ID, "quantity": 7}

	code, resp := f.do("PUT", "/api/inventory/stock-quantity", f.admin(), body)
	if code != http.StatusForbidden || resp["code"] != "authorization" {
		t.Errorf("aggregate admin: %d %v", code, resp)
	}

	code, _ = f.do("PUT", "/api/inventory/stock-quantity", f.admin(), body, "X-Branch-Id", fmt.Sprint(f.b1.ID))
	if code != http.StatusOK {
		t.Errorf("admin acting on branch: %d", code)
	}

	body["quantity"] = -1
	if code, _ := f.do("PUT", "/api/inventory/stock-quantity", f.staff(), body); code != http.StatusBadRequest {
		t.Errorf("negative quantity: %d", code)
	}

	code, resp = f.do("GET", "/api/inventory/stock?branchId=all", f.admin(), nil)
	if code != http.StatusOK || resp["scope"] != "all" {
		t.Errorf("aggregate stock: %d %v", code, resp)
	}
	if code, _ := f.do("GET", fmt.Sprintf("/api/inventory/stock?branchId=%d", f.b2.ID), f.staff(), nil); code != http.StatusForbidden {
		t.Errorf("staff reading other branch: %d", code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do("POST", "/api/inventory/transfers", f.staff(), map[string]interface{}{
		"fromBranchId": f.b1.ID, "toBranchId": f.b2.ID, "productId": f.case1.ID, "quantity": 5,
	})
	if code != http.StatusCreated {
		t.Fatalf("transfer status = %d", code)
	}
	if a, b := testutil.QuantityOf(t, f.db, f.case1.ID, f.b1.ID), testutil.QuantityOf(t, f.db, f.case1.ID, f.b2.ID); a != 5 || b != 5 {
		t.Errorf("stocks = %d/%d, want 5/5", a, b)
	}

	code, resp := f.do("POST", "/api/inventory/transfers", f.staff(), map[string]interface{}{
		"fromBranchId": f.b1.ID, "toBranchId": f.b2.ID, "productId": f.case1.ID, "quantity": 20,
	})
	if code != http.StatusConflict || resp["code"] != "conflict" {
		t.Errorf("overdraw: %d %v", code, resp)
	}
	details, _ := resp["details"].(map[string]interface{})
	if details["available"] != float64(5) {
		t.Errorf("details = %v", details)
	}
	if a, b := testutil.QuantityOf(t, f.db, f.case1.ID, f.b1.ID), testutil.QuantityOf(t, f.db, f.case1.ID, f.b2.ID); a != 5 || b != 5 {
		t.Errorf("stocks after rejection = %d/%d, want 5/5", a, b)
	}
}

func TestPerOrderFlow(t *testing.T) {
	f := newFixture(t)
	tok := f.staff()

	code, order := f.do("POST", "/api/per-orders", tok, map[string]interface{}{
		"customer_name":   "Nimal",
		"customer_phone":  "0771234567",
		"branch_id":       f.b1.ID,
		"advance_payment": 500,
		"items":           []map[string]interface{}{{"product_id": f.case1.ID, "quantity": 2, "unit_price": 1000}},
	})
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, %v", code, order)
	}
	if order["subtotal"] != "2000" || order["due_amount"] != "1500" || order["status"] != "pending" {
		t.Errorf("order = %v", order)
	}
	id := uint(order["id"].(float64))

	note := "deliver Friday"
	code, updated := f.do("PATCH", fmt.Sprintf("/api/per-orders/%d", id), tok, map[string]interface{}{"notes": note})
	if code != http.StatusOK || updated["notes"] != note {
		t.Errorf("update: %d %v", code, updated)
	}

	code, sale := f.do("POST", fmt.Sprintf("/api/per-orders/%d/convert-to-sale", id), tok, map[string]interface{}{
		"remainingPayment": 1500, "paymentMethod": "card",
	})
	if code != http.StatusCreated {
		t.Fatalf("convert status = %d, %v", code, sale)
	}
	if sale["total_amount"] != "2000" || sale["paid_amount"] != "2000" || sale["due_amount"] != "0" || sale["payment_status"] != "paid" {
		t.Errorf("sale = %v", sale)
	}

	code, resp := f.do("POST", fmt.Sprintf("/api/per-orders/%d/cancel", id), tok, map[string]interface{}{"refund": true})
	if code != http.StatusConflict || resp["error"] != "order not pending" {
		t.Errorf("cancel completed: %d %v", code, resp)
	}

	code, got := f.do("GET", fmt.Sprintf("/api/per-orders/%d", id), tok, nil)
	if code != http.StatusOK || got["status"] != "completed" {
		t.Errorf("get: %d %v", code, got)
	}
}

func TestSaleAndPayments(t *testing.T) {
	f := newFixture(t)
	tok := f.staff()

	code, sale := f.do("POST", "/api/billing/sales", tok, map[string]interface{}{
		"items":          []map[string]interface{}{{"productId": f.case1.ID, "quantity": 3}},
		"discountAmount": 0,
		"taxRate":        0,
		"paidAmount":     1000,
	})
	if code != http.StatusCreated || sale["payment_status"] != "partial" {
		t.Fatalf("create sale: %d %v", code, sale)
	}
	id := uint(sale["id"].(float64))

	code, resp := f.do("POST", fmt.Sprintf("/api/billing/sales/%d/payments", id), tok, map[string]interface{}{"amount": 2500, "paymentMethod": "cash"})
	if code != http.StatusBadRequest || resp["error"] != "overpayment" {
		t.Errorf("overpayment: %d %v", code, resp)
	}

	code, resp = f.do("POST", fmt.Sprintf("/api/billing/sales/%d/payments", id), tok, map[string]interface{}{"amount": 2000, "paymentMethod": "cash"})
	if code != http.StatusOK || resp["payment_status"] != "paid" {
		t.Errorf("settle: %d %v", code, resp)
	}

	code, resp = f.do("POST", "/api/billing/sales", tok, map[string]interface{}{
		"items": []map[string]interface{}{{"productId": f.phone.ID, "quantity": 1}},
	})
	if code != http.StatusBadRequest {
		t.Errorf("unique without imei: %d %v", code, resp)
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	if code, _ := f.do("POST", "/api/branches", f.staff(), map[string]string{"name": "Kandy", "code": "KDY"}); code != http.StatusForbidden {
		t.Errorf("staff create branch: %d", code)
	}
	code, b := f.do("POST", "/api/branches", f.admin(), map[string]string{"name": "Kandy", "code": "KDY"})
	if code != http.StatusCreated {
		t.Fatalf("admin create branch: %d %v", code, b)
	}
	if code, _ := f.do("POST", "/api/branches", f.admin(), map[string]string{"name": "Kandy 2", "code": "KDY"}); code != http.StatusConflict {
		t.Errorf("duplicate code: %d", code)
	}

	code, p := f.do("POST", "/api/inventory/products", f.admin(), map[string]interface{}{
		"sku": "CHG-20W", "name": "20W Charger", "base_price": "4500.00",
	})
	if code != http.StatusCreated || p["inventory_type"] != "bulk" {
		t.Errorf("create product: %d %v", code, p)
	}

	code, summary := f.do("GET", "/api/reports/sales-summary", f.admin(), nil)
	if code != http.StatusOK || summary["scope"] != "all" {
		t.Errorf("sales summary: %d %v", code, summary)
	}

	code, resp := f.do("POST", "/api/ask", f.admin(), map[string]string{"message": "how many cases?"})
	if code != http.StatusServiceUnavailable {
		t.Errorf("ask without key: %d %v", code, resp)
	}
}

func TestBarcodeRoutes(t *testing.T) {
	f := newFixture(t)

	code, resp := f.do("GET", fmt.Sprintf("/api/inventory/barcode/generate/%d", f.case1.ID), f.staff(), nil)
	if code != http.StatusOK {
		t.Fatalf("generate: %d %v", code, resp)
	}
	barcode := resp["barcode"].(string)

	if code, _ := f.do("GET", "/api/inventory/barcode/pdf/"+barcode, f.staff(), nil); code != http.StatusNotImplemented {
		t.Errorf("pdf for known barcode: %d", code)
	}
	if code, _ := f.do("GET", "/api/inventory/barcode/pdf/0000000000000", f.staff(), nil); code != http.StatusNotFound {
		t.Errorf("pdf for unknown barcode: %d", code)
	}
}
