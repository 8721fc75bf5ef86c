package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/inventory"
	"github.com/joao-fontenele/cartflow/internal/store"
)

const testOrderID = "5b0f6c1e-8a43-4d0e-9a57-2f1c3d4e5a6b"

func newTestHandler(t *testing.T) (*http.ServeMux, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	engine := NewEngine(db, store.NewTxRunner(db, 0), inventory.NewLedger(), nil, nil, discardLogger())
	handler := NewHandler(engine, NewOrderRepository(db), discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /checkout", handler.HandleCheckout)
	mux.HandleFunc("GET /orders", handler.HandleList)
	mux.HandleFunc("GET /orders/{id}", handler.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", handler.HandleUpdateStatus)
	return mux, mock
}

func serve(mux *http.ServeMux, method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(auth.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HandleCheckout(t *testing.T) {
	const body = `{"shipping_address":"1 Main St","billing_address":"2 Side St"}`

	t.Run("missing user", func(t *testing.T) {
		mux, _ := newTestHandler(t)
		rec := serve(mux, http.MethodPost, "/checkout", "", body)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		mux, _ := newTestHandler(t)
		rec := serve(mux, http.MethodPost, "/checkout", "user-1", "not json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("shipping address only", func(t *testing.T) {
		mux, mock := newTestHandler(t)
		expectPrecheck(mock, 2)
		expectPlacementWithAddresses(mock, "X", "")
		expectDecrement(mock, "ITEM-A", 2).WillReturnResult(sqlmock.NewResult(0, 1))
		expectDecrement(mock, "ITEM-B", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		expectDeactivate(mock)
		mock.ExpectCommit()

		rec := serve(mux, http.MethodPost, "/checkout", "user-1", `{"shipping_address":"X"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var got struct {
			BillingAddress string `json:"billing_address"`
			TotalPrice     string `json:"total_price"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.BillingAddress != "" || got.TotalPrice != "25.50" {
			t.Errorf("unexpected order %+v", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		mux, mock := newTestHandler(t)
		expectPrecheck(mock, 0)

		rec := serve(mux, http.MethodPost, "/checkout", "user-1", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("places order", func(t *testing.T) {
		mux, mock := newTestHandler(t)
		expectPrecheck(mock, 2)
		expectPlacementUpToStock(mock)
		expectDecrement(mock, "ITEM-A", 2).WillReturnResult(sqlmock.NewResult(0, 1))
		expectDecrement(mock, "ITEM-B", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		expectDeactivate(mock)
		mock.ExpectCommit()

		rec := serve(mux, http.MethodPost, "/checkout", "user-1", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp orderResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.TotalPrice != "25.50" {
			t.Errorf("expected total 25.50, got %s", resp.TotalPrice)
		}
		if resp.Status != "PENDING" {
			t.Errorf("expected PENDING, got %s", resp.Status)
		}
		if len(resp.Items) != 2 || resp.Items[0].Price != "10.00" {
			t.Errorf("unexpected items: %+v", resp.Items)
		}
	})

	t.Run("decrement failure is opaque", func(t *testing.T) {
		mux, mock := newTestHandler(t)
		expectPrecheck(mock, 2)
		expectPlacementUpToStock(mock)
		expectDecrement(mock, "ITEM-A", 2).WillReturnError(sqlmock.ErrCancelled)
		mock.ExpectRollback()

		rec := serve(mux, http.MethodPost, "/checkout", "user-1", body)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "internal server error") {
			t.Errorf("expected opaque error, got %s", rec.Body.String())
		}
	})
}

func TestHandler_HandleGet(t *testing.T) {
	mux, mock := newTestHandler(t)

	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2`).WithArgs(testOrderID, "user-1").
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(testOrderID, "user-1", "PENDING", "25.5", "a", "b", time.Now()))
	mock.ExpectQuery(`ANY\(\$1\)`).WillReturnRows(sqlmock.NewRows(orderLineColumns).
		AddRow(testOrderID, "ol-1", "ITEM-A", "A", 2, "10"))
	mock.ExpectQuery(`WHERE id = \$1 AND user_id = \$2`).WithArgs(testOrderID, "user-2").
		WillReturnRows(sqlmock.NewRows(orderColumns))

	rec := serve(mux, http.MethodGet, "/orders/"+testOrderID, "user-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp orderResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TotalPrice != "25.50" || resp.Items[0].Price != "10.00" {
		t.Errorf("expected fixed two decimal money, got %s and %s", resp.TotalPrice, resp.Items[0].Price)
	}

	rec = serve(mux, http.MethodGet, "/orders/"+testOrderID, "user-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's order, got %d", rec.Code)
	}
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		current        string
		expectedStatus int
	}{
		{name: "unknown status", body: `{"status":"LOST"}`, expectedStatus: http.StatusBadRequest},
		{name: "pending cannot be assigned", body: `{"status":"PENDING"}`, current: "PROCESSING", expectedStatus: http.StatusConflict},
		{name: "completed is terminal", body: `{"status":"CANCELLED"}`, current: "COMPLETED", expectedStatus: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, mock := newTestHandler(t)
			if tt.current != "" {
				mock.ExpectQuery(`SELECT status FROM orders`).WithArgs(testOrderID).
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(tt.current))
			}

			rec := serve(mux, http.MethodPatch, "/orders/"+testOrderID+"/status", "", tt.body)
			if rec.Code != tt.expectedStatus {
				t.Errorf("expected %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_MalformedOrderID(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		userID string
		body   string
	}{
		{name: "get", method: http.MethodGet, path: "/orders/abc", userID: "user-1"},
		{name: "update status", method: http.MethodPatch, path: "/orders/abc/status", body: `{"status":"PROCESSING"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, mock := newTestHandler(t)

			rec := serve(mux, tt.method, tt.path, tt.userID, tt.body)
			if rec.Code != http.StatusNotFound {
				t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body.String())
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expected no queries: %v", err)
			}
		})
	}
}
