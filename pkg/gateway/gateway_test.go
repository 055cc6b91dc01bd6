package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "studiobook/pkg/errors"
	"studiobook/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:         srv.URL,
		SecretKey:       "secret",
		InvoiceDuration: time.Hour,
		Timeout:         time.Second,
	}, logger.Discard())
}

func TestCreateInvoice(t *testing.T) {
	var got createInvoiceBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/invoices" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "secret" || pass != "" {
			t.Errorf("unexpected auth %q %q", user, pass)
		}
		if r.Header.Get("Idempotency-Key") != "rsv-1-1" {
			t.Errorf("missing idempotency key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"inv-1","external_id":"rsv-1-1","status":"PENDING","amount":75000,"invoice_url":"https://pay.example/inv-1"}`))
	})

	inv, err := c.CreateInvoice(context.Background(), InvoiceRequest{
		ExternalID:  "rsv-1-1",
		Amount:      75000,
		Description: "Reservation rsv-1",
		Customer:    &Customer{Name: "Ayu"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ID != "inv-1" || inv.Status != StatusPending || inv.URL != "https://pay.example/inv-1" {
		t.Errorf("unexpected invoice %+v", inv)
	}
	if got.Amount != 75000 || got.InvoiceDuration != 3600 || got.Customer.Name != "Ayu" {
		t.Errorf("unexpected request body %+v", got)
	}
}

func TestCreateInvoice_GatewayFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	})

	_, err := c.CreateInvoice(context.Background(), InvoiceRequest{ExternalID: "x", Amount: 1})
	if !apperrors.IsCode(err, apperrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if !apperrors.AsAppError(err).Recoverable() {
		t.Error("gateway errors should be recoverable")
	}
}

func TestCreateInvoice_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateInvoice(ctx, InvoiceRequest{ExternalID: "x", Amount: 1})
	if !apperrors.IsCode(err, apperrors.CodeGateway) {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestGetInvoice_Statuses(t *testing.T) {
	tests := []struct {
		remote  string
		want    Status
		wantErr bool
	}{
		{remote: "PENDING", want: StatusPending},
		{remote: "PAID", want: StatusSettled},
		{remote: "SETTLED", want: StatusSettled},
		{remote: "EXPIRED", want: StatusExpired},
		{remote: "VOIDED", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/invoices/inv-9" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "inv-9", "status": tt.remote, "amount": 10, "paid_amount": 10})
			})

			inv, err := c.GetInvoice(context.Background(), "inv-9")
			if tt.wantErr {
				if !apperrors.IsCode(err, apperrors.CodeGateway) {
					t.Fatalf("expected gateway error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if inv.Status != tt.want || inv.PaidAmount != 10 {
				t.Errorf("unexpected invoice %+v", inv)
			}
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	inv, err := DecodeCallback([]byte(`{"id":"inv-3","external_id":"rsv-1-2-ab","status":"PAID","amount":50000,"paid_amount":50000,"payment_method":"BANK_TRANSFER","paid_at":"2024-08-17T03:00:00Z"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Status != StatusSettled || inv.PaidAmount != 50000 || inv.PaymentMethod != "BANK_TRANSFER" {
		t.Errorf("unexpected invoice %+v", inv)
	}
	if inv.PaidAt == nil || !inv.PaidAt.Equal(time.Date(2024, time.August, 17, 3, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected paid at %v", inv.PaidAt)
	}

	if _, err := DecodeCallback([]byte(`{`)); !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
	if _, err := DecodeCallback([]byte(`{"status":"PAID"}`)); !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
