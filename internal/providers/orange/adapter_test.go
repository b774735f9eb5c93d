package orange

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"momogateway/internal/momo"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAdapter(baseURL string) *Adapter {
	return NewAdapter(Config{
		BaseURL:      baseURL,
		ClientID:     "id",
		ClientSecret: "secret",
		MerchantKey:  "mkey",
		ReturnURL:    "https://shop.example/return",
		CancelURL:    "https://shop.example/cancel",
		NotifURL:     "https://shop.example/notif",
		Lang:         "mg",
	}, testLogger())
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			t.Fatalf("missing or wrong basic auth")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok456",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

func TestInitiatePaymentIssuesRedirect(t *testing.T) {
	var captured webPaymentRequest

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(paymentPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok456" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode payment body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":      201,
			"message":     "OK",
			"pay_token":   "pay-1",
			"payment_url": "https://webpayment.orange.example/pay-1",
			"notif_token": "notif-1",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	resp, err := a.InitiatePayment(context.Background(), momo.PaymentRequest{
		Amount:        2000,
		CustomerPhone: "0321234567",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A web payment has only issued a redirect; nothing is collected yet.
	if resp.Status != momo.StatusPending {
		t.Fatalf("status = %s, want pending", resp.Status)
	}
	if resp.RedirectURL != "https://webpayment.orange.example/pay-1" {
		t.Fatalf("redirect url = %q", resp.RedirectURL)
	}
	if resp.TransactionID != "pay-1" || resp.CorrelationID != "notif-1" {
		t.Fatalf("ids = %q, %q", resp.TransactionID, resp.CorrelationID)
	}

	if captured.MerchantKey != "mkey" {
		t.Fatalf("merchant key = %q", captured.MerchantKey)
	}
	if captured.Currency != momo.Currency {
		t.Fatalf("currency = %q", captured.Currency)
	}
	if captured.Amount != 2000 {
		t.Fatalf("amount = %d", captured.Amount)
	}
	if captured.OrderID == "" {
		t.Fatalf("order id not generated")
	}
	if captured.NotifURL != "https://shop.example/notif" {
		t.Fatalf("notif url = %q", captured.NotifURL)
	}
}

func TestGetTransactionStatus(t *testing.T) {
	var captured statusRequest

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(statusPath, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode status body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "SUCCESS",
			"order_id": captured.OrderID,
			"txnid":    "MP260830.1234.A00001",
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	detail, err := a.GetTransactionStatus(context.Background(), momo.StatusQuery{
		Network:       momo.NetworkOrange,
		TransactionID: "pay-1",
		Reference:     "OM-REF-1",
		Amount:        2000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if detail.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", detail.Status)
	}
	if detail.TransactionID != "MP260830.1234.A00001" {
		t.Fatalf("transaction id = %q", detail.TransactionID)
	}

	if captured.OrderID != "OM-REF-1" || captured.Amount != 2000 || captured.PayToken != "pay-1" {
		t.Fatalf("status query body = %+v", captured)
	}
}

func TestGetTransactionStatusExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(statusPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "EXPIRED", "order_id": "OM-REF-2"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	detail, err := a.GetTransactionStatus(context.Background(), momo.StatusQuery{
		TransactionID: "pay-2",
		Reference:     "OM-REF-2",
		Amount:        1500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Status != momo.StatusExpired {
		t.Fatalf("status = %s, want expired", detail.Status)
	}
	if detail.TransactionID != "pay-2" {
		t.Fatalf("transaction id fallback = %q", detail.TransactionID)
	}
}

func TestParseCallback(t *testing.T) {
	raw := []byte(`{
		"status": "SUCCESS",
		"notif_token": "notif-1",
		"txnid": "MP260830.1234.A00001",
		"order_id": "OM-REF-1",
		"amount": "2000",
		"msisdn": "0321234567"
	}`)

	data, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", data.Status)
	}
	if data.TransactionID != "MP260830.1234.A00001" {
		t.Fatalf("transaction id = %q", data.TransactionID)
	}
	if data.CorrelationID != "notif-1" {
		t.Fatalf("correlation id = %q", data.CorrelationID)
	}
	if data.Amount != 2000 {
		t.Fatalf("amount = %d", data.Amount)
	}
}

func TestParseCallbackFallsBackToOrderID(t *testing.T) {
	data, err := ParseCallback([]byte(`{"status": "FAILED", "order_id": "OM-REF-3"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.TransactionID != "OM-REF-3" {
		t.Fatalf("transaction id = %q", data.TransactionID)
	}
	if data.Status != momo.StatusFailed {
		t.Fatalf("status = %s, want failed", data.Status)
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	if _, err := ParseCallback([]byte(`{`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
