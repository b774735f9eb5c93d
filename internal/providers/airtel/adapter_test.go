package airtel

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
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
		Country:      "MG",
		PartnerName:  "TestShop",
	}, testLogger())
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Airtel wants the standard header set on authentication too.
		if r.Header.Get("X-Country") != "MG" {
			t.Fatalf("X-Country missing on token request")
		}
		if r.Header.Get("X-Currency") != momo.Currency {
			t.Fatalf("X-Currency missing on token request")
		}
		if r.Header.Get("X-Correlation-ID") == "" {
			t.Fatalf("X-Correlation-ID missing on token request")
		}

		var body tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode token body: %v", err)
		}
		if body.ClientID != "id" || body.ClientSecret != "secret" || body.GrantType != "client_credentials" {
			t.Fatalf("token body = %+v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok789",
			"token_type":   "Bearer",
			"expires_in":   180,
		})
	}
}

func TestInitiatePayment(t *testing.T) {
	var captured struct {
		headers http.Header
		body    collectionRequest
	}

	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(collectionPath, func(w http.ResponseWriter, r *http.Request) {
		captured.headers = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Fatalf("decode collection body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"transaction": map[string]any{
					"id":     captured.body.Transaction.ID,
					"status": "TS",
				},
			},
			"status": map[string]any{
				"code":          "200",
				"success":       true,
				"message":       "SUCCESS",
				"response_code": "DP00800001001",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	resp, err := a.InitiatePayment(context.Background(), momo.PaymentRequest{
		Amount:        3000,
		CustomerPhone: "033 12 345 67",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success {
		t.Fatalf("expected success")
	}
	if resp.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", resp.Status)
	}

	if got := captured.headers.Get("Authorization"); got != "Bearer tok789" {
		t.Fatalf("authorization = %q", got)
	}
	if captured.headers.Get("X-Country") != "MG" || captured.headers.Get("X-Currency") != momo.Currency {
		t.Fatalf("standard headers missing on payment call")
	}
	if captured.headers.Get("X-Partner-Name") != "TestShop" {
		t.Fatalf("X-Partner-Name = %q", captured.headers.Get("X-Partner-Name"))
	}

	if captured.body.Subscriber.Msisdn != "331234567" {
		t.Fatalf("msisdn = %q, want leading zero stripped", captured.body.Subscriber.Msisdn)
	}
	if captured.body.Transaction.Amount != 3000 {
		t.Fatalf("amount = %d", captured.body.Transaction.Amount)
	}
	if captured.body.Transaction.Currency != momo.Currency {
		t.Fatalf("currency = %q", captured.body.Transaction.Currency)
	}
}

func TestGetTransactionStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(statusPath+"ATL-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"transaction": map[string]any{
					"id":              "ATL-1",
					"airtel_money_id": "AM-55",
					"status":          "TF",
					"amount":          3000,
				},
			},
			"status": map[string]any{"code": "200", "success": true},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	detail, err := a.GetTransactionStatus(context.Background(), momo.StatusQuery{TransactionID: "ATL-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if detail.Status != momo.StatusFailed {
		t.Fatalf("status = %s, want failed", detail.Status)
	}
	if detail.CorrelationID != "AM-55" {
		t.Fatalf("correlation id = %q", detail.CorrelationID)
	}
	if detail.Amount != 3000 {
		t.Fatalf("amount = %d", detail.Amount)
	}
}

func TestAmbiguousStatusStaysPending(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(statusPath+"ATL-2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"transaction": map[string]any{"id": "ATL-2", "status": "TA"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := testAdapter(srv.URL)

	detail, err := a.GetTransactionStatus(context.Background(), momo.StatusQuery{TransactionID: "ATL-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if detail.Status != momo.StatusPending {
		t.Fatalf("status = %s, want pending", detail.Status)
	}
}

func TestDisburseRequiresPinConfig(t *testing.T) {
	a := testAdapter("http://unused.invalid")

	_, err := a.Disburse(context.Background(), momo.PaymentRequest{
		Amount:        1000,
		CustomerPhone: "0331234567",
	})
	if momo.KindOf(err) != momo.KindUpstreamValidation {
		t.Fatalf("kind = %s, want %s", momo.KindOf(err), momo.KindUpstreamValidation)
	}
}

func TestDisburseSendsEncryptedPin(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}

	var pin string
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, tokenHandler(t))
	mux.HandleFunc(disbursementPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode disbursement body: %v", err)
		}
		pin, _ = body["pin"].(string)
		json.NewEncoder(w).Encode(map[string]any{
			"data":   map[string]any{"transaction": map[string]any{"status": "TS"}},
			"status": map[string]any{"success": true},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewAdapter(Config{
		BaseURL:       srv.URL,
		ClientID:      "id",
		ClientSecret:  "secret",
		Country:       "MG",
		DisbursePIN:   "1234",
		EncryptionKey: base64.StdEncoding.EncodeToString(der),
	}, testLogger())

	resp, err := a.Disburse(context.Background(), momo.PaymentRequest{
		Amount:        1000,
		CustomerPhone: "0331234567",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", resp.Status)
	}

	cipher, err := base64.StdEncoding.DecodeString(pin)
	if err != nil {
		t.Fatalf("pin is not base64: %v", err)
	}
	plain, err := rsa.DecryptPKCS1v15(nil, key, cipher)
	if err != nil {
		t.Fatalf("pin does not decrypt: %v", err)
	}
	if string(plain) != "1234" {
		t.Fatalf("decrypted pin = %q", plain)
	}
}

func TestStripMsisdn(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0331234567", "331234567"},
		{"261331234567", "331234567"},
		{"033 12 345 67", "331234567"},
	}

	for _, c := range cases {
		if got := StripMsisdn(c.raw); got != c.want {
			t.Fatalf("StripMsisdn(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestParseCallback(t *testing.T) {
	raw := []byte(`{
		"transaction": {
			"id": "ATL-1",
			"message": "Paid",
			"status_code": "TS",
			"airtel_money_id": "AM-55",
			"msisdn": "331234567",
			"amount": 3000
		}
	}`)

	data, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if data.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", data.Status)
	}
	if data.NativeStatus != "TS" {
		t.Fatalf("native status = %q", data.NativeStatus)
	}
	if data.TransactionID != "ATL-1" || data.CorrelationID != "AM-55" {
		t.Fatalf("ids = %q, %q", data.TransactionID, data.CorrelationID)
	}
	if data.Amount != 3000 {
		t.Fatalf("amount = %d", data.Amount)
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	if _, err := ParseCallback([]byte(`[]`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
