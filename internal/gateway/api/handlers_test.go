package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"momogateway/internal/gateway"
	"momogateway/internal/momo"
	"momogateway/internal/providers/simulator"
)

func testHandler() *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(gateway.Config{
		Simulation: true,
		Simulator:  simulator.Config{SuccessRate: 100, ResponseDelay: 0},
	}, logger)
	return NewHandler(gw)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func TestPayEndpoint(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"amount":         1000,
		"customer_phone": "034 12 345 67",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp momo.PaymentResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if resp.Network != momo.NetworkMVola {
		t.Fatalf("network = %s, want mvola", resp.Network)
	}
	if resp.TransactionID == "" {
		t.Fatalf("missing transaction id")
	}
}

func TestPayEndpointRejectsLowAmount(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"amount":         50,
		"customer_phone": "0341234567",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("error envelope = %+v", env.Error)
	}
}

func TestPayEndpointRejectsUnknownNetwork(t *testing.T) {
	h := testHandler().Routes()

	rec, _ := doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"network":        "mpesa",
		"amount":         1000,
		"customer_phone": "0341234567",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestPayEndpointUndetectablePhone(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"amount":         1000,
		"customer_phone": "0351234567",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "BAD_REQUEST" {
		t.Fatalf("error envelope = %+v", env.Error)
	}
}

func TestSmartPayEndpoint(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodPost, "/payments/smart", map[string]any{
		"phone":  "+261 33 12 345 67",
		"amount": 2000,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp momo.PaymentResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if resp.Network != momo.NetworkAirtel {
		t.Fatalf("network = %s, want airtel", resp.Network)
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	handler := testHandler()
	h := handler.Routes()

	_, env := doJSON(t, h, http.MethodPost, "/payments", map[string]any{
		"amount":         1500,
		"customer_phone": "0341234567",
	})
	var created momo.PaymentResponse
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("unmarshal created payment: %v", err)
	}

	rec, env := doJSON(t, h, http.MethodGet, "/payments/mvola/"+created.TransactionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var detail momo.TransactionDetail
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail.Amount != 1500 {
		t.Fatalf("amount = %d", detail.Amount)
	}
}

func TestGetStatusEndpointUnknownNetwork(t *testing.T) {
	h := testHandler().Routes()

	rec, _ := doJSON(t, h, http.MethodGet, "/payments/mpesa/x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetStatusEndpointBadAmount(t *testing.T) {
	h := testHandler().Routes()

	rec, _ := doJSON(t, h, http.MethodGet, "/payments/orange/x?amount=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDetectEndpoint(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodGet, "/networks/detect?phone=0321234567", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp DetectResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if !resp.Valid || resp.Network != momo.NetworkOrange {
		t.Fatalf("detect = %+v", resp)
	}
	if resp.Normalized != "0321234567" {
		t.Fatalf("normalized = %q", resp.Normalized)
	}
}

func TestDetectEndpointInvalidPhone(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodGet, "/networks/detect?phone=0351234567", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp DetectResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if resp.Valid {
		t.Fatalf("expected invalid classification")
	}
	if resp.Reason == "" {
		t.Fatalf("missing rejection reason")
	}
}

func TestDetectEndpointMissingPhone(t *testing.T) {
	h := testHandler().Routes()

	rec, _ := doJSON(t, h, http.MethodGet, "/networks/detect", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestNetworksEndpoint(t *testing.T) {
	h := testHandler().Routes()

	rec, env := doJSON(t, h, http.MethodGet, "/networks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Networks []momo.Network `json:"networks"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(resp.Networks) != 3 {
		t.Fatalf("networks = %v", resp.Networks)
	}
}

func TestCallbackEndpoint(t *testing.T) {
	h := testHandler().CallbackRoutes()

	rec, env := doJSON(t, h, http.MethodPost, "/airtel", map[string]any{
		"transaction": map[string]any{
			"id":          "ATL-1",
			"status_code": "TS",
			"amount":      3000,
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var data momo.CallbackData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Status != momo.StatusSuccess {
		t.Fatalf("status = %s, want success", data.Status)
	}
}

func TestCallbackEndpointUnknownNetwork(t *testing.T) {
	h := testHandler().CallbackRoutes()

	rec, _ := doJSON(t, h, http.MethodPost, "/mpesa", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
