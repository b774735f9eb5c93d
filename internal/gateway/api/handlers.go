package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"momogateway/internal/common/api"
	"momogateway/internal/gateway"
	"momogateway/internal/momo"
	"momogateway/internal/phone"
)

// Handler handles gateway HTTP requests
type Handler struct {
	gw *gateway.Gateway
}

// NewHandler creates a new gateway handler
func NewHandler(gw *gateway.Gateway) *Handler {
	return &Handler{gw: gw}
}

// Routes returns the payment routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/payments", h.Pay)
	r.Post("/payments/smart", h.SmartPay)
	r.Get("/payments/{network}/{transactionID}", h.GetStatus)
	r.Get("/networks", h.ListNetworks)
	r.Get("/networks/detect", h.DetectNetwork)

	return r
}

// CallbackRoutes returns the provider notification routes. They are mounted
// outside the API-key boundary since the networks call them directly.
func (h *Handler) CallbackRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{network}", h.Callback)
	r.Put("/{network}", h.Callback)
	return r
}

// PayRequest is the API request for initiating a payment
type PayRequest struct {
	Network       string            `json:"network" validate:"omitempty,oneof=mvola orange airtel"`
	Amount        int64             `json:"amount" validate:"required,gte=100"`
	Currency      string            `json:"currency" validate:"omitempty,len=3"`
	CustomerPhone string            `json:"customer_phone" validate:"required"`
	Description   string            `json:"description" validate:"omitempty,max=100"`
	Reference     string            `json:"reference" validate:"omitempty,max=50"`
	Metadata      map[string]string `json:"metadata" validate:"omitempty,max=10"`
}

// Pay handles POST /payments
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	resp, err := h.gw.Pay(r.Context(), momo.PaymentRequest{
		Network:       momo.Network(req.Network),
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerPhone: req.CustomerPhone,
		Description:   req.Description,
		Reference:     req.Reference,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusCreated, resp)
}

// SmartPayRequest is the API request for phone-routed payments
type SmartPayRequest struct {
	Phone       string            `json:"phone" validate:"required"`
	Amount      int64             `json:"amount" validate:"required,gte=100"`
	Description string            `json:"description" validate:"omitempty,max=100"`
	Reference   string            `json:"reference" validate:"omitempty,max=50"`
	Metadata    map[string]string `json:"metadata" validate:"omitempty,max=10"`
}

// SmartPay handles POST /payments/smart
func (h *Handler) SmartPay(w http.ResponseWriter, r *http.Request) {
	var req SmartPayRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	resp, err := h.gw.SmartPay(r.Context(), req.Phone, req.Amount, gateway.SmartPayOptions{
		Description: req.Description,
		Reference:   req.Reference,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusCreated, resp)
}

// GetStatus handles GET /payments/{network}/{transactionID}
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	q := momo.StatusQuery{
		Network:       momo.Network(chi.URLParam(r, "network")),
		TransactionID: chi.URLParam(r, "transactionID"),
		CorrelationID: r.URL.Query().Get("correlation_id"),
		Reference:     r.URL.Query().Get("reference"),
	}
	if amount := r.URL.Query().Get("amount"); amount != "" {
		n, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			api.BadRequest(w, "amount must be an integer")
			return
		}
		q.Amount = n
	}

	detail, err := h.gw.GetStatus(r.Context(), q)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, detail)
}

// ListNetworks handles GET /networks
func (h *Handler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	api.WriteData(w, http.StatusOK, map[string]any{"networks": h.gw.Networks()})
}

// DetectResponse is the network detection result
type DetectResponse struct {
	Valid      bool         `json:"valid"`
	Network    momo.Network `json:"network,omitempty"`
	Normalized string       `json:"normalized"`
	Reason     string       `json:"reason,omitempty"`
}

// DetectNetwork handles GET /networks/detect?phone=
func (h *Handler) DetectNetwork(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("phone")
	if raw == "" {
		api.BadRequest(w, "phone query parameter required")
		return
	}

	c := phone.Classify(raw)
	api.WriteData(w, http.StatusOK, DetectResponse{
		Valid:      c.Valid,
		Network:    c.Network,
		Normalized: c.Normalized,
		Reason:     c.Reason,
	})
}

// Callback handles POST|PUT /callbacks/{network}. The body is forwarded raw:
// schema validation belongs to the per-network extraction functions.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.BadRequest(w, "unreadable body")
		return
	}

	data, err := h.gw.ParseCallback(r.Context(), chi.URLParam(r, "network"), raw)
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, data)
}

// writeGatewayError maps the gateway error taxonomy onto HTTP responses.
func writeGatewayError(w http.ResponseWriter, err error) {
	var ge *momo.Error
	if !errors.As(err, &ge) {
		api.InternalError(w, err.Error())
		return
	}

	switch ge.Kind {
	case momo.KindDetectionFailed, momo.KindInvalidPhone, momo.KindUnknownNetwork:
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeBadRequest, ge.Message)
	case momo.KindNetworkNotConfigured:
		api.WriteError(w, http.StatusBadRequest, api.ErrCodeBadRequest, ge.Message)
	case momo.KindUpstreamValidation:
		api.WriteError(w, http.StatusUnprocessableEntity, api.ErrCodeValidation, ge.Message)
	case momo.KindUpstreamNotFound:
		api.WriteError(w, http.StatusNotFound, api.ErrCodeNotFound, ge.Message)
	case momo.KindAuthenticationFailed, momo.KindUpstreamServerError:
		api.WriteError(w, http.StatusBadGateway, api.ErrCodeUpstreamError, ge.Message)
	default:
		api.InternalError(w, ge.Message)
	}
}
