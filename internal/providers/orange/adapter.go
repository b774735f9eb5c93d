// Package orange provides the Orange Money web-payment adapter.
//
// Orange Money is a redirect-style network: initiating a payment yields a
// payment URL the customer must visit, so a successful initiation maps to the
// pending state. Completion is only known through the notification callback
// or a later status query.
package orange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"momogateway/internal/common/httpx"
	"momogateway/internal/momo"
)

// Config holds Orange Money adapter configuration.
type Config struct {
	BaseURL      string `envconfig:"ORANGE_BASE_URL"`
	ClientID     string `envconfig:"ORANGE_CLIENT_ID"`
	ClientSecret string `envconfig:"ORANGE_CLIENT_SECRET"`
	MerchantKey  string `envconfig:"ORANGE_MERCHANT_KEY"`
	ReturnURL    string `envconfig:"ORANGE_RETURN_URL"`
	CancelURL    string `envconfig:"ORANGE_CANCEL_URL"`
	NotifURL     string `envconfig:"ORANGE_NOTIF_URL"`
	Lang         string `envconfig:"ORANGE_LANG" default:"mg"`

	HTTP httpx.Config `envconfig:"ORANGE_HTTP"`
}

// Configured reports whether a credential bundle was supplied.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

const (
	tokenPath   = "/oauth/v3/token"
	paymentPath = "/orange-money-webpay/mg/v1/webpayment"
	statusPath  = "/orange-money-webpay/mg/v1/transactionstatus"
)

// statusTable maps Orange's uppercase status words to unified statuses. The
// network is inconsistent about casing in callbacks, so lookups stay
// case-insensitive.
var statusTable = momo.StatusTable{
	"initiated": momo.StatusPending,
	"pending":   momo.StatusPending,
	"success":   momo.StatusSuccess,
	"failed":    momo.StatusFailed,
	"expired":   momo.StatusExpired,
	"cancelled": momo.StatusCancelled,
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// webPaymentRequest is the web-payment creation body.
type webPaymentRequest struct {
	MerchantKey string `json:"merchant_key"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifURL    string `json:"notif_url"`
	Lang        string `json:"lang"`
	Reference   string `json:"reference,omitempty"`
}

// webPaymentResponse is the web-payment creation response.
type webPaymentResponse struct {
	Status     int    `json:"status"`
	Message    string `json:"message"`
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

// statusRequest is the transaction status body. Orange keys status queries on
// the original order id and amount together with the pay token.
type statusRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	PayToken string `json:"pay_token"`
}

type statusResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	TxnID   string `json:"txnid"`
}

// Adapter implements the Orange Money network provider.
type Adapter struct {
	config Config
	client *httpx.Client
	tokens *momo.TokenSource
	logger *slog.Logger
}

// NewAdapter creates a new Orange Money adapter.
func NewAdapter(cfg Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		config: cfg,
		client: httpx.New("orange", cfg.HTTP, logger),
		logger: logger,
	}
	a.tokens = momo.NewTokenSource(a.fetchToken)
	return a
}

// Network implements momo.Provider.
func (a *Adapter) Network() momo.Network { return momo.NetworkOrange }

// Authenticate implements momo.Provider.
func (a *Adapter) Authenticate(ctx context.Context) error {
	return a.tokens.Refresh(ctx)
}

func (a *Adapter) fetchToken(ctx context.Context) (momo.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkOrange, "create token request", err)
	}
	req.SetBasicAuth(a.config.ClientID, a.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkOrange, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkOrange, "read token response", err)
	}
	if resp.StatusCode >= 400 {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkOrange,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil).WithBody(body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkOrange, "unmarshal token response", err)
	}

	a.logger.Debug("Orange token refreshed", "expires_in", tr.ExpiresIn)

	return momo.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// InitiatePayment implements momo.Provider. The unified status is pending:
// Orange only issued a redirect, it has not collected anything yet.
func (a *Adapter) InitiatePayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	reference := req.Reference
	if reference == "" {
		reference = momo.NewReference("OM")
	}

	// The customer identifies themselves on the Orange payment page; the
	// msisdn is only used for network routing upstream of this call.
	body := webPaymentRequest{
		MerchantKey: a.config.MerchantKey,
		Currency:    momo.Currency,
		OrderID:     reference,
		Amount:      req.Amount,
		ReturnURL:   a.config.ReturnURL,
		CancelURL:   a.config.CancelURL,
		NotifURL:    a.config.NotifURL,
		Lang:        a.config.Lang,
		Reference:   req.Description,
	}

	a.logger.Info("initiating Orange web payment",
		"order_id", reference,
		"amount", req.Amount,
	)

	raw, err := a.doJSON(ctx, paymentPath, body)
	if err != nil {
		return nil, err
	}

	var resp webPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkOrange, "unmarshal payment response", err)
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.PaymentResponse{
		Success:       true,
		Network:       momo.NetworkOrange,
		TransactionID: resp.PayToken,
		CorrelationID: resp.NotifToken,
		Status:        momo.StatusPending,
		RedirectURL:   resp.PaymentURL,
		Message:       resp.Message,
		Raw:           rawMap,
	}, nil
}

// GetTransactionStatus implements momo.Provider.
func (a *Adapter) GetTransactionStatus(ctx context.Context, q momo.StatusQuery) (*momo.TransactionDetail, error) {
	body := statusRequest{
		OrderID:  q.Reference,
		Amount:   q.Amount,
		PayToken: q.TransactionID,
	}

	raw, err := a.doJSON(ctx, statusPath, body)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkOrange, "unmarshal status response", err)
	}

	status, known := statusTable.Normalize(resp.Status)
	if !known {
		a.logger.Warn("unmapped Orange status", "native_status", resp.Status)
	}

	transactionID := resp.TxnID
	if transactionID == "" {
		transactionID = q.TransactionID
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.TransactionDetail{
		Network:       momo.NetworkOrange,
		TransactionID: transactionID,
		CorrelationID: q.CorrelationID,
		Status:        status,
		Amount:        q.Amount,
		Currency:      momo.Currency,
		Raw:           rawMap,
	}, nil
}

func (a *Adapter) doJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := a.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkOrange, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkOrange, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		if httpx.IsCircuitOpen(err) {
			return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkOrange, "Orange circuit open", err)
		}
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkOrange, "http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkOrange, "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, momo.ClassifyHTTPStatus(momo.NetworkOrange, resp.StatusCode, body)
	}

	return body, nil
}
