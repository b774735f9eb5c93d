// Package airtel provides the Airtel Money adapter.
//
// Airtel expects the customer msisdn in local format without the leading
// zero, and requires its country/currency/correlation/partner header set on
// every call, authentication included.
package airtel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"momogateway/internal/common/httpx"
	"momogateway/internal/momo"
	"momogateway/internal/phone"
)

// Config holds Airtel Money adapter configuration.
type Config struct {
	BaseURL      string `envconfig:"AIRTEL_BASE_URL"`
	ClientID     string `envconfig:"AIRTEL_CLIENT_ID"`
	ClientSecret string `envconfig:"AIRTEL_CLIENT_SECRET"`
	Country      string `envconfig:"AIRTEL_COUNTRY" default:"MG"`
	PartnerName  string `envconfig:"AIRTEL_PARTNER_NAME"`

	// DisbursePIN and EncryptionKey are only needed for disbursements;
	// collection payments never transmit a PIN.
	DisbursePIN   string `envconfig:"AIRTEL_DISBURSE_PIN"`
	EncryptionKey string `envconfig:"AIRTEL_ENCRYPTION_KEY"`

	HTTP httpx.Config `envconfig:"AIRTEL_HTTP"`
}

// Configured reports whether a credential bundle was supplied.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

const (
	tokenPath        = "/auth/oauth2/token"
	collectionPath   = "/merchant/v2/payments/"
	statusPath       = "/standard/v2/payments/"
	disbursementPath = "/standard/v2/disbursements/"
)

// maxReference is Airtel's transaction reference display limit.
const maxReference = 64

// statusTable maps Airtel's short transaction codes to unified statuses.
// TA ("ambiguous") resolves to pending so an undecided transaction is never
// reported terminal.
var statusTable = momo.StatusTable{
	"ts":  momo.StatusSuccess,
	"tf":  momo.StatusFailed,
	"ta":  momo.StatusPending,
	"tip": momo.StatusPending,
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type subscriber struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Msisdn   string `json:"msisdn"`
}

type transaction struct {
	Amount   int64  `json:"amount"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	ID       string `json:"id"`
}

// collectionRequest is the merchant payment body.
type collectionRequest struct {
	Reference   string      `json:"reference"`
	Subscriber  subscriber  `json:"subscriber"`
	Transaction transaction `json:"transaction"`
}

// apiResponse is the envelope Airtel wraps every response in.
type apiResponse struct {
	Data struct {
		Transaction struct {
			ID            string `json:"id"`
			AirtelMoneyID string `json:"airtel_money_id"`
			Status        string `json:"status"`
			Message       string `json:"message"`
			Amount        any    `json:"amount"`
		} `json:"transaction"`
	} `json:"data"`
	Status struct {
		Code         string `json:"code"`
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		ResponseCode string `json:"response_code"`
	} `json:"status"`
}

// Adapter implements the Airtel Money network provider.
type Adapter struct {
	config Config
	client *httpx.Client
	tokens *momo.TokenSource
	logger *slog.Logger
}

// NewAdapter creates a new Airtel Money adapter.
func NewAdapter(cfg Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		config: cfg,
		client: httpx.New("airtel", cfg.HTTP, logger),
		logger: logger,
	}
	a.tokens = momo.NewTokenSource(a.fetchToken)
	return a
}

// Network implements momo.Provider.
func (a *Adapter) Network() momo.Network { return momo.NetworkAirtel }

// Authenticate implements momo.Provider.
func (a *Adapter) Authenticate(ctx context.Context) error {
	return a.tokens.Refresh(ctx)
}

func (a *Adapter) fetchToken(ctx context.Context) (momo.Token, error) {
	data, err := json.Marshal(tokenRequest{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel, "marshal token request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+tokenPath, bytes.NewReader(data))
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel, "create token request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	a.setStandardHeaders(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel, "read token response", err)
	}
	if resp.StatusCode >= 400 {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil).WithBody(body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkAirtel, "unmarshal token response", err)
	}

	a.logger.Debug("Airtel token refreshed", "expires_in", tr.ExpiresIn)

	return momo.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// InitiatePayment implements momo.Provider.
func (a *Adapter) InitiatePayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	reference := req.Reference
	if reference == "" {
		reference = momo.NewReference("ATL")
	}

	display := req.Description
	if display == "" {
		display = reference
	}
	if len(display) > maxReference {
		display = display[:maxReference]
	}

	body := collectionRequest{
		Reference: display,
		Subscriber: subscriber{
			Country:  a.config.Country,
			Currency: momo.Currency,
			Msisdn:   StripMsisdn(req.CustomerPhone),
		},
		Transaction: transaction{
			Amount:   req.Amount,
			Country:  a.config.Country,
			Currency: momo.Currency,
			ID:       reference,
		},
	}

	a.logger.Info("initiating Airtel payment",
		"reference", reference,
		"amount", req.Amount,
	)

	raw, err := a.doJSON(ctx, http.MethodPost, collectionPath, body)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkAirtel, "unmarshal initiate response", err)
	}

	status, known := statusTable.Normalize(resp.Data.Transaction.Status)
	if !known {
		a.logger.Warn("unmapped Airtel status", "native_status", resp.Data.Transaction.Status)
	}

	transactionID := resp.Data.Transaction.ID
	if transactionID == "" {
		transactionID = reference
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.PaymentResponse{
		Success:       resp.Status.Success,
		Network:       momo.NetworkAirtel,
		TransactionID: transactionID,
		Status:        status,
		Message:       resp.Status.Message,
		Raw:           rawMap,
	}, nil
}

// GetTransactionStatus implements momo.Provider.
func (a *Adapter) GetTransactionStatus(ctx context.Context, q momo.StatusQuery) (*momo.TransactionDetail, error) {
	raw, err := a.doJSON(ctx, http.MethodGet, statusPath+q.TransactionID, nil)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkAirtel, "unmarshal status response", err)
	}

	status, known := statusTable.Normalize(resp.Data.Transaction.Status)
	if !known {
		a.logger.Warn("unmapped Airtel status", "native_status", resp.Data.Transaction.Status)
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.TransactionDetail{
		Network:       momo.NetworkAirtel,
		TransactionID: q.TransactionID,
		CorrelationID: resp.Data.Transaction.AirtelMoneyID,
		Status:        status,
		Amount:        momo.ParseAmount(resp.Data.Transaction.Amount),
		Currency:      momo.Currency,
		Raw:           rawMap,
	}, nil
}

// Disburse pushes money out to a subscriber. Unlike collections, Airtel
// requires the merchant's encrypted PIN on disbursement calls.
func (a *Adapter) Disburse(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	reference := req.Reference
	if reference == "" {
		reference = momo.NewReference("ATLOUT")
	}

	pin, err := a.encryptedPIN()
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"payee": map[string]string{
			"msisdn": StripMsisdn(req.CustomerPhone),
		},
		"reference": reference,
		"pin":       pin,
		"transaction": transaction{
			Amount:   req.Amount,
			Country:  a.config.Country,
			Currency: momo.Currency,
			ID:       reference,
		},
	}

	a.logger.Info("initiating Airtel disbursement",
		"reference", reference,
		"amount", req.Amount,
	)

	raw, err := a.doJSON(ctx, http.MethodPost, disbursementPath, body)
	if err != nil {
		return nil, err
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkAirtel, "unmarshal disbursement response", err)
	}

	status, _ := statusTable.Normalize(resp.Data.Transaction.Status)

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.PaymentResponse{
		Success:       resp.Status.Success,
		Network:       momo.NetworkAirtel,
		TransactionID: reference,
		CorrelationID: resp.Data.Transaction.AirtelMoneyID,
		Status:        status,
		Message:       resp.Status.Message,
		Raw:           rawMap,
	}, nil
}

// setStandardHeaders attaches the header set Airtel requires on every call,
// authentication included.
func (a *Adapter) setStandardHeaders(req *http.Request) {
	req.Header.Set("X-Country", a.config.Country)
	req.Header.Set("X-Currency", momo.Currency)
	req.Header.Set("X-Correlation-ID", uuid.NewString())
	if a.config.PartnerName != "" {
		req.Header.Set("X-Partner-Name", a.config.PartnerName)
	}
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := a.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, momo.NewError(momo.KindInternal, momo.NetworkAirtel, "marshal request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkAirtel, "create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "*/*")
	a.setStandardHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if httpx.IsCircuitOpen(err) {
			return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkAirtel, "Airtel circuit open", err)
		}
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkAirtel, "http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkAirtel, "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, momo.ClassifyHTTPStatus(momo.NetworkAirtel, resp.StatusCode, body)
	}

	return body, nil
}

// StripMsisdn normalizes a raw phone number and removes the leading zero, the
// local format Airtel expects (e.g. "0331234567" becomes "331234567").
func StripMsisdn(raw string) string {
	n := phone.Normalize(raw)
	if len(n) > 0 && n[0] == '0' {
		return n[1:]
	}
	return n
}
