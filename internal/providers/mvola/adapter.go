// Package mvola provides the MVola (Telma) merchant-pay adapter.
package mvola

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"momogateway/internal/common/httpx"
	"momogateway/internal/momo"
	"momogateway/internal/phone"
)

// Config holds MVola adapter configuration.
type Config struct {
	BaseURL        string `envconfig:"MVOLA_BASE_URL"`
	ConsumerKey    string `envconfig:"MVOLA_CONSUMER_KEY"`
	ConsumerSecret string `envconfig:"MVOLA_CONSUMER_SECRET"`
	MerchantNumber string `envconfig:"MVOLA_MERCHANT_NUMBER"`
	PartnerName    string `envconfig:"MVOLA_PARTNER_NAME"`
	CallbackURL    string `envconfig:"MVOLA_CALLBACK_URL"`
	UserLanguage   string `envconfig:"MVOLA_USER_LANGUAGE" default:"MG"`

	HTTP httpx.Config `envconfig:"MVOLA_HTTP"`
}

// Configured reports whether a credential bundle was supplied.
func (c Config) Configured() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

// MVola transmits amounts in ariary with its own currency label.
const nativeCurrency = "Ar"

// maxDescription is MVola's descriptionText limit.
const maxDescription = 50

const (
	tokenPath    = "/token"
	merchantPath = "/mvola/mm/transactions/type/merchantpay/1.0.0/"
)

// statusTable maps MVola's lowercase status words to unified statuses.
var statusTable = momo.StatusTable{
	"pending":   momo.StatusPending,
	"completed": momo.StatusSuccess,
	"failed":    momo.StatusFailed,
	"cancelled": momo.StatusCancelled,
}

// tokenResponse is the OAuth token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// keyValue is MVola's party and metadata entry encoding.
type keyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// initiateRequest is the merchant-pay request body.
type initiateRequest struct {
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	DescriptionText string     `json:"descriptionText"`
	RequestDate     string     `json:"requestDate"`
	DebitParty      []keyValue `json:"debitParty"`
	CreditParty     []keyValue `json:"creditParty"`
	Metadata        []keyValue `json:"metadata,omitempty"`
	RequestingOrganisationTransactionReference string `json:"requestingOrganisationTransactionReference"`
}

// initiateResponse is the merchant-pay response body.
type initiateResponse struct {
	Status              string `json:"status"`
	ServerCorrelationID string `json:"serverCorrelationId"`
	NotificationMethod  string `json:"notificationMethod"`
	ObjectReference     string `json:"objectReference"`
}

// statusResponse is the status query response body.
type statusResponse struct {
	Status              string `json:"status"`
	ServerCorrelationID string `json:"serverCorrelationId"`
	ObjectReference     string `json:"objectReference"`
}

// detailResponse is the transaction details response body.
type detailResponse struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	TransactionStatus string `json:"transactionStatus"`
	CreateDate        string `json:"requestDate"`
	Fees              []struct {
		FeeAmount string `json:"feeAmount"`
	} `json:"fees"`
	DebitParty  []keyValue `json:"debitParty"`
	CreditParty []keyValue `json:"creditParty"`
}

// Adapter implements the MVola network provider.
type Adapter struct {
	config Config
	client *httpx.Client
	tokens *momo.TokenSource
	logger *slog.Logger
}

// NewAdapter creates a new MVola adapter.
func NewAdapter(cfg Config, logger *slog.Logger) *Adapter {
	a := &Adapter{
		config: cfg,
		client: httpx.New("mvola", cfg.HTTP, logger),
		logger: logger,
	}
	a.tokens = momo.NewTokenSource(a.fetchToken)
	return a
}

// Network implements momo.Provider.
func (a *Adapter) Network() momo.Network { return momo.NetworkMVola }

// Authenticate implements momo.Provider. It forces a token refresh; regular
// operations obtain tokens lazily through the cache.
func (a *Adapter) Authenticate(ctx context.Context) error {
	return a.tokens.Refresh(ctx)
}

func (a *Adapter) fetchToken(ctx context.Context) (momo.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", "EXT_INT_MVOLA_SCOPE")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkMVola, "create token request", err)
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkMVola, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkMVola, "read token response", err)
	}
	if resp.StatusCode >= 400 {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkMVola,
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil).WithBody(body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return momo.Token{}, momo.NewError(momo.KindAuthenticationFailed, momo.NetworkMVola, "unmarshal token response", err)
	}

	a.logger.Debug("MVola token refreshed", "expires_in", tr.ExpiresIn)

	return momo.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresAt:   time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// InitiatePayment implements momo.Provider.
func (a *Adapter) InitiatePayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	customer := phone.Normalize(req.CustomerPhone)
	merchant := phone.Normalize(a.config.MerchantNumber)

	reference := req.Reference
	if reference == "" {
		reference = momo.NewReference("MVL")
	}

	description := req.Description
	if description == "" {
		description = reference
	}
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}

	correlationID := uuid.NewString()

	metadata := []keyValue{{Key: "partnerName", Value: a.config.PartnerName}}
	for k, v := range req.Metadata {
		metadata = append(metadata, keyValue{Key: k, Value: v})
	}

	body := initiateRequest{
		Amount:          strconv.FormatInt(req.Amount, 10),
		Currency:        nativeCurrency,
		DescriptionText: description,
		RequestDate:     time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		DebitParty:      []keyValue{{Key: "msisdn", Value: customer}},
		CreditParty:     []keyValue{{Key: "msisdn", Value: merchant}},
		Metadata:        metadata,
		RequestingOrganisationTransactionReference: reference,
	}

	a.logger.Info("initiating MVola payment",
		"reference", reference,
		"correlation_id", correlationID,
		"amount", req.Amount,
	)

	raw, err := a.doJSON(ctx, http.MethodPost, merchantPath, correlationID, body)
	if err != nil {
		return nil, err
	}

	var resp initiateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkMVola, "unmarshal initiate response", err)
	}

	status, known := statusTable.Normalize(resp.Status)
	if !known {
		a.logger.Warn("unmapped MVola status", "native_status", resp.Status)
	}

	transactionID := resp.ObjectReference
	if transactionID == "" {
		transactionID = reference
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	return &momo.PaymentResponse{
		Success:       true,
		Network:       momo.NetworkMVola,
		TransactionID: transactionID,
		CorrelationID: resp.ServerCorrelationID,
		Status:        status,
		Message:       "payment request accepted",
		Raw:           rawMap,
	}, nil
}

// GetTransactionStatus implements momo.Provider. MVola keys status queries on
// the server correlation id returned at initiation; once the transaction is
// terminal the object reference is followed for the full detail.
func (a *Adapter) GetTransactionStatus(ctx context.Context, q momo.StatusQuery) (*momo.TransactionDetail, error) {
	correlationID := q.CorrelationID
	if correlationID == "" {
		return nil, momo.NewError(momo.KindUpstreamValidation, momo.NetworkMVola, "correlation id is required for MVola status queries", nil)
	}

	raw, err := a.doJSON(ctx, http.MethodGet, merchantPath+"status/"+correlationID, uuid.NewString(), nil)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkMVola, "unmarshal status response", err)
	}

	status, known := statusTable.Normalize(resp.Status)
	if !known {
		a.logger.Warn("unmapped MVola status", "native_status", resp.Status)
	}

	detail := &momo.TransactionDetail{
		Network:       momo.NetworkMVola,
		TransactionID: resp.ObjectReference,
		CorrelationID: correlationID,
		Status:        status,
		Currency:      momo.Currency,
	}
	if detail.TransactionID == "" {
		detail.TransactionID = q.TransactionID
	}

	if status.IsTerminal() && resp.ObjectReference != "" {
		if err := a.fillDetail(ctx, resp.ObjectReference, detail); err != nil {
			// Detail enrichment is best effort; the normalized status stands.
			a.logger.Warn("MVola transaction detail lookup failed", "error", err)
		}
	}

	return detail, nil
}

func (a *Adapter) fillDetail(ctx context.Context, objectReference string, detail *momo.TransactionDetail) error {
	raw, err := a.doJSON(ctx, http.MethodGet, merchantPath+objectReference, uuid.NewString(), nil)
	if err != nil {
		return err
	}

	var resp detailResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("unmarshal detail response: %w", err)
	}

	detail.Amount = momo.ParseAmount(resp.Amount)
	for _, fee := range resp.Fees {
		detail.Fees += momo.ParseAmount(fee.FeeAmount)
	}
	for _, p := range resp.DebitParty {
		if p.Key == "msisdn" {
			detail.DebitPhone = p.Value
		}
	}
	for _, p := range resp.CreditParty {
		if p.Key == "msisdn" {
			detail.CreditPhone = p.Value
		}
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", resp.CreateDate); err == nil {
		detail.CreatedAt = &t
	}

	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)
	detail.Raw = rawMap

	return nil
}

// doJSON performs an authenticated MVola API call with the mandatory header
// set and classifies HTTP failures into the gateway error taxonomy.
func (a *Adapter) doJSON(ctx context.Context, method, path, correlationID string, payload any) ([]byte, error) {
	token, err := a.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, momo.NewError(momo.KindInternal, momo.NetworkMVola, "marshal request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, momo.NewError(momo.KindInternal, momo.NetworkMVola, "create request", err)
	}

	merchant := phone.Normalize(a.config.MerchantNumber)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Version", "1.0")
	req.Header.Set("X-CorrelationID", correlationID)
	req.Header.Set("UserLanguage", a.config.UserLanguage)
	req.Header.Set("UserAccountIdentifier", "msisdn;"+merchant)
	req.Header.Set("partnerName", a.config.PartnerName)
	req.Header.Set("Cache-Control", "no-cache")
	if a.config.CallbackURL != "" {
		req.Header.Set("X-Callback-URL", a.config.CallbackURL)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if httpx.IsCircuitOpen(err) {
			return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkMVola, "MVola circuit open", err)
		}
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkMVola, "http request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, momo.NewError(momo.KindUpstreamServerError, momo.NetworkMVola, "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, momo.ClassifyHTTPStatus(momo.NetworkMVola, resp.StatusCode, body)
	}

	return body, nil
}
