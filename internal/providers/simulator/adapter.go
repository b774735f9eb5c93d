// Package simulator provides an in-memory stand-in for any network adapter.
// It satisfies the same three-operation contract without credentials or
// network access, for development and test environments.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"momogateway/internal/momo"
)

// Config holds simulator parameters.
type Config struct {
	// SuccessRate is the percentage (0-100) of payments that succeed.
	SuccessRate int `envconfig:"SIM_SUCCESS_RATE" default:"100"`

	// SimulatePending makes payments start pending and flip to a terminal
	// state after FlipDelay, mimicking asynchronous confirmation.
	SimulatePending bool          `envconfig:"SIM_PENDING" default:"false"`
	FlipDelay       time.Duration `envconfig:"SIM_FLIP_DELAY" default:"3s"`

	// ResponseDelay is applied before returning from any operation. A
	// negative value (the default) picks a random delay between 200 and
	// 800 ms per call; zero disables the artificial latency.
	ResponseDelay time.Duration `envconfig:"SIM_RESPONSE_DELAY" default:"-1ms"`
}

// record is the stored state of a simulated transaction.
type record struct {
	request     momo.PaymentRequest
	status      momo.Status
	amount      int64
	phone       string
	createdAt   time.Time
	completedAt *time.Time
}

// Adapter implements momo.Provider entirely in memory.
type Adapter struct {
	network momo.Network
	config  Config
	logger  *slog.Logger

	mu   sync.RWMutex
	txns map[string]*record
}

// NewAdapter creates a simulated adapter bound to one network identity.
func NewAdapter(network momo.Network, cfg Config, logger *slog.Logger) *Adapter {
	return &Adapter{
		network: network,
		config:  cfg,
		logger:  logger,
		txns:    make(map[string]*record),
	}
}

// Network implements momo.Provider.
func (a *Adapter) Network() momo.Network { return a.network }

// Authenticate implements momo.Provider. There is nothing to authenticate
// against; only the artificial latency is applied.
func (a *Adapter) Authenticate(ctx context.Context) error {
	return a.sleep(ctx)
}

// InitiatePayment implements momo.Provider.
func (a *Adapter) InitiatePayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}

	txnID := fmt.Sprintf("SIM-%s", ulid.Make().String())
	correlationID := uuid.NewString()

	status := momo.StatusPending
	if !a.config.SimulatePending {
		status = a.drawTerminal()
	}

	now := time.Now()
	rec := &record{
		request:   req,
		status:    status,
		amount:    req.Amount,
		phone:     req.CustomerPhone,
		createdAt: now,
	}
	if status.IsTerminal() {
		rec.completedAt = &now
	}

	a.mu.Lock()
	a.txns[txnID] = rec
	a.mu.Unlock()

	if a.config.SimulatePending {
		time.AfterFunc(a.config.FlipDelay, func() { a.flip(txnID) })
	}

	a.logger.Debug("simulated payment initiated",
		"network", a.network,
		"transaction_id", txnID,
		"status", status,
	)

	resp := &momo.PaymentResponse{
		Success:       true,
		Network:       a.network,
		TransactionID: txnID,
		CorrelationID: correlationID,
		Status:        status,
		Message:       "simulated payment",
	}
	// Mirror the real Orange adapter's redirect flow.
	if a.network == momo.NetworkOrange {
		resp.RedirectURL = fmt.Sprintf("https://pay.simulator.invalid/%s", txnID)
	}

	return resp, nil
}

// GetTransactionStatus implements momo.Provider. An unknown transaction id
// yields a failed status with zero amount rather than an error, matching the
// real networks' habit of always answering with something.
func (a *Adapter) GetTransactionStatus(ctx context.Context, q momo.StatusQuery) (*momo.TransactionDetail, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}

	a.mu.RLock()
	rec, ok := a.txns[q.TransactionID]
	a.mu.RUnlock()

	if !ok {
		return &momo.TransactionDetail{
			Network:       a.network,
			TransactionID: q.TransactionID,
			Status:        momo.StatusFailed,
			Amount:        0,
			Currency:      momo.Currency,
		}, nil
	}

	created := rec.createdAt
	return &momo.TransactionDetail{
		Network:       a.network,
		TransactionID: q.TransactionID,
		CorrelationID: q.CorrelationID,
		Status:        rec.status,
		Amount:        rec.amount,
		Currency:      momo.Currency,
		DebitPhone:    rec.phone,
		CreatedAt:     &created,
		CompletedAt:   rec.completedAt,
	}, nil
}

// ForceStatus overrides a transaction's status. It reports false when the
// transaction id is unknown. Test hook only.
func (a *Adapter) ForceStatus(txnID string, status momo.Status) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.txns[txnID]
	if !ok {
		return false
	}
	rec.status = status
	if status.IsTerminal() {
		now := time.Now()
		rec.completedAt = &now
	}
	return true
}

// Clear drops every stored transaction. Test hook only.
func (a *Adapter) Clear() {
	a.mu.Lock()
	a.txns = make(map[string]*record)
	a.mu.Unlock()
}

// flip moves a pending transaction to a weighted terminal state.
func (a *Adapter) flip(txnID string) {
	terminal := a.drawTerminal()

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.txns[txnID]
	if !ok || rec.status.IsTerminal() {
		return
	}
	rec.status = terminal
	now := time.Now()
	rec.completedAt = &now
}

func (a *Adapter) drawTerminal() momo.Status {
	if rand.Intn(100) < a.config.SuccessRate {
		return momo.StatusSuccess
	}
	return momo.StatusFailed
}

// sleep applies the configured artificial latency, honoring cancellation.
func (a *Adapter) sleep(ctx context.Context) error {
	delay := a.config.ResponseDelay
	if delay < 0 {
		delay = time.Duration(rand.Intn(600)+200) * time.Millisecond
	}
	if delay == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
