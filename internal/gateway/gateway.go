// Package gateway is the orchestrator that unifies the three mobile-money
// networks behind one surface: pay, smart-pay, status queries and callback
// normalization, with automatic network detection from the customer phone.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"momogateway/internal/common/events"
	"momogateway/internal/momo"
	"momogateway/internal/phone"
	"momogateway/internal/providers/airtel"
	"momogateway/internal/providers/mvola"
	"momogateway/internal/providers/orange"
	"momogateway/internal/providers/simulator"
)

// Config holds gateway configuration. When Simulation is set every network is
// bound to a simulated adapter and the supplied credentials are ignored;
// simulated and real adapters never coexist in one gateway.
type Config struct {
	Simulation bool             `envconfig:"GATEWAY_SIMULATION" default:"false"`
	Simulator  simulator.Config `envconfig:"GATEWAY"`

	MVola  mvola.Config
	Orange orange.Config
	Airtel airtel.Config
}

// EventPublisher publishes gateway events. A nil publisher disables emission.
type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// Gateway owns the configured adapters.
type Gateway struct {
	adapters  map[momo.Network]momo.Provider
	publisher EventPublisher
	logger    *slog.Logger
}

// New builds a gateway. Adapter binding happens exactly once here.
func New(cfg Config, logger *slog.Logger) *Gateway {
	adapters := make(map[momo.Network]momo.Provider)

	if cfg.Simulation {
		for _, n := range momo.Networks() {
			adapters[n] = simulator.NewAdapter(n, cfg.Simulator, logger)
		}
		logger.Info("gateway running in simulation mode",
			"success_rate", cfg.Simulator.SuccessRate,
			"simulate_pending", cfg.Simulator.SimulatePending,
		)
	} else {
		if cfg.MVola.Configured() {
			adapters[momo.NetworkMVola] = mvola.NewAdapter(cfg.MVola, logger)
		}
		if cfg.Orange.Configured() {
			adapters[momo.NetworkOrange] = orange.NewAdapter(cfg.Orange, logger)
		}
		if cfg.Airtel.Configured() {
			adapters[momo.NetworkAirtel] = airtel.NewAdapter(cfg.Airtel, logger)
		}
	}

	networks := make([]string, 0, len(adapters))
	for n := range adapters {
		networks = append(networks, n.String())
	}
	logger.Info("gateway initialized", "networks", networks)

	return &Gateway{
		adapters: adapters,
		logger:   logger,
	}
}

// SetPublisher attaches the event publisher.
func (g *Gateway) SetPublisher(p EventPublisher) {
	g.publisher = p
}

// DetectNetwork resolves the owning network of a phone number; ok is false
// for any invalid classification.
func (g *Gateway) DetectNetwork(rawPhone string) (momo.Network, bool) {
	return phone.NetworkFor(rawPhone)
}

// HasNetwork reports whether an adapter is bound for the network.
func (g *Gateway) HasNetwork(network momo.Network) bool {
	_, ok := g.adapters[network]
	return ok
}

// Networks lists the configured networks.
func (g *Gateway) Networks() []momo.Network {
	out := make([]momo.Network, 0, len(g.adapters))
	for _, n := range momo.Networks() {
		if _, ok := g.adapters[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Pay initiates a unified payment. The network is inferred from the customer
// phone when absent; the phone is validated either way, before any adapter is
// touched.
func (g *Gateway) Pay(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c := phone.Classify(req.CustomerPhone)

	if req.Network == "" {
		if !c.Valid {
			return nil, momo.NewError(momo.KindDetectionFailed, "",
				fmt.Sprintf("could not detect network for %q: %s", req.CustomerPhone, c.Reason), nil)
		}
		req.Network = c.Network
	} else if !c.Valid {
		// An explicit network does not excuse an invalid phone.
		return nil, momo.NewError(momo.KindInvalidPhone, req.Network, c.Reason, nil)
	}
	req.CustomerPhone = c.Normalized

	adapter, ok := g.adapters[req.Network]
	if !ok {
		return nil, momo.NewError(momo.KindNetworkNotConfigured, req.Network,
			fmt.Sprintf("network %s has no configured adapter", req.Network), nil)
	}

	g.logger.Info("routing payment",
		"network", req.Network,
		"amount", req.Amount,
		"phone", req.CustomerPhone,
	)

	resp, err := adapter.InitiatePayment(ctx, req)
	if err != nil {
		return nil, err
	}

	g.publishInitiated(ctx, req.Amount, resp)
	return resp, nil
}

// SmartPayOptions carries the optional fields of a smart payment.
type SmartPayOptions struct {
	Description string
	Reference   string
	Metadata    map[string]string
}

// SmartPay detects the network from the phone, verifies it is configured and
// delegates to Pay.
func (g *Gateway) SmartPay(ctx context.Context, rawPhone string, amount int64, opts SmartPayOptions) (*momo.PaymentResponse, error) {
	network, ok := g.DetectNetwork(rawPhone)
	if !ok {
		return nil, momo.NewError(momo.KindDetectionFailed, "",
			fmt.Sprintf("phone %q is not recognized by any network", rawPhone), nil)
	}
	if !g.HasNetwork(network) {
		return nil, momo.NewError(momo.KindNetworkNotConfigured, network,
			fmt.Sprintf("network %s has no configured adapter", network), nil)
	}

	return g.Pay(ctx, momo.PaymentRequest{
		Network:       network,
		Amount:        amount,
		Currency:      momo.Currency,
		CustomerPhone: rawPhone,
		Description:   opts.Description,
		Reference:     opts.Reference,
		Metadata:      opts.Metadata,
	})
}

// GetStatus queries the current state of a transaction on its network.
func (g *Gateway) GetStatus(ctx context.Context, q momo.StatusQuery) (*momo.TransactionDetail, error) {
	if _, err := momo.ParseNetwork(string(q.Network)); err != nil {
		return nil, momo.NewError(momo.KindUnknownNetwork, "", err.Error(), nil)
	}

	adapter, ok := g.adapters[q.Network]
	if !ok {
		return nil, momo.NewError(momo.KindNetworkNotConfigured, q.Network,
			fmt.Sprintf("network %s has no configured adapter", q.Network), nil)
	}

	detail, err := adapter.GetTransactionStatus(ctx, q)
	if err != nil {
		return nil, err
	}

	if detail.Status.IsTerminal() {
		g.publishStatus(ctx, detail)
	}
	return detail, nil
}

// ParseCallback normalizes a raw provider notification. Dispatch is purely on
// the network value; the payload stays opaque until the network's extraction
// function sees it.
func (g *Gateway) ParseCallback(ctx context.Context, network string, raw []byte) (*momo.CallbackData, error) {
	n, err := momo.ParseNetwork(network)
	if err != nil {
		return nil, momo.NewError(momo.KindUnknownNetwork, "", err.Error(), nil)
	}

	var data *momo.CallbackData
	switch n {
	case momo.NetworkMVola:
		data, err = mvola.ParseCallback(raw)
	case momo.NetworkOrange:
		data, err = orange.ParseCallback(raw)
	case momo.NetworkAirtel:
		data, err = airtel.ParseCallback(raw)
	}
	if err != nil {
		return nil, err
	}

	g.logger.Info("callback normalized",
		"network", n,
		"transaction_id", data.TransactionID,
		"status", data.Status,
		"native_status", data.NativeStatus,
	)

	g.publishCallback(ctx, data)
	return data, nil
}

func (g *Gateway) publishInitiated(ctx context.Context, amount int64, resp *momo.PaymentResponse) {
	if g.publisher == nil {
		return
	}

	event, err := events.NewEvent(events.EventPaymentInitiated, resp.Network, resp.TransactionID, events.PaymentInitiatedData{
		Network:       resp.Network,
		TransactionID: resp.TransactionID,
		CorrelationID: resp.CorrelationID,
		Amount:        amount,
		Currency:      momo.Currency,
		Status:        resp.Status,
		RedirectURL:   resp.RedirectURL,
	})
	if err != nil {
		g.logger.Error("build payment.initiated event", "error", err)
		return
	}
	if err := g.publisher.Publish(ctx, event.WithCorrelation(resp.CorrelationID)); err != nil {
		g.logger.Error("publish payment.initiated event", "error", err)
	}
}

func (g *Gateway) publishStatus(ctx context.Context, detail *momo.TransactionDetail) {
	if g.publisher == nil {
		return
	}

	event, err := events.NewEvent(events.EventPaymentStatus, detail.Network, detail.TransactionID, events.PaymentStatusData{
		Network:       detail.Network,
		TransactionID: detail.TransactionID,
		Status:        detail.Status,
		Amount:        detail.Amount,
	})
	if err != nil {
		g.logger.Error("build payment.status event", "error", err)
		return
	}
	if err := g.publisher.Publish(ctx, event.WithCorrelation(detail.CorrelationID)); err != nil {
		g.logger.Error("publish payment.status event", "error", err)
	}
}

func (g *Gateway) publishCallback(ctx context.Context, data *momo.CallbackData) {
	if g.publisher == nil {
		return
	}

	event, err := events.NewEvent(events.EventCallbackReceived, data.Network, data.TransactionID, events.CallbackReceivedData{
		Network:       data.Network,
		TransactionID: data.TransactionID,
		Status:        data.Status,
		NativeStatus:  data.NativeStatus,
		Amount:        data.Amount,
	})
	if err != nil {
		g.logger.Error("build callback event", "error", err)
		return
	}
	if err := g.publisher.Publish(ctx, event.WithCorrelation(data.CorrelationID)); err != nil {
		g.logger.Error("publish callback event", "error", err)
	}
}
