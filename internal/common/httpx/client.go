// Package httpx provides the HTTP client shared by the real network
// adapters: a fixed request timeout plus a circuit breaker that fails fast
// when an upstream keeps erroring. The breaker never retries; it only refuses
// calls while the upstream is considered down.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds client configuration.
type Config struct {
	Timeout          time.Duration `envconfig:"TIMEOUT" default:"30s"`
	BreakerInterval  time.Duration `envconfig:"BREAKER_INTERVAL" default:"60s"`
	BreakerCooldown  time.Duration `envconfig:"BREAKER_COOLDOWN" default:"30s"`
	BreakerThreshold uint32        `envconfig:"BREAKER_THRESHOLD" default:"5"`
}

// Client wraps http.Client with a named circuit breaker.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// New creates a client. The name shows up in breaker state-change logs and
// should identify the upstream network.
func New(name string, cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:     name,
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"upstream", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Do executes the request through the breaker. Responses with status 500 and
// above count as failures toward tripping; they are still returned to the
// caller for classification.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamDown
		}
		return resp, nil
	})
	if err != nil && !errors.Is(err, errUpstreamDown) {
		return nil, err
	}
	return res.(*http.Response), nil
}

// IsCircuitOpen reports whether the error means the breaker refused the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

var errUpstreamDown = errors.New("upstream returned 5xx")
