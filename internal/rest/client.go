package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/docchat/realtime/internal/infrastructure/logging"
	"github.com/docchat/realtime/internal/infrastructure/resilience"
)

// Client wraps resty with rate limiting and a circuit breaker for the
// chat CRUD endpoints.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.resty.SetAuthToken(token)
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.resty.SetTimeout(d)
	}
}

// WithRateLimit bounds outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for the backend REST API.
func New(baseURL string, log *logging.Logger, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "docchat-realtime/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("rest", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	c := &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Inf, 0),
		breaker: breaker,
		log:     log.Named("rest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState exposes the circuit breaker state for health surfaces.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// execute runs one request through the limiter and breaker.
func (c *Client) execute(ctx context.Context, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.resty.R().
			SetContext(ctx).
			SetHeader("X-Request-ID", uuid.NewString())
		resp, err := fn(req)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return resp, fmt.Errorf("backend returned %s: %s", resp.Status(), resp.String())
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*resty.Response), nil
}
