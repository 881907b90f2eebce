// Package client provides the resilient HTTP client for the Animal API:
// pooled connections, request timeouts, status-code classification, and
// retry with exponential backoff and jitter.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/animal-etl/pkg/logging"
	"github.com/Sternrassler/animal-etl/pkg/model"
)

// Prometheus metrics for Animal API operations.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_requests_total",
		Help: "Total Animal API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animal_api_request_duration_seconds",
		Help:    "Animal API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_errors_total",
		Help: "Total Animal API errors by class",
	}, []string{"class"})

	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	apiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "animal_api_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_api_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// MaxBatchSize is the upstream limit on one load request.
const MaxBatchSize = 100

// Config holds the client configuration.
type Config struct {
	// BaseURL of the Animal API, without trailing slash.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout is the fixed total per-request timeout.
	Timeout time.Duration

	// Connection pool limits.
	MaxConns        int
	MaxConnsPerHost int

	// Retry is the process-wide retry schedule.
	Retry RetryPolicy

	// Logger overrides the default component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration for the given base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		UserAgent:       "animal-etl/0.1.0",
		Timeout:         30 * time.Second,
		MaxConns:        100,
		MaxConnsPerHost: 20,
		Retry:           DefaultRetryPolicy(),
	}
}

// Client is the resilient Animal API client. It owns one pooled transport,
// created at New and reused across all calls; Close releases it.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// New creates a new Animal API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.MaxAttempts > 1 && cfg.Retry.BackoffFactor <= 1 {
		return nil, fmt.Errorf("backoff factor must be > 1 (got %v)", cfg.Retry.BackoffFactor)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 100
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = 20
	}

	logger := logging.NewLogger("client")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		config:    cfg,
		logger:    logger,
	}, nil
}

// Close releases pooled connections. Safe to call more than once.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Page is one page of the animal listing.
type Page struct {
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Items      []json.RawMessage `json:"items"`
}

// ListAnimals retrieves one page of the paginated animal listing. An empty
// Items slice signals the end of pagination.
func (c *Client) ListAnimals(ctx context.Context, page, perPage int) (*Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	c.logger.Debug().Int("page", page).Msg("Fetching animal list page")

	var out Page
	if err := c.do(ctx, "list", http.MethodGet, "/animals/v1/animals", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAnimalDetails fetches the full record for one animal.
func (c *Client) GetAnimalDetails(ctx context.Context, id int64) (model.Animal, error) {
	c.logger.Debug().Int64("animal_id", id).Msg("Fetching animal details")

	var out model.Animal
	path := fmt.Sprintf("/animals/v1/animals/%d", id)
	if err := c.do(ctx, "detail", http.MethodGet, path, nil, nil, &out); err != nil {
		return model.Animal{}, err
	}
	return out, nil
}

// LoadAnimalsHome posts a batch of up to MaxBatchSize transformed animals to
// the home endpoint. Oversized batches are rejected locally before any
// network call.
func (c *Client) LoadAnimalsHome(ctx context.Context, animals []model.Animal) (map[string]any, error) {
	if len(animals) > MaxBatchSize {
		apiErrorsTotal.WithLabelValues(string(ErrorClassValidation)).Inc()
		return nil, &APIError{
			Class:   ErrorClassValidation,
			Message: fmt.Sprintf("cannot load %d animals at once", len(animals)),
			Err:     ErrBatchTooLarge,
		}
	}

	c.logger.Info().Int("count", len(animals)).Msg("Loading animals to home endpoint")

	var out map[string]any
	if err := c.do(ctx, "home", http.MethodPost, "/animals/v1/home", nil, animals, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HealthCheck probes the API docs endpoint. All failures collapse to false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if err := c.do(ctx, "health", http.MethodGet, "/docs", nil, nil, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Health check failed")
		return false
	}
	return true
}

// do performs one logical API call with retries. out, when non-nil, receives
// the decoded 200 response body; a decode failure is a non-retryable client
// error for this call.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return &APIError{Class: ErrorClassClient, Message: "encode request body", Err: err}
		}
	}

	var lastErr *APIError
	for attempt := 1; attempt <= c.config.Retry.MaxAttempts; attempt++ {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("method", method).
			Int("attempt", attempt).
			Msg("Executing API request")

		attemptErr := c.attempt(ctx, endpoint, method, target, payload, out)
		if attemptErr == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		apiErrorsTotal.WithLabelValues(string(attemptErr.Class)).Inc()

		if !attemptErr.Retryable() {
			c.logger.Error().
				Str("endpoint", endpoint).
				Int("status", attemptErr.StatusCode).
				Str("error_class", string(attemptErr.Class)).
				Msg("Request failed, not retryable")
			return attemptErr
		}

		lastErr = attemptErr
		if attempt >= c.config.Retry.MaxAttempts {
			break
		}

		backoff := c.config.Retry.Backoff(attempt)
		apiRetriesTotal.WithLabelValues(string(attemptErr.Class)).Inc()
		apiRetryBackoffSeconds.WithLabelValues(string(attemptErr.Class)).Observe(backoff.Seconds())

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Str("error_class", string(attemptErr.Class)).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}
	}

	apiRetryExhaustedTotal.WithLabelValues(string(lastErr.Class)).Inc()
	c.logger.Error().
		Str("endpoint", endpoint).
		Int("max_attempts", c.config.Retry.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, c.config.Retry.MaxAttempts, lastErr)
}

// attempt executes a single HTTP request and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint, method, target string, payload []byte, out any) *APIError {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return &APIError{Class: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return &APIError{Class: ErrorClassNetwork, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		}
	}

	if resp.StatusCode == http.StatusOK {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIError{
				StatusCode: resp.StatusCode,
				Class:      ErrorClassClient,
				Message:    "invalid JSON response",
				Err:        err,
			}
		}
		return nil
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Class:      classifyStatus(resp.StatusCode),
		Message:    truncate(string(respBody), 200),
	}
}

// truncate trims an error body for log and error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
