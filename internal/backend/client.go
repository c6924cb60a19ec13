// Package backend is the typed HTTP client of the lead-capture API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/observability"
)

var tracer = otel.Tracer("backend")

const (
	headerAuthorization   = "Authorization"
	headerContentType     = "Content-Type"
	headerAccept          = "Accept"
	bearerPrefix          = "Bearer "
	contentTypeJSON       = "application/json"
	maxErrorBodyBytes     = 64 * 1024
	defaultRequestTimeout = 30 * time.Second

	breakerName              = "lead-capture-api"
	breakerHalfOpenRequests  = 3
	breakerCounterInterval   = 30 * time.Second
	breakerOpenTimeout       = 10 * time.Second
	breakerMinimumRequests   = 5
	breakerTripFailureRatio  = 0.6
	logEventBackendRequest   = "backend_request"
	logEventBackendUnhealthy = "backend_breaker_state"

	errorMessageMissingBaseURL = "backend base url is required"
	errorMessageInvalidBaseURL = "invalid backend base url"
	errorMessageEncodeRequest  = "encode request"
	errorMessageBuildRequest   = "build request"
	errorMessageDecodeResponse = "decode response"
)

var (
	// ErrUnauthorized marks a rejected token or bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable marks a transport failure or an open circuit breaker.
	ErrUnavailable = errors.New("backend_unavailable")
	// ErrMissingToken is returned when an authenticated call has no token.
	ErrMissingToken = errors.New("missing_token")
	// ErrMissingRedirectURL is returned when a billing call answers without a url.
	ErrMissingRedirectURL = errors.New("missing_redirect_url")
)

// APIError is a non-2xx answer of the API with the message it carried.
type APIError struct {
	Status  int
	Message string
}

func (apiError *APIError) Error() string {
	if apiError.Message == "" {
		return fmt.Sprintf("backend status %d", apiError.Status)
	}
	return fmt.Sprintf("backend status %d: %s", apiError.Status, apiError.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 and 403 answers.
func (apiError *APIError) Is(target error) bool {
	return target == ErrUnauthorized && (apiError.Status == http.StatusUnauthorized || apiError.Status == http.StatusForbidden)
}

// ServerMessage extracts the API's message from err when there is one.
func ServerMessage(err error) (string, bool) {
	var apiError *APIError
	if errors.As(err, &apiError) && strings.TrimSpace(apiError.Message) != "" {
		return apiError.Message, true
	}
	return "", false
}

// HTTPClient is the subset of *http.Client the client depends on.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Config configures a Client. BaseURL is required.
type Config struct {
	BaseURL    string
	HTTPClient HTTPClient
	Breaker    *gobreaker.CircuitBreaker
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// Client calls the lead-capture API. It never retries; an unhealthy API trips
// the circuit breaker and subsequent calls fail fast with ErrUnavailable.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient validates the configuration and fills defaults.
func NewClient(config Config) (*Client, error) {
	trimmedBaseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if trimmedBaseURL == "" {
		return nil, errors.New(errorMessageMissingBaseURL)
	}
	parsedBaseURL, parseErr := url.Parse(trimmedBaseURL)
	if parseErr != nil || parsedBaseURL.Scheme == "" || parsedBaseURL.Host == "" {
		return nil, fmt.Errorf("%s: %q", errorMessageInvalidBaseURL, config.BaseURL)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	breaker := config.Breaker
	if breaker == nil {
		breaker = NewCircuitBreaker(logger)
	}

	return &Client{
		baseURL:    trimmedBaseURL,
		httpClient: httpClient,
		breaker:    breaker,
		metrics:    config.Metrics,
		logger:     logger,
	}, nil
}

// NewCircuitBreaker trips after a majority of failed calls and lets a trial call through after a pause.
// Client errors (4xx) count as successes so bad input never opens the circuit.
func NewCircuitBreaker(logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Interval:    breakerCounterInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinimumRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerTripFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(logEventBackendUnhealthy,
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var apiError *APIError
			return errors.As(err, &apiError) && apiError.Status < http.StatusInternalServerError
		},
	})
}

type requestSpec struct {
	operation    string
	method       string
	path         string
	token        string
	authenticate bool
	query        url.Values
	body         any
	result       any
}

func (client *Client) do(ctx context.Context, spec requestSpec) error {
	ctx, span := tracer.Start(ctx, "backend."+spec.operation)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", spec.method),
		attribute.String("url.path", spec.path),
	)

	if spec.authenticate && strings.TrimSpace(spec.token) == "" {
		span.SetStatus(codes.Error, ErrMissingToken.Error())
		return ErrMissingToken
	}

	var encodedBody []byte
	if spec.body != nil {
		var encodeErr error
		encodedBody, encodeErr = json.Marshal(spec.body)
		if encodeErr != nil {
			return fmt.Errorf("%s: %w", errorMessageEncodeRequest, encodeErr)
		}
	}

	startedAt := time.Now()
	_, executeErr := client.breaker.Execute(func() (interface{}, error) {
		return nil, client.roundTrip(ctx, spec, encodedBody)
	})
	duration := time.Since(startedAt)

	outcome := classifyOutcome(executeErr)
	client.metrics.ObserveBackendCall(spec.operation, outcome, duration)
	client.logger.Debug(logEventBackendRequest,
		zap.String("operation", spec.operation),
		zap.String("method", spec.method),
		zap.String("path", spec.path),
		zap.String("outcome", outcome),
		zap.Duration("dur", duration),
	)

	if executeErr == nil {
		return nil
	}
	span.RecordError(executeErr)
	span.SetStatus(codes.Error, executeErr.Error())
	if errors.Is(executeErr, gobreaker.ErrOpenState) || errors.Is(executeErr, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, executeErr)
	}
	return executeErr
}

func (client *Client) roundTrip(ctx context.Context, spec requestSpec, encodedBody []byte) error {
	endpoint := client.baseURL + spec.path
	if len(spec.query) > 0 {
		endpoint += "?" + spec.query.Encode()
	}

	var bodyReader io.Reader
	if encodedBody != nil {
		bodyReader = bytes.NewReader(encodedBody)
	}
	request, requestErr := http.NewRequestWithContext(ctx, spec.method, endpoint, bodyReader)
	if requestErr != nil {
		return fmt.Errorf("%s: %w", errorMessageBuildRequest, requestErr)
	}
	request.Header.Set(headerAccept, contentTypeJSON)
	if encodedBody != nil {
		request.Header.Set(headerContentType, contentTypeJSON)
	}
	if spec.authenticate {
		request.Header.Set(headerAuthorization, bearerPrefix+spec.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))

	response, responseErr := client.httpClient.Do(request)
	if responseErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, responseErr)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: response.StatusCode, Message: readErrorMessage(response.Body)}
	}
	if spec.result == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if decodeErr := json.NewDecoder(response.Body).Decode(spec.result); decodeErr != nil {
		return fmt.Errorf("%s: %w", errorMessageDecodeResponse, decodeErr)
	}
	return nil
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func readErrorMessage(body io.Reader) string {
	rawBody, readErr := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if readErr != nil || len(rawBody) == 0 {
		return ""
	}
	var payload errorPayload
	if json.Unmarshal(rawBody, &payload) != nil {
		return ""
	}
	if strings.TrimSpace(payload.Message) != "" {
		return strings.TrimSpace(payload.Message)
	}
	return strings.TrimSpace(payload.Error)
}

func classifyOutcome(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	var apiError *APIError
	if errors.As(err, &apiError) {
		if apiError.Status >= http.StatusInternalServerError {
			return observability.OutcomeServerError
		}
		return observability.OutcomeClientError
	}
	return observability.OutcomeUnavailable
}
