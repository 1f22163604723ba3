package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/notelay/notelay-backend/pkg/config"
	pkgerrors "github.com/notelay/notelay-backend/pkg/errors"
	"github.com/notelay/notelay-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultTimeout = 15 * time.Second
)

var (
	errAPIKeyRequired   = errors.New("mollie api key is required")
	errInvalidMollieEnv = fmt.Errorf("mollie environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps the payment processor's REST API with centralized auth,
// logging, and error mapping. All processor-specific response shapes stay in
// this package.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	environment string
	logger      *logger.Logger
}

// NewClient initializes the processor wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MollieConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mollie.com/v2"
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		environment: env,
		logger:      logg,
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("mollie client initialized (%s)", env))
	}
	return c, nil
}

// Environment reports the normalized processor environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// GetPayment fetches a payment by its processor id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetCustomer fetches a customer, used for the secondary email lookup.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+customerID, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// GetPaymentLink resolves a payment link to its underlying payment reference.
func (c *Client) GetPaymentLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	if strings.TrimSpace(linkID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link id is required")
	}
	var link PaymentLink
	if err := c.do(ctx, http.MethodGet, "/payment-links/"+linkID, nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// CreatePayment opens a new payment at the processor and returns the hosted
// checkout reference.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var payment Payment
	if err := c.do(ctx, http.MethodPost, "/payments", input, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment processor")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("processor resource %s not found", path))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "processor rejected credentials")
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("processor unavailable (status %d)", resp.StatusCode))
	case resp.StatusCode >= 400:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("processor rejected request (status %d)", resp.StatusCode)).
			WithDetails(readErrorDetail(resp.Body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode processor response")
	}
	return nil
}

func readErrorDetail(body io.Reader) map[string]any {
	var detail map[string]any
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&detail); err != nil {
		return nil
	}
	return detail
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidMollieEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "test_") {
			return nil
		}
		return fmt.Errorf("mollie environment %q requires a test api key (test_)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "live_") {
			return nil
		}
		return fmt.Errorf("mollie environment %q requires a live api key (live_)", liveEnv)
	default:
		return errInvalidMollieEnv
	}
}
