package paypal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ccpq/academy-service/internal/config"
	"github.com/ccpq/academy-service/internal/metrics"
	"github.com/ccpq/academy-service/internal/models"
)

var (
	// ErrProviderUnavailable covers transport failures and exhausted retries
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrAuthentication is returned when the client-credentials grant fails
	ErrAuthentication = fmt.Errorf("failed to authenticate with PayPal: %w", ErrProviderUnavailable)
)

// ProviderError is a non-success response from the provider. Body is for logs only.
type ProviderError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("paypal %s failed with status %d", e.Operation, e.StatusCode)
}

// OrderParams describes a single-course checkout
type OrderParams struct {
	CourseID    string
	Description string
	AmountCents int64
	ReturnURL   string
	CancelURL   string
	// RequestID is sent as PayPal-Request-Id so retries are idempotent at the provider
	RequestID string
}

type Client struct {
	cfg    config.PayPalConfig
	http   *resty.Client
	tokens oauth2.TokenSource
	logger *slog.Logger
}

func NewClient(cfg config.PayPalConfig, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.APIBase, "/")

	httpClient := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(max(cfg.RetryWait*4, time.Second)).
		AddRetryCondition(shouldRetry)

	credentials := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.Secret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		tokens: credentials.TokenSource(tokenCtx),
		logger: logger,
	}
}

// shouldRetry retries transport errors, 429 and 5xx. Other 4xx responses are final.
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) accessToken() (string, error) {
	if err := c.cfg.Credentials(); err != nil {
		return "", err
	}
	token, err := c.tokens.Token()
	if err != nil {
		c.logger.Error("PayPal auth error", "error", err)
		return "", ErrAuthentication
	}
	return token.AccessToken, nil
}

// CreateOrder creates a CAPTURE order for one course priced in ZAR
func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (*Order, error) {
	body := CreateOrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{{
			ReferenceID: params.CourseID,
			Description: params.Description,
			Amount: Amount{
				CurrencyCode: models.CurrencyZAR,
				Value:        FormatAmount(params.AmountCents),
			},
		}},
	}
	body.PaymentSource.PayPal.ExperienceContext = ExperienceContext{
		PaymentMethodPreference: "IMMEDIATE_PAYMENT_REQUIRED",
		BrandName:               c.cfg.BrandName,
		Locale:                  c.cfg.Locale,
		LandingPage:             "LOGIN",
		UserAction:              "PAY_NOW",
		ReturnURL:               firstNonEmpty(params.ReturnURL, c.cfg.DefaultReturnURL),
		CancelURL:               firstNonEmpty(params.CancelURL, c.cfg.DefaultCancelURL),
	}

	var order Order
	if err := c.post(ctx, "create_order", "/v2/checkout/orders", params.RequestID, body, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder captures an approved order. The request id is derived from the
// order id so repeated captures collapse at the provider.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	path := "/v2/checkout/orders/" + orderID + "/capture"
	if err := c.post(ctx, "capture_order", path, "capture-"+orderID, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) post(ctx context.Context, operation, path, requestID string, body interface{}, result *Order) error {
	token, err := c.accessToken()
	if err != nil {
		return err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(result)
	if requestID != "" {
		req.SetHeader("PayPal-Request-Id", requestID)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Post(path)
	metrics.ProviderRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		c.logger.ErrorContext(ctx, "PayPal request failed", "operation", operation, "error", err)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.IsError() {
		c.logger.ErrorContext(ctx, "PayPal error response",
			"operation", operation,
			"status", resp.StatusCode(),
			"body", resp.String())
		return &ProviderError{Operation: operation, StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	result.Raw = append(result.Raw[:0], resp.Body()...)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
