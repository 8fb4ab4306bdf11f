package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/lokabekas/lokabekas-backend/pkg/config"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

var (
	errServerKeyRequired = errors.New("payment gateway server key is required")
	errBaseURLRequired   = errors.New("payment gateway base url is required")
	errLoggerRequired    = errors.New("payment logger is required")
)

// Client wraps the Snap-style payment gateway REST API with centralized
// auth, logging, retries, and error mapping.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serverKey  string
	logger     *logger.Logger
}

// TransactionParams describes one charge attempt sent to the gateway.
type TransactionParams struct {
	OrderRef    string
	GrossAmount int64
	Items       []TransactionItem
	Customer    Customer
}

// TransactionItem mirrors one order line in the gateway request.
type TransactionItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// Customer identifies the payer.
type Customer struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// Session is the gateway's handle for a created transaction.
type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the gateway's view of one order ref.
type TransactionStatus struct {
	OrderRef          string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	GrossAmount       string `json:"gross_amount"`
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(cfg config.PaymentConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	serverKey := strings.TrimSpace(cfg.ServerKey)
	if serverKey == "" {
		return nil, errServerKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		serverKey:  serverKey,
		logger:     logg,
	}, nil
}

// CreateTransaction opens a payment session for one order ref. The ref must
// be unique per attempt; see NewOrderRef.
func (c *Client) CreateTransaction(ctx context.Context, params TransactionParams) (*Session, error) {
	if strings.TrimSpace(params.OrderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	if params.GrossAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}

	body := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     params.OrderRef,
			"gross_amount": params.GrossAmount,
		},
		"item_details":     params.Items,
		"customer_details": params.Customer,
	}
	c.log(ctx, "request", "create_transaction", map[string]any{
		"order_ref":    params.OrderRef,
		"gross_amount": params.GrossAmount,
		"item_count":   len(params.Items),
	})

	var session Session
	if err := c.do(ctx, http.MethodPost, "/snap/v1/transactions", body, &session); err != nil {
		c.log(ctx, "error", "create_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "create_transaction", map[string]any{"order_ref": params.OrderRef})
	return &session, nil
}

// GetStatus fetches the gateway's authoritative status for an order ref.
func (c *Client) GetStatus(ctx context.Context, orderRef string) (*TransactionStatus, error) {
	if strings.TrimSpace(orderRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order ref required")
	}
	c.log(ctx, "request", "get_status", map[string]any{"order_ref": orderRef})

	var status TransactionStatus
	if err := c.do(ctx, http.MethodGet, "/v2/"+orderRef+"/status", nil, &status); err != nil {
		c.log(ctx, "error", "get_status", map[string]any{"error": err.Error()})
		return nil, err
	}
	c.log(ctx, "response", "get_status", map[string]any{
		"order_ref": orderRef,
		"status":    status.TransactionStatus,
	})
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		payload = encoded
	}

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable"))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("payment gateway returned %d", resp.StatusCode)))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return pkgerrors.New(mapStatusCode(resp.StatusCode),
				fmt.Sprintf("payment gateway rejected request: %s", strings.TrimSpace(string(raw))))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
		}
		return nil
	})
}

func mapStatusCode(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeValidation
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("payment %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("payment %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "key", "secret", "email", "phone", "card"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
