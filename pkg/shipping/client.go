package shipping

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

	"github.com/lokabekas/lokabekas-backend/pkg/config"
	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

var (
	errAPIKeyRequired  = errors.New("shipping api key is required")
	errBaseURLRequired = errors.New("shipping base url is required")
	errLoggerRequired  = errors.New("shipping logger is required")
)

// Client wraps the shipping-rate REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *logger.Logger
}

// CostQuery asks for rates between two postal codes for a parcel weight.
type CostQuery struct {
	OriginPostalCode      string
	DestinationPostalCode string
	WeightGrams           int
	Couriers              []string
}

// Rate is one courier service quote.
type Rate struct {
	Courier string `json:"courier"`
	Service string `json:"service"`
	CostIDR int64  `json:"cost"`
	ETD     string `json:"etd"`
}

// NewClient initializes the shipping wrapper and validates the credentials.
func NewClient(cfg config.ShippingConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logg,
	}, nil
}

// GetCost fetches courier quotes. An empty result is an error: checkout
// cannot price shipping without at least one rate.
func (c *Client) GetCost(ctx context.Context, query CostQuery) ([]Rate, error) {
	if query.OriginPostalCode == "" || query.DestinationPostalCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin and destination postal codes required")
	}
	if query.WeightGrams <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight must be positive")
	}
	couriers := query.Couriers
	if len(couriers) == 0 {
		couriers = []string{"jne", "sicepat", "anteraja"}
	}

	body, err := json.Marshal(map[string]any{
		"origin":      query.OriginPostalCode,
		"destination": query.DestinationPostalCode,
		"weight":      query.WeightGrams,
		"couriers":    strings.Join(couriers, ","),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipping request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cost", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shipping request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shipping gateway unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read shipping response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("shipping gateway returned %d", resp.StatusCode))
	}

	var payload struct {
		Rates []Rate `json:"rates"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipping response")
	}
	if len(payload.Rates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no shipping rates available for route")
	}

	if c.logger != nil {
		logCtx := c.logger.WithFields(ctx, map[string]any{
			"origin":      query.OriginPostalCode,
			"destination": query.DestinationPostalCode,
			"rate_count":  len(payload.Rates),
		})
		c.logger.Info(logCtx, "shipping rates fetched")
	}
	return payload.Rates, nil
}

// CheapestRate picks the lowest quote from a rate list.
func CheapestRate(rates []Rate) (Rate, error) {
	if len(rates) == 0 {
		return Rate{}, pkgerrors.New(pkgerrors.CodeDependency, "no shipping rates available")
	}
	best := rates[0]
	for _, rate := range rates[1:] {
		if rate.CostIDR < best.CostIDR {
			best = rate
		}
	}
	return best, nil
}
