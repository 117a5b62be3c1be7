// Package card implements the provider capability for card collections.
package card

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/provider"

	"go.uber.org/zap"
)

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
}

type Card struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Card {
	return &Card{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

var _ provider.Provider = (*Card)(nil)

func (c *Card) Name() domain.PaymentProvider { return domain.ProviderCard }

func (c *Card) Initiate(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	payload := map[string]any{
		"reference":    req.Reference,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"description":  req.Description,
		"callback_url": c.cfg.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, domain.ErrProviderTimeout
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Warn("card gateway rejected charge",
			zap.String("reference", req.Reference),
			zap.Int("status", resp.StatusCode))
		return nil, domain.ErrProviderRejected
	}

	var res struct {
		ChargeID string `json:"charge_id"`
		Status   string `json:"status"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}

	status := domain.TxStatusProcessing
	switch res.Status {
	case "succeeded":
		status = domain.TxStatusCompleted
	case "declined":
		status = domain.TxStatusFailed
	}
	return &provider.InitiateResponse{
		Status:      status,
		ProviderRef: res.ChargeID,
		Message:     res.Message,
	}, nil
}

// Collect charges the cardholder. Card money only moves inward, so this is
// the same gateway call Initiate makes.
func (c *Card) Collect(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	return c.Initiate(ctx, req)
}

func (c *Card) Query(ctx context.Context, providerRef string) (*provider.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/charges/%s", c.cfg.BaseURL, providerRef), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res struct {
		Status  string `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}

	status := domain.TxStatusProcessing
	switch res.Status {
	case "succeeded":
		status = domain.TxStatusCompleted
	case "declined", "expired":
		status = domain.TxStatusFailed
	}
	return &provider.StatusResponse{
		ProviderRef: providerRef,
		Status:      status,
		ResultCode:  res.Code,
		Message:     res.Message,
	}, nil
}
