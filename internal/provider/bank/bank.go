// Package bank implements the provider capability for bank rails
// (Pesalink and RTGS) through the settlement gateway.
package bank

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
	APIKey      string
	CallbackURL string
}

type Bank struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Bank {
	return &Bank{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

var _ provider.Provider = (*Bank)(nil)

func (b *Bank) Name() domain.PaymentProvider { return domain.ProviderBank }

func (b *Bank) Initiate(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	channel := "pesalink"
	if req.Rail == domain.RailRTGS {
		channel = "rtgs"
	}
	payload := map[string]any{
		"channel":        channel,
		"reference":      req.Reference,
		"amount":         req.Amount,
		"currency":       req.Currency,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"narration":      req.Description,
		"callback_url":   b.cfg.CallbackURL,
	}

	var res struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Message   string `json:"message"`
	}
	if err := b.post(ctx, "/v1/transfers", payload, &res); err != nil {
		return nil, err
	}
	if res.Status == "rejected" {
		return &provider.InitiateResponse{Status: domain.TxStatusFailed, Message: res.Message}, nil
	}
	status := domain.TxStatusProcessing
	if res.Status == "settled" {
		status = domain.TxStatusCompleted
	}
	return &provider.InitiateResponse{
		Status:      status,
		ProviderRef: res.Reference,
		Message:     res.Message,
	}, nil
}

// Collect raises a direct-debit request against the payer's account. The
// gateway confirms asynchronously once the paying bank approves the pull.
func (b *Bank) Collect(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	payload := map[string]any{
		"reference":      req.Reference,
		"amount":         req.Amount,
		"currency":       req.Currency,
		"account_number": req.AccountNumber,
		"bank_code":      req.BankCode,
		"narration":      req.Description,
		"callback_url":   b.cfg.CallbackURL,
	}

	var res struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Message   string `json:"message"`
	}
	if err := b.post(ctx, "/v1/collections", payload, &res); err != nil {
		return nil, err
	}
	if res.Status == "rejected" {
		return &provider.InitiateResponse{Status: domain.TxStatusFailed, Message: res.Message}, nil
	}
	return &provider.InitiateResponse{
		Status:      domain.TxStatusProcessing,
		ProviderRef: res.Reference,
		Message:     res.Message,
	}, nil
}

func (b *Bank) Query(ctx context.Context, providerRef string) (*provider.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v1/transfers/%s", b.cfg.BaseURL, providerRef), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var res struct {
		Status    string     `json:"status"`
		Code      string     `json:"code"`
		Message   string     `json:"message"`
		SettledAt *time.Time `json:"settled_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}

	status := domain.TxStatusProcessing
	switch res.Status {
	case "settled":
		status = domain.TxStatusCompleted
	case "rejected", "returned":
		status = domain.TxStatusFailed
	}
	return &provider.StatusResponse{
		ProviderRef: providerRef,
		Status:      status,
		ResultCode:  res.Code,
		Message:     res.Message,
		CompletedAt: res.SettledAt,
	}, nil
}

func (b *Bank) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return domain.ErrProviderTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b.logger.Warn("bank gateway rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return domain.ErrProviderRejected
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
