// Package mpesa implements the provider capability against the Daraja API.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"payments-service/internal/domain"
	"payments-service/internal/provider"

	"go.uber.org/zap"
)

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PassKey        string
	ShortCode      string
	CallbackURL    string
}

type Mpesa struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(cfg Config, logger *zap.Logger) *Mpesa {
	return &Mpesa{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

var _ provider.Provider = (*Mpesa)(nil)

func (m *Mpesa) Name() domain.PaymentProvider { return domain.ProviderMpesa }

func (m *Mpesa) getToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != "" && time.Now().Before(m.tokenExpiry) {
		return m.token, nil
	}

	url := m.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(m.cfg.ConsumerKey, m.cfg.ConsumerSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mpesa token request failed: %s", string(body))
	}

	var res struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", err
	}

	m.token = res.AccessToken
	m.tokenExpiry = time.Now().Add(50 * time.Minute)
	return m.token, nil
}

func (m *Mpesa) post(ctx context.Context, path string, payload any, out any) error {
	token, err := m.getToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		m.logger.Warn("mpesa request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw))
		return domain.ErrProviderRejected
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (m *Mpesa) Initiate(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	switch req.Rail {
	case domain.RailMpesaCorporate:
		return m.b2b(ctx, req)
	default:
		return m.b2c(ctx, req)
	}
}

// b2c pays an individual customer via the instant B2C rail.
func (m *Mpesa) b2c(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	payload := map[string]any{
		"CommandID":       "BusinessPayment",
		"Amount":          req.Amount,
		"PartyA":          m.cfg.ShortCode,
		"PartyB":          req.PhoneNumber,
		"Remarks":         req.Description,
		"QueueTimeOutURL": m.cfg.CallbackURL,
		"ResultURL":       m.cfg.CallbackURL,
		"Occasion":        req.Reference,
	}

	var res struct {
		ConversationID   string `json:"ConversationID"`
		ResponseCode     string `json:"ResponseCode"`
		ResponseDesc     string `json:"ResponseDescription"`
		OriginatorConvID string `json:"OriginatorConversationID"`
	}
	if err := m.post(ctx, "/mpesa/b2c/v1/paymentrequest", payload, &res); err != nil {
		return nil, err
	}
	if res.ResponseCode != "0" {
		return &provider.InitiateResponse{
			Status:  domain.TxStatusFailed,
			Message: res.ResponseDesc,
		}, nil
	}
	return &provider.InitiateResponse{
		Status:      domain.TxStatusProcessing,
		ProviderRef: res.ConversationID,
		Message:     res.ResponseDesc,
	}, nil
}

// b2b routes high-value payouts through the corporate (B2B) rail, which
// settles asynchronously.
func (m *Mpesa) b2b(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	payload := map[string]any{
		"CommandID":        "BusinessPayBill",
		"Amount":           req.Amount,
		"PartyA":           m.cfg.ShortCode,
		"PartyB":           req.AccountNumber,
		"AccountReference": req.Reference,
		"Remarks":          req.Description,
		"QueueTimeOutURL":  m.cfg.CallbackURL,
		"ResultURL":        m.cfg.CallbackURL,
	}

	var res struct {
		ConversationID string `json:"ConversationID"`
		ResponseCode   string `json:"ResponseCode"`
		ResponseDesc   string `json:"ResponseDescription"`
	}
	if err := m.post(ctx, "/mpesa/b2b/v1/paymentrequest", payload, &res); err != nil {
		return nil, err
	}
	if res.ResponseCode != "0" {
		return &provider.InitiateResponse{
			Status:  domain.TxStatusFailed,
			Message: res.ResponseDesc,
		}, nil
	}
	return &provider.InitiateResponse{
		Status:      domain.TxStatusProcessing,
		ProviderRef: res.ConversationID,
		Message:     res.ResponseDesc,
	}, nil
}

// Collect starts an STK push so the customer authorises the debit on their
// handset. Settlement is always asynchronous via the callback.
func (m *Mpesa) Collect(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResponse, error) {
	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(m.cfg.ShortCode + m.cfg.PassKey + timestamp))

	payload := map[string]any{
		"BusinessShortCode": m.cfg.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            req.Amount,
		"PartyA":            req.PhoneNumber,
		"PartyB":            m.cfg.ShortCode,
		"PhoneNumber":       req.PhoneNumber,
		"CallBackURL":       m.cfg.CallbackURL,
		"AccountReference":  req.Reference,
		"TransactionDesc":   req.Description,
	}

	var res struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
		ResponseCode      string `json:"ResponseCode"`
		ResponseDesc      string `json:"ResponseDescription"`
	}
	if err := m.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &res); err != nil {
		return nil, err
	}
	if res.ResponseCode != "0" {
		return &provider.InitiateResponse{
			Status:  domain.TxStatusFailed,
			Message: res.ResponseDesc,
		}, nil
	}
	return &provider.InitiateResponse{
		Status:      domain.TxStatusProcessing,
		ProviderRef: res.CheckoutRequestID,
		Message:     res.ResponseDesc,
	}, nil
}

func (m *Mpesa) Query(ctx context.Context, providerRef string) (*provider.StatusResponse, error) {
	payload := map[string]any{
		"TransactionID":   providerRef,
		"PartyA":          m.cfg.ShortCode,
		"IdentifierType":  "4",
		"ResultURL":       m.cfg.CallbackURL,
		"QueueTimeOutURL": m.cfg.CallbackURL,
		"Remarks":         "status query",
	}

	var res struct {
		ResponseCode string `json:"ResponseCode"`
		ResponseDesc string `json:"ResponseDescription"`
	}
	if err := m.post(ctx, "/mpesa/transactionstatus/v1/query", payload, &res); err != nil {
		return nil, err
	}

	status := domain.TxStatusProcessing
	if res.ResponseCode != "0" {
		status = domain.TxStatusFailed
	}
	return &provider.StatusResponse{
		ProviderRef: providerRef,
		Status:      status,
		ResultCode:  res.ResponseCode,
		Message:     res.ResponseDesc,
	}, nil
}

func wrapTransport(err error) error {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrProviderTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrProviderTimeout
	}
	return err
}
