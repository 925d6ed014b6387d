package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/sony/gobreaker/v2"
)

// HTTPClientConfig configures the provider HTTP client.
type HTTPClientConfig struct {
	BaseURL   string
	APISecret string

	// RequestTimeout bounds each provider call.
	RequestTimeout time.Duration

	// Circuit breaker settings, one breaker per endpoint.
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	FailureThreshold   uint32
}

// DefaultHTTPClientConfig returns sensible defaults.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		RequestTimeout:     10 * time.Second,
		BreakerMaxRequests: 1,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
		FailureThreshold:   5,
	}
}

// HTTPClient talks JSON over HTTPS to the payment provider. Every
// endpoint gets its own circuit breaker so a broken transfer API does not
// take refunds down with it.
type HTTPClient struct {
	config   HTTPClientConfig
	http     *http.Client
	logger   *slog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPClient creates an HTTP gateway client.
func NewHTTPClient(config HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	return &HTTPClient{
		config:   config,
		http:     &http.Client{Timeout: config.RequestTimeout},
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

func (c *HTTPClient) breaker(endpoint string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.breakers[endpoint]; ok {
		return b
	}

	threshold := c.config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: c.config.BreakerMaxRequests,
		Interval:    c.config.BreakerInterval,
		Timeout:     c.config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("gateway circuit breaker state change",
				"endpoint", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	b := gobreaker.NewCircuitBreaker[[]byte](settings)
	c.breakers[endpoint] = b
	return b
}

func (c *HTTPClient) post(ctx context.Context, endpoint, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return shared.WrapDomainError(shared.CodeGateway, err, "encode %s request", endpoint)
	}

	respBody, err := c.breaker(endpoint).Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.config.APISecret)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 400 {
			var provErr struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			_ = json.Unmarshal(data, &provErr)
			if provErr.Message == "" {
				provErr.Message = http.StatusText(resp.StatusCode)
			}
			return nil, fmt.Errorf("provider returned %d: %s (%s)", resp.StatusCode, provErr.Message, provErr.Code)
		}
		return data, nil
	})
	if err != nil {
		return shared.WrapDomainError(shared.CodeGateway, err, "%s failed", endpoint)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return shared.WrapDomainError(shared.CodeGateway, err, "decode %s response", endpoint)
		}
	}
	return nil
}

// CreatePaymentWithStoredCredential charges a stored credential.
func (c *HTTPClient) CreatePaymentWithStoredCredential(ctx context.Context, req CreatePaymentRequest) (*PaymentResult, error) {
	body := map[string]any{
		"payment_id":     req.PaymentID,
		"order_name":     req.OrderName,
		"amount":         req.Amount.Amount(),
		"currency":       req.Amount.Currency(),
		"credential_ref": req.CredentialRef,
		"customer": map[string]string{
			"id":    req.Customer.ID,
			"name":  req.Customer.Name,
			"email": req.Customer.Email,
		},
	}

	var resp struct {
		TransactionID string    `json:"transaction_id"`
		Status        string    `json:"status"`
		PaidAt        time.Time `json:"paid_at"`
	}
	if err := c.post(ctx, "create_payment", "/v1/payments", body, &resp); err != nil {
		return nil, err
	}

	return &PaymentResult{
		TransactionID: resp.TransactionID,
		Status:        PaymentStatus(resp.Status),
		PaidAt:        resp.PaidAt,
	}, nil
}

// CancelPayment refunds a payment, optionally partially.
func (c *HTTPClient) CancelPayment(ctx context.Context, req CancelPaymentRequest) (*RefundResult, error) {
	body := map[string]any{
		"reason": req.Reason,
	}
	if req.Amount != nil {
		body["amount"] = req.Amount.Amount()
		body["currency"] = req.Amount.Currency()
	}

	var resp struct {
		RefundID       string `json:"refund_id"`
		RefundedAmount int64  `json:"refunded_amount"`
		Currency       string `json:"currency"`
	}
	if err := c.post(ctx, "cancel_payment", "/v1/payments/"+req.PaymentID+"/cancel", body, &resp); err != nil {
		return nil, err
	}

	refunded, err := shared.NewMoney(resp.RefundedAmount, resp.Currency)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeGateway, err, "provider reported invalid refund amount")
	}
	return &RefundResult{RefundID: resp.RefundID, RefundedAmount: refunded}, nil
}

// TransferToBank moves settled funds to a bank account.
func (c *HTTPClient) TransferToBank(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	body := map[string]any{
		"amount":              req.Amount.Amount(),
		"currency":            req.Amount.Currency(),
		"bank_code":           req.BankDetails.BankCode(),
		"account_number":      req.BankDetails.AccountNumber(),
		"account_holder_name": req.BankDetails.AccountHolderName(),
		"reason":              req.Reason,
	}

	var resp struct {
		TransferID string `json:"transfer_id"`
		Status     string `json:"status"`
	}
	if err := c.post(ctx, "transfer", "/v1/transfers", body, &resp); err != nil {
		return nil, err
	}

	return &TransferResult{TransferID: resp.TransferID, Status: resp.Status}, nil
}
