package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultHTTPClientConfig()
	cfg.BaseURL = srv.URL
	cfg.APISecret = "sk_test"
	return NewHTTPClient(cfg, nil)
}

func TestHTTPClientCreatePayment(t *testing.T) {
	t.Run("decodes a successful charge", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pay_1", body["payment_id"])
			assert.Equal(t, float64(9900), body["amount"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"transaction_id": "tx_42",
				"status":         "paid",
				"paid_at":        "2025-06-01T12:00:00Z",
			})
		}))

		result, err := client.CreatePaymentWithStoredCredential(context.Background(), CreatePaymentRequest{
			PaymentID:     "pay_1",
			OrderName:     "Pro plan renewal",
			Amount:        shared.MustMoney(9900, "KRW"),
			CredentialRef: "cred_abc",
		})
		require.NoError(t, err)
		assert.Equal(t, "tx_42", result.TransactionID)
		assert.Equal(t, PaymentPaid, result.Status)
	})

	t.Run("provider error becomes a gateway domain error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    "card_declined",
				"message": "insufficient funds",
			})
		}))

		_, err := client.CreatePaymentWithStoredCredential(context.Background(), CreatePaymentRequest{
			PaymentID: "pay_2",
			Amount:    shared.MustMoney(9900, "KRW"),
		})
		require.Error(t, err)
		assert.Equal(t, shared.CodeGateway, shared.CodeOf(err))
		assert.Contains(t, err.Error(), "insufficient funds")
	})
}

func TestHTTPClientTransfer(t *testing.T) {
	details, _ := shared.NewBankDetails("004", "110-123", "Hong Gildong")

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"transfer_id": "tr_7",
			"status":      "completed",
		})
	}))

	result, err := client.TransferToBank(context.Background(), TransferRequest{
		Amount:      shared.MustMoney(50000, "KRW"),
		BankDetails: details,
		Reason:      "weekly settlement",
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_7", result.TransferID)
}

func TestHTTPClientCircuitBreaker(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := CancelPaymentRequest{PaymentID: "pay_x", Reason: "test"}
	for i := 0; i < 5; i++ {
		_, err := client.CancelPayment(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, 5, calls)

	// Breaker is open now: the provider is no longer called.
	_, err := client.CancelPayment(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, shared.CodeGateway, shared.CodeOf(err))
	assert.Equal(t, 5, calls)
}

func TestMockClient(t *testing.T) {
	client := NewMockClient(nil)

	p1, err := client.CreatePaymentWithStoredCredential(context.Background(), CreatePaymentRequest{
		PaymentID: "pay_1",
		Amount:    shared.MustMoney(100, "KRW"),
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, p1.Status)
	assert.Contains(t, p1.TransactionID, "mock_tx_")

	tr, err := client.TransferToBank(context.Background(), TransferRequest{
		Amount: shared.MustMoney(100, "KRW"),
	})
	require.NoError(t, err)
	assert.Contains(t, tr.TransferID, "mock_transfer_")
}
