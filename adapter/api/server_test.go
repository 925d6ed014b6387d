package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/trustline/internal/escrow/application/commands"
	"github.com/felixgeelhaar/trustline/internal/gateway"
	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/felixgeelhaar/trustline/pkg/observability"
)

// newPipelineServer builds a server with an in-memory metrics sink so
// the request middleware can be observed.
func newPipelineServer(t *testing.T, handlerCfg ContractHandlerConfig, metrics observability.Metrics) *Server {
	t.Helper()
	handlerCfg.Logger = testLogger()
	contracts := NewContractHandler(handlerCfg)
	webhooks := NewWebhookHandler(gateway.NewSignatureVerifier("unused", true), nil,
		completerFunc(func(ctx context.Context, cmd commands.HandlePaymentCompleteCommand) (*commands.HandlePaymentCompleteResult, error) {
			return nil, shared.NewDomainError(shared.CodeConfiguration, "not under test")
		}), testLogger())
	settlement := NewSettlementHandler(stubSettlementControl{}, testLogger())
	cfg := DefaultServerConfig()
	cfg.Metrics = metrics
	return NewServer(cfg, contracts, webhooks, settlement, nil, testLogger())
}

func TestRequestPipeline(t *testing.T) {
	t.Run("records metrics per route and status", func(t *testing.T) {
		metrics := observability.NewInMemoryMetrics()
		s := newPipelineServer(t, ContractHandlerConfig{}, metrics)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		count := metrics.GetCounter(observability.MetricOperationTotal,
			observability.T("method", "GET"),
			observability.T("route", "GET /healthz"),
			observability.T("status", "200"),
			observability.T("operation", "http.request"),
		)
		assert.Equal(t, int64(1), count)
	})

	t.Run("tags unmatched routes", func(t *testing.T) {
		metrics := observability.NewInMemoryMetrics()
		s := newPipelineServer(t, ContractHandlerConfig{}, metrics)

		req := httptest.NewRequest(http.MethodGet, "/no/such/route", nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		count := metrics.GetCounter(observability.MetricOperationTotal,
			observability.T("method", "GET"),
			observability.T("route", "unmatched"),
			observability.T("status", "404"),
			observability.T("operation", "http.request"),
		)
		assert.Equal(t, int64(1), count)
	})

	t.Run("propagates correlation and user IDs into handler context", func(t *testing.T) {
		userID := uuid.New()
		var gotCorrelation, gotUser string
		s := newPipelineServer(t, ContractHandlerConfig{
			Cancel: commandFunc[commands.CancelContractCommand](func(ctx context.Context, cmd commands.CancelContractCommand) error {
				gotCorrelation = observability.CorrelationIDFromContext(ctx)
				gotUser = observability.UserIDFromContext(ctx)
				return nil
			}),
		}, nil)

		body, _ := json.Marshal(map[string]any{"reason": "mutual agreement"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/"+uuid.New().String()+"/cancel", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", userID.String())
		req.Header.Set("X-Correlation-ID", "corr-abc-123")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "corr-abc-123", gotCorrelation)
		assert.Equal(t, userID.String(), gotUser)
	})

	t.Run("assigns a fresh request ID when none is supplied", func(t *testing.T) {
		var gotRequestID string
		s := newPipelineServer(t, ContractHandlerConfig{
			Cancel: commandFunc[commands.CancelContractCommand](func(ctx context.Context, cmd commands.CancelContractCommand) error {
				gotRequestID = observability.RequestIDFromContext(ctx)
				return nil
			}),
		}, nil)

		body, _ := json.Marshal(map[string]any{"reason": "mutual agreement"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/contracts/"+uuid.New().String()+"/cancel", bytes.NewReader(body))
		req.Header.Set("X-User-ID", uuid.New().String())
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, gotRequestID)
	})
}
