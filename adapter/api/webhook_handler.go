package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/trustline/internal/escrow/application/commands"
	"github.com/felixgeelhaar/trustline/internal/gateway"
)

// maxWebhookBody bounds the provider payload size.
const maxWebhookBody = 1 << 20

// webhookDedupTTL is how long a processed webhook id stays in the redis
// fast path. The unique index on the external payment reference remains
// the source of truth for idempotency; redis only short-circuits the
// common replay case.
const webhookDedupTTL = 24 * time.Hour

type paymentCompleter interface {
	Handle(ctx context.Context, cmd commands.HandlePaymentCompleteCommand) (*commands.HandlePaymentCompleteResult, error)
}

// WebhookHandler receives payment provider callbacks. It verifies the
// signature, short-circuits replays through redis, and hands the event
// to the completion handler. Success is reported only after the ledger
// write committed, so the provider retries anything that failed midway.
type WebhookHandler struct {
	verifier  *gateway.SignatureVerifier
	redis     *redis.Client
	completer paymentCompleter
	logger    *slog.Logger
}

// NewWebhookHandler creates a new webhook handler. The redis client may
// be nil; dedup then relies solely on the storage-level unique index.
func NewWebhookHandler(verifier *gateway.SignatureVerifier, redisClient *redis.Client, completer paymentCompleter, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		verifier:  verifier,
		redis:     redisClient,
		completer: completer,
		logger:    logger,
	}
}

// paymentWebhookEvent is the provider's payment-completed payload. The
// payment reference is the one issued at checkout and encodes the
// contract and stage.
type paymentWebhookEvent struct {
	EventType        string `json:"event_type"`
	PaymentID        string `json:"payment_id"`
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// HandlePaymentWebhook handles POST /webhooks/payment
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	webhookID := r.Header.Get("Webhook-Id")
	result, err := h.verifier.Verify(payload,
		r.Header.Get("Webhook-Signature"),
		webhookID,
		r.Header.Get("Webhook-Timestamp"),
	)
	if err != nil {
		h.logger.Warn("webhook signature rejected", "webhook_id", webhookID, "error", err)
		writeDomainError(w, h.logger, err)
		return
	}
	if result.Skipped {
		h.logger.Warn("webhook signature verification skipped, no secret configured", "webhook_id", webhookID)
	}

	var event paymentWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}
	contractID, stageID, ok := parsePaymentReference(event.PaymentReference)
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognized payment reference")
		return
	}
	if event.PaymentID == "" {
		writeError(w, http.StatusBadRequest, "missing payment_id")
		return
	}

	dedupKey := webhookDedupKey(webhookID, event.PaymentID)
	if h.claimed(r.Context(), dedupKey) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	completed, err := h.completer.Handle(r.Context(), commands.HandlePaymentCompleteCommand{
		ContractID:        contractID,
		StageID:           stageID,
		ExternalPaymentID: event.PaymentID,
		PaidAmount:        event.Amount,
		Currency:          event.Currency,
	})
	if err != nil {
		// Release the claim so the provider's retry is not swallowed by
		// the fast path.
		h.release(r.Context(), dedupKey)
		writeDomainError(w, h.logger, err)
		return
	}

	if completed.Duplicate {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"transaction_id": completed.TransactionID.String(),
	})
}

// claimed marks the event as seen and reports whether another delivery
// already claimed it. Redis failures degrade to processing the event;
// the storage-level unique index still rejects true duplicates.
func (h *WebhookHandler) claimed(ctx context.Context, key string) bool {
	if h.redis == nil {
		return false
	}
	set, err := h.redis.SetNX(ctx, key, "1", webhookDedupTTL).Result()
	if err != nil {
		h.logger.Warn("webhook dedup check failed, continuing without fast path", "error", err)
		return false
	}
	return !set
}

func (h *WebhookHandler) release(ctx context.Context, key string) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, key).Err(); err != nil {
		h.logger.Warn("failed to release webhook dedup key", "key", key, "error", err)
	}
}

func webhookDedupKey(webhookID, paymentID string) string {
	if webhookID != "" {
		return "trustline:webhook:" + webhookID
	}
	return "trustline:webhook:payment:" + paymentID
}

// parsePaymentReference splits the "escrow_<contractID>_<stageID>"
// reference issued at payment initiation.
func parsePaymentReference(reference string) (uuid.UUID, uuid.UUID, bool) {
	parts := strings.Split(reference, "_")
	if len(parts) != 3 || parts[0] != "escrow" {
		return uuid.Nil, uuid.Nil, false
	}
	contractID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	stageID, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, uuid.Nil, false
	}
	return contractID, stageID, true
}
