package api

import (
	"context"
	"log/slog"
	"net/http"

	settlementApp "github.com/felixgeelhaar/trustline/internal/settlement/application"
)

type settlementControl interface {
	TriggerNow(ctx context.Context) error
	Status() settlementApp.SchedulerStatus
}

// SettlementHandler exposes the settlement scheduler to operators.
type SettlementHandler struct {
	scheduler settlementControl
	logger    *slog.Logger
}

// NewSettlementHandler creates a new settlement handler.
func NewSettlementHandler(scheduler settlementControl, logger *slog.Logger) *SettlementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementHandler{scheduler: scheduler, logger: logger}
}

// Run handles POST /settlement/run. The trigger is synchronous; the
// response carries the scheduler state after the run, including the
// result when the guards let it execute.
func (h *SettlementHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.TriggerNow(r.Context()); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// Status handles GET /settlement/status
func (h *SettlementHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}
