package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/application/commands"
	"github.com/felixgeelhaar/trustline/internal/escrow/application/queries"
	"github.com/google/uuid"
)

// The handler depends on one narrow interface per operation so tests can
// substitute the application layer without standing up repositories.
type contractCreator interface {
	Handle(ctx context.Context, cmd commands.CreateContractCommand) (*commands.CreateContractResult, error)
}

type contractConfirmer interface {
	Handle(ctx context.Context, cmd commands.ConfirmContractCommand) error
}

type termsAccepter interface {
	Handle(ctx context.Context, cmd commands.AcceptTermsCommand) error
}

type paymentInitiator interface {
	Handle(ctx context.Context, cmd commands.InitiateStagePaymentCommand) (*commands.InitiateStagePaymentResult, error)
}

type serviceCompleter interface {
	Handle(ctx context.Context, cmd commands.ConfirmServiceCompleteCommand) error
}

type disputeRaiser interface {
	Handle(ctx context.Context, cmd commands.RaiseDisputeCommand) error
}

type contractCanceller interface {
	Handle(ctx context.Context, cmd commands.CancelContractCommand) error
}

type refundProcessor interface {
	Handle(ctx context.Context, cmd commands.ProcessRefundCommand) (*commands.ProcessRefundResult, error)
}

type escrowReleaser interface {
	Handle(ctx context.Context, cmd commands.ReleaseEscrowCommand) (*commands.ReleaseEscrowResult, error)
}

type contractGetter interface {
	Handle(ctx context.Context, query queries.GetContractQuery) (*queries.ContractDTO, error)
}

type contractLister interface {
	Handle(ctx context.Context, query queries.ListContractsQuery) ([]*queries.ContractDTO, error)
}

// ContractHandler handles contract API requests. The acting user is
// taken from the X-User-ID header; upstream authentication is expected
// to have set it.
type ContractHandler struct {
	create          contractCreator
	confirm         contractConfirmer
	acceptTerms     termsAccepter
	initiatePayment paymentInitiator
	complete        serviceCompleter
	dispute         disputeRaiser
	cancel          contractCanceller
	refund          refundProcessor
	release         escrowReleaser
	getContract     contractGetter
	listContracts   contractLister
	logger          *slog.Logger
}

// ContractHandlerConfig holds dependencies for the contract handler.
type ContractHandlerConfig struct {
	Create          contractCreator
	Confirm         contractConfirmer
	AcceptTerms     termsAccepter
	InitiatePayment paymentInitiator
	Complete        serviceCompleter
	Dispute         disputeRaiser
	Cancel          contractCanceller
	Refund          refundProcessor
	Release         escrowReleaser
	GetContract     contractGetter
	ListContracts   contractLister
	Logger          *slog.Logger
}

// NewContractHandler creates a new contract handler.
func NewContractHandler(cfg ContractHandlerConfig) *ContractHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &ContractHandler{
		create:          cfg.Create,
		confirm:         cfg.Confirm,
		acceptTerms:     cfg.AcceptTerms,
		initiatePayment: cfg.InitiatePayment,
		complete:        cfg.Complete,
		dispute:         cfg.Dispute,
		cancel:          cfg.Cancel,
		refund:          cfg.Refund,
		release:         cfg.Release,
		getContract:     cfg.GetContract,
		listContracts:   cfg.ListContracts,
		logger:          cfg.Logger,
	}
}

type createContractRequest struct {
	PayeeID            string     `json:"payee_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	TotalAmount        int64      `json:"total_amount"`
	Currency           string     `json:"currency"`
	DepositPercent     int        `json:"deposit_percent"`
	MiddlePercent      int        `json:"middle_percent"`
	CancellationPolicy string     `json:"cancellation_policy"`
	ServiceDate        *time.Time `json:"service_date,omitempty"`
	ServiceLocation    string     `json:"service_location"`
}

type createContractResponse struct {
	ContractID  uuid.UUID   `json:"contract_id"`
	PlatformFee int64       `json:"platform_fee"`
	PayeePayout int64       `json:"payee_payout"`
	StageIDs    []uuid.UUID `json:"stage_ids"`
}

// Create handles POST /api/v1/contracts
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	payeeID, err := uuid.Parse(req.PayeeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payee_id")
		return
	}

	result, err := h.create.Handle(r.Context(), commands.CreateContractCommand{
		PayerID:            userID,
		PayeeID:            payeeID,
		Title:              req.Title,
		Description:        req.Description,
		TotalAmount:        req.TotalAmount,
		Currency:           req.Currency,
		DepositPercent:     req.DepositPercent,
		MiddlePercent:      req.MiddlePercent,
		CancellationPolicy: req.CancellationPolicy,
		ServiceDate:        req.ServiceDate,
		ServiceLocation:    req.ServiceLocation,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, createContractResponse{
		ContractID:  result.ContractID,
		PlatformFee: result.PlatformFee,
		PayeePayout: result.PayeePayout,
		StageIDs:    result.StageIDs,
	})
}

// Get handles GET /api/v1/contracts/{contractID}
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}

	dto, err := h.getContract.Handle(r.Context(), queries.GetContractQuery{
		ContractID:  contractID,
		RequestedBy: userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// List handles GET /api/v1/contracts
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	dtos, err := h.listContracts.Handle(r.Context(), queries.ListContractsQuery{UserID: userID})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": dtos})
}

// Confirm handles POST /api/v1/contracts/{contractID}/confirm
func (h *ContractHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	err := h.confirm.Handle(r.Context(), commands.ConfirmContractCommand{
		ContractID: contractID,
		PayeeID:    userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// AcceptTerms handles POST /api/v1/contracts/{contractID}/accept-terms
func (h *ContractHandler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	err := h.acceptTerms.Handle(r.Context(), commands.AcceptTermsCommand{
		ContractID: contractID,
		PayerID:    userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "terms_accepted"})
}

type initiatePaymentResponse struct {
	PaymentReference string `json:"payment_reference"`
	OrderName        string `json:"order_name"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// InitiatePayment handles POST /api/v1/contracts/{contractID}/stages/{stageID}/initiate-payment
func (h *ContractHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	stageID, ok := pathUUID(w, r, "stageID")
	if !ok {
		return
	}

	result, err := h.initiatePayment.Handle(r.Context(), commands.InitiateStagePaymentCommand{
		ContractID: contractID,
		StageID:    stageID,
		PayerID:    userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, initiatePaymentResponse{
		PaymentReference: result.PaymentReference,
		OrderName:        result.OrderName,
		Amount:           result.Amount,
		Currency:         result.Currency,
	})
}

// Complete handles POST /api/v1/contracts/{contractID}/complete
func (h *ContractHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	err := h.complete.Handle(r.Context(), commands.ConfirmServiceCompleteCommand{
		ContractID: contractID,
		PayerID:    userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

// Dispute handles POST /api/v1/contracts/{contractID}/dispute
func (h *ContractHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	var req disputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	err := h.dispute.Handle(r.Context(), commands.RaiseDisputeCommand{
		ContractID: contractID,
		RaisedBy:   userID,
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disputed"})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /api/v1/contracts/{contractID}/cancel
func (h *ContractHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	err := h.cancel.Handle(r.Context(), commands.CancelContractCommand{
		ContractID:  contractID,
		CancelledBy: userID,
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type refundRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
}

type refundResponse struct {
	RefundedAmount int64 `json:"refunded_amount"`
	RefundedCount  int   `json:"refunded_count"`
}

// Refund handles POST /api/v1/contracts/{contractID}/refund
func (h *ContractHandler) Refund(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	result, err := h.refund.Handle(r.Context(), commands.ProcessRefundCommand{
		ContractID:  contractID,
		RequestedBy: userID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reason:      req.Reason,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{
		RefundedAmount: result.RefundedAmount,
		RefundedCount:  result.RefundedCount,
	})
}

type releaseResponse struct {
	PayoutID  uuid.UUID `json:"payout_id"`
	NetAmount int64     `json:"net_amount"`
}

// Release handles POST /api/v1/contracts/{contractID}/release
func (h *ContractHandler) Release(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	contractID, ok := pathUUID(w, r, "contractID")
	if !ok {
		return
	}
	result, err := h.release.Handle(r.Context(), commands.ReleaseEscrowCommand{
		ContractID: contractID,
		ApprovedBy: userID,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, releaseResponse{
		PayoutID:  result.PayoutID,
		NetAmount: result.NetAmount,
	})
}

// requireUser extracts the acting user from the X-User-ID header and
// writes 401 when it is missing or malformed.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid X-User-ID header")
		return uuid.Nil, false
	}
	return userID, true
}

// pathUUID parses a UUID path segment and writes 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
