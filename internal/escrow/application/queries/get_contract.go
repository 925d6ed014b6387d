package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/trustline/internal/escrow/domain"
	"github.com/google/uuid"
)

// StageDTO is a data transfer object for contract stages.
type StageDTO struct {
	ID         uuid.UUID
	Name       string
	OrderIndex int
	Amount     int64
	Currency   string
	Status     string
	PaidAt     *time.Time
}

// ContractDTO is a data transfer object for contracts.
type ContractDTO struct {
	ID                 uuid.UUID
	PayerID            uuid.UUID
	PayeeID            uuid.UUID
	Title              string
	Description        string
	TotalAmount        int64
	Currency           string
	PlatformFee        int64
	PayeePayout        int64
	CancellationPolicy string
	Status             string
	PayerAcceptedTerms bool
	PayeeAcceptedTerms bool
	ServiceDate        *time.Time
	ServiceLocation    string
	Stages             []StageDTO
	CreatedAt          time.Time
}

// GetContractQuery contains the parameters for getting a contract. The
// requester must be a party to it; outsiders get not found.
type GetContractQuery struct {
	ContractID  uuid.UUID
	RequestedBy uuid.UUID
}

// GetContractHandler handles the GetContractQuery.
type GetContractHandler struct {
	contractRepo domain.ContractRepository
}

// NewGetContractHandler creates a new GetContractHandler.
func NewGetContractHandler(contractRepo domain.ContractRepository) *GetContractHandler {
	return &GetContractHandler{contractRepo: contractRepo}
}

// Handle executes the GetContractQuery.
func (h *GetContractHandler) Handle(ctx context.Context, query GetContractQuery) (*ContractDTO, error) {
	contract, err := h.contractRepo.FindByID(ctx, query.ContractID)
	if err != nil {
		return nil, err
	}
	if contract == nil || !contract.IsParty(query.RequestedBy) {
		return nil, domain.ErrContractNotFound
	}
	return toContractDTO(contract), nil
}

// ListContractsQuery contains the parameters for listing a user's
// contracts, on either side.
type ListContractsQuery struct {
	UserID uuid.UUID
}

// ListContractsHandler handles the ListContractsQuery.
type ListContractsHandler struct {
	contractRepo domain.ContractRepository
}

// NewListContractsHandler creates a new ListContractsHandler.
func NewListContractsHandler(contractRepo domain.ContractRepository) *ListContractsHandler {
	return &ListContractsHandler{contractRepo: contractRepo}
}

// Handle executes the ListContractsQuery.
func (h *ListContractsHandler) Handle(ctx context.Context, query ListContractsQuery) ([]*ContractDTO, error) {
	contracts, err := h.contractRepo.FindByParty(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*ContractDTO, 0, len(contracts))
	for _, contract := range contracts {
		dtos = append(dtos, toContractDTO(contract))
	}
	return dtos, nil
}

func toContractDTO(c *domain.Contract) *ContractDTO {
	stages := make([]StageDTO, 0, len(c.Stages()))
	for _, s := range c.Stages() {
		stages = append(stages, StageDTO{
			ID:         s.ID(),
			Name:       string(s.Name()),
			OrderIndex: s.OrderIndex(),
			Amount:     s.Amount().Amount(),
			Currency:   s.Amount().Currency(),
			Status:     string(s.Status()),
			PaidAt:     s.PaidAt(),
		})
	}
	return &ContractDTO{
		ID:                 c.ID(),
		PayerID:            c.PayerID(),
		PayeeID:            c.PayeeID(),
		Title:              c.Title(),
		Description:        c.Description(),
		TotalAmount:        c.TotalAmount().Amount(),
		Currency:           c.TotalAmount().Currency(),
		PlatformFee:        c.PlatformFee().Amount(),
		PayeePayout:        c.PayeePayout().Amount(),
		CancellationPolicy: string(c.CancellationPolicy()),
		Status:             string(c.Status()),
		PayerAcceptedTerms: c.PayerAcceptedTerms(),
		PayeeAcceptedTerms: c.PayeeAcceptedTerms(),
		ServiceDate:        c.ServiceDate(),
		ServiceLocation:    c.ServiceLocation(),
		Stages:             stages,
		CreatedAt:          c.CreatedAt(),
	}
}
