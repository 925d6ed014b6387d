package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/trustline/internal/shared/domain"
	"github.com/google/uuid"
)

// Plan is a billing plan a user subscribes to. The interval is measured
// in whole months; the price is charged once per interval.
type Plan struct {
	sharedDomain.BaseEntity
	name           string
	price          sharedDomain.Money
	intervalMonths int
}

// NewPlan creates a billing plan.
func NewPlan(name string, price sharedDomain.Money, intervalMonths int) (*Plan, error) {
	if price.Amount() <= 0 {
		return nil, ErrInvalidPlanPrice
	}
	if intervalMonths < 1 {
		return nil, ErrInvalidPlanInterval
	}
	return &Plan{
		BaseEntity:     sharedDomain.NewBaseEntity(),
		name:           name,
		price:          price,
		intervalMonths: intervalMonths,
	}, nil
}

func (p *Plan) Name() string              { return p.name }
func (p *Plan) Price() sharedDomain.Money { return p.price }
func (p *Plan) IntervalMonths() int       { return p.intervalMonths }

// RehydratePlan restores a plan from storage.
func RehydratePlan(id uuid.UUID, name string, price sharedDomain.Money, intervalMonths int, createdAt, updatedAt time.Time) *Plan {
	return &Plan{
		BaseEntity:     sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		name:           name,
		price:          price,
		intervalMonths: intervalMonths,
	}
}
