package domain

// AggregateRoot is the consistency boundary of a context. It collects
// the domain events raised while handling a command; the application
// layer drains them into the outbox before the transaction commits.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	Version() int
}

// BaseAggregateRoot provides the event buffer and version counter for
// aggregates. The version is bumped by the repository on save, not
// in memory.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent
	version      int
}

// NewBaseAggregateRoot creates a new aggregate root at version zero.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		domainEvents: make([]DomainEvent, 0),
	}
}

// RehydrateBaseAggregateRoot restores an aggregate from persisted state
// with an empty event buffer.
func RehydrateBaseAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   entity,
		domainEvents: make([]DomainEvent, 0),
		version:      version,
	}
}

// DomainEvents returns the events raised since the last clear.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents empties the event buffer, typically after the
// events have been written to the outbox.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = make([]DomainEvent, 0)
}

// AddDomainEvent records an event to be published after commit.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// Version returns the persisted version used for optimistic writes.
func (a *BaseAggregateRoot) Version() int {
	return a.version
}
