package model

// EntityType distinguishes the kinds of counterparty the watchlist service
// can screen.
type EntityType string

const (
	// EntityIndividual is a natural person.
	EntityIndividual EntityType = "individual"
	// EntityOrganization is a company or other legal entity.
	EntityOrganization EntityType = "organization"
)

// CounterpartyRef identifies a counterparty derived from the case's
// transactions. It is scoped to a single case and never persisted on its own.
type CounterpartyRef struct {
	Name           string
	EntityType     EntityType
	Country        string
	Address        string
	DateOfBirth    string // YYYY-MM-DD, individuals only, may be empty
	RegistrationID string // organizations only, may be empty
	Aliases        []string
	Identifiers    []string
	EvidenceIDs    []string // transactions this counterparty appeared on
}

// Resolvable reports whether the reference carries enough identity to be
// screened against a watchlist.
func (c *CounterpartyRef) Resolvable() bool {
	return c.Name != ""
}
