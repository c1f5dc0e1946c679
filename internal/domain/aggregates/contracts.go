package aggregates

// WriteTxOwnership says who opens and commits the write transaction. Every
// aggregate in this service owns its own transaction.
type WriteTxOwnership string

const WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"

// ReadPolicy says which reads an aggregate may perform.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped: only the rows a write must lock or check.
	// Listings and projections belong to the table repos.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
)

type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}
