package aggregates

import "testing"

func TestMasteryContractOwnsItsTransaction(t *testing.T) {
	c := MasteryAggregateContract
	if !c.RequiresAggregateOwnedTx() || c.ReadPolicy != ReadPolicyInvariantScoped {
		t.Fatalf("mastery contract: got=%+v", c)
	}
	if (Contract{}).RequiresAggregateOwnedTx() {
		t.Fatalf("zero contract must not claim an aggregate-owned tx")
	}
}
