// Package aggregates defines domain-facing aggregate contracts and the error
// codes write boundaries report.
//
// Contracts avoid persistence and transport details. Each one names a write
// boundary whose invariants hold atomically.
package aggregates
