// Package loanstore contains the core types and pure business logic of the
// club's inventory and loan-tracking system: loan request and line statuses,
// the role-based authorization gate, stock availability derivation, and the
// transition rules that govern the loan lifecycle.
//
// Everything in this package is side-effect free. The transactional store
// engine in the postgresengine subpackage loads state from PostgreSQL, calls
// the decision functions defined here, and persists the outcome atomically.
package loanstore
