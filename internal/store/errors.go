// Package store implements the five table stores of the inventory
// tracker: items, suppliers, hospitals, users and the transaction
// ledger. Each store owns one flat file and serializes its own
// read-modify-write sequences with a per-table mutex.
package store

import "errors"

// Error taxonomy shared by all table stores. Callers match with
// errors.Is; the HTTP layer maps each class to a status code.
var (
	// ErrValidation marks bad input: empty fields, non-positive
	// quantities, values containing the record delimiter.
	ErrValidation = errors.New("invalid input")

	// ErrConflict marks a clash with existing data, such as a
	// duplicate item code or username.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity marks an update that would break a required
	// invariant, such as driving stock negative.
	ErrIntegrity = errors.New("integrity violation")

	// ErrNotFound marks a lookup miss on a code or username.
	ErrNotFound = errors.New("not found")
)
