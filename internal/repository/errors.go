// Package repository holds the MySQL data access layer. Methods suffixed
// with Tx run inside a caller-owned transaction; the caller commits or
// rolls back.
package repository

import "errors"

// Sentinel errors returned by repositories. Services translate them into
// apperr kinds.
var (
	ErrFacilityNotFound = errors.New("facility not found")
	ErrSlotNotFound     = errors.New("time slot not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailExists      = errors.New("email already exists")

	// ErrSlotVersionConflict means a version-checked slot update matched no
	// row: someone else changed the slot since it was read.
	ErrSlotVersionConflict = errors.New("time slot was modified concurrently")
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
