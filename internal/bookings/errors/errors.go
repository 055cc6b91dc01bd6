package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrStaleStatus is returned by compare-and-set updates when the stored
	// status no longer matches the expected one.
	ErrStaleStatus = errors.New("reservation status changed concurrently")

	ErrDuplicatePayment = errors.New("payment already recorded for invoice")

	ErrCatalogNotFound = errors.New("catalog entry not found")
)
