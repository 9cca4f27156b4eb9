package storage

import "errors"

var (
	// ErrRecordNotFound is returned when a comparison record is not found
	ErrRecordNotFound = errors.New("comparison record not found")

	// ErrDuplicateRecord is returned when a record id already exists
	ErrDuplicateRecord = errors.New("comparison record already exists")
)

// isDuplicate reports whether err represents a duplicate record insert.
func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateRecord)
}
