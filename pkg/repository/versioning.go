package repository

import "fmt"

// VersionField is the store field compared during optimistic locking.
const VersionField = "version"

// Versioned is implemented by records that support optimistic locking.
// The version must be persisted under VersionField.
type Versioned interface {
	GetVersion() int64
	SetVersion(version int64)
}

// OptimisticLockError is returned when a replace finds the record but not
// the expected version.
type OptimisticLockError struct {
	Collection string
	RecordID   string
	Expected   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock failed for record %s in %s: expected version %d",
		e.RecordID, e.Collection, e.Expected)
}

// NewOptimisticLockError creates a new OptimisticLockError
func NewOptimisticLockError(collection, recordID string, expected int64) *OptimisticLockError {
	return &OptimisticLockError{
		Collection: collection,
		RecordID:   recordID,
		Expected:   expected,
	}
}
