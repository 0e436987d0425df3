package roster

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/hri/pkg/blackboard"
)

// Getter fetches one availability record.
type Getter interface {
	GetAvailability(ctx context.Context, personID string) (*blackboard.AvailabilityRecord, error)
}

// GetPerson writes one person's availability record as pretty-printed JSON.
func GetPerson(ctx context.Context, src Getter, personID string, w io.Writer) error {
	if personID == "" {
		return fmt.Errorf("person ID cannot be empty")
	}

	rec, err := src.GetAvailability(ctx, personID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return &PersonNotFoundError{PersonID: personID}
		}
		return fmt.Errorf("failed to fetch availability: %w", err)
	}

	if err := FormatSingleJSON(w, rec); err != nil {
		return fmt.Errorf("failed to format availability: %w", err)
	}
	return nil
}

// PersonNotFoundError is returned for persons that were never observed.
type PersonNotFoundError struct {
	PersonID string
}

func (e *PersonNotFoundError) Error() string {
	return fmt.Sprintf("person '%s' has never been observed", e.PersonID)
}

// IsNotFound returns true if the error is a PersonNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*PersonNotFoundError)
	return ok
}
