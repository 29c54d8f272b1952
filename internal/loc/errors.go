package loc

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ServiceError is a transport failure or non-2xx response from the
// authority service. Zero results is not a ServiceError.
type ServiceError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("loc %s: %s returned status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("loc %s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
