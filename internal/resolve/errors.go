package resolve

import (
	"errors"
	"fmt"
)

// ErrMissingOutputData matches every MissingOutputDataError.
var ErrMissingOutputData = errors.New("missing output data")

// MissingOutputDataError reports that a resource produced no sample output
// for a scenario, so its fields cannot be documented.
type MissingOutputDataError struct {
	Resource string
	Scenario string
	Cause    error
}

func (e *MissingOutputDataError) Error() string {
	msg := fmt.Sprintf("resource %s returned no output for scenario %q", e.Resource, e.Scenario)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is lets errors.Is match ErrMissingOutputData.
func (e *MissingOutputDataError) Is(target error) bool {
	return target == ErrMissingOutputData
}

func (e *MissingOutputDataError) Unwrap() error {
	return e.Cause
}
