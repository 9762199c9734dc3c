// Package errs holds sentinel errors shared by the job store backends.
package errs

import "errors"

// ErrJobExists is returned when creating a job under an id that is already stored
var ErrJobExists = errors.New("job already exists")
