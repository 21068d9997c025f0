package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for decode-job records.
var (
	// ErrSourcePathRequired indicates a required source path field is empty.
	ErrSourcePathRequired = errors.New("source_path is required")

	// ErrSinkDescriptorRequired indicates a required sink descriptor field is empty.
	ErrSinkDescriptorRequired = errors.New("sink_descriptor is required")

	// ErrInvalidJobStatus indicates a job status value outside the known set.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrJobIDRequired indicates a required job ID field is zero.
	ErrJobIDRequired = errors.New("job_id is required")
)
