package jobflow

import "github.com/jobflow-io/jobflow/pkg/api"

// Error types, re-exported so callers can use errors.As against
// jobflow.JobFailure etc. without importing pkg/api directly.
type (
	SerializationError       = api.SerializationError
	ReferenceResolutionError = api.ReferenceResolutionError
	OutputNotFoundError      = api.OutputNotFoundError
	GraphConstructionError   = api.GraphConstructionError
	UnresolvableGraphError   = api.UnresolvableGraphError
	SchemaViolationError     = api.SchemaViolationError
	JobFailure               = api.JobFailure
)
