package api

// Response is the sole handshake between a Job's underlying function and
// the Manager. A function may return a plain value (wrapped as
// Response{Output: value} by the caller) or a *Response to drive dynamic
// graph rewrites.
type Response struct {
	// Output is persisted under (job.UUID, job.Index).
	Output any

	// Detour is inserted before the current job's downstream jobs;
	// dependents that referenced this job's output are rewired to
	// reference the detour flow's output instead.
	Detour *Flow

	// Addition is inserted into the running graph without touching
	// existing wiring.
	Addition *Flow

	// Replace substitutes the current job. The scheduler reassigns the
	// job's uuid to the replacement flow's output reference, or, for a
	// self-replace (the replacement flow contains a job with the same
	// uuid), bumps the job's Index instead.
	Replace *Flow

	// StoredData is persisted alongside Output as an auditing side
	// channel; it is never treated as a job's resolvable output.
	StoredData any

	// StopChildren cancels every downstream job of the current one.
	StopChildren bool

	// StopJobflow halts the Manager after this job's response has been
	// persisted and its directives applied.
	StopJobflow bool
}

// NewResponse wraps a plain return value in a Response, the default
// interpretation used when a Job's function returns (value, error)
// instead of (*Response, error).
func NewResponse(output any) *Response {
	return &Response{Output: output}
}
