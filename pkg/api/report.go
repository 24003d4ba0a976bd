package api

// JobStatus is the terminal state the Manager assigns to a Job once the
// run completes.
type JobStatus string

const (
	StatusDone      JobStatus = "done"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
)

// Outcome is one Job's entry in a Report: its terminal status, and
// either the Response it produced (StatusDone) or the error that
// produced StatusFailed.
type Outcome struct {
	Status   JobStatus
	Response *Response
	Err      error
}

// Report is the Manager's structured result: uuid -> index -> Outcome,
// with exactly one entry per Job the Manager attempted or cancelled.
type Report map[string]map[int]*Outcome

// Responses projects a Report down to the simpler uuid -> index ->
// Response shape described for RunLocally, dropping cancelled/failed
// entries that never produced a Response.
func (r Report) Responses() map[string]map[int]*Response {
	out := make(map[string]map[int]*Response, len(r))
	for uuid, byIndex := range r {
		for idx, outcome := range byIndex {
			if outcome.Response == nil {
				continue
			}
			if out[uuid] == nil {
				out[uuid] = make(map[int]*Response)
			}
			out[uuid][idx] = outcome.Response
		}
	}
	return out
}
