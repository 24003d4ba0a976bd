package engine

import (
	"context"

	"github.com/jobflow-io/jobflow/pkg/api"
)

// applyDirectives applies resp's replace, detour, and addition directives
// in that order, exactly as spec'd. It returns replaced=true when the
// Job should not be marked done under its original identity, because
// either it was reassigned to a replacement Flow's output (true replace)
// or it will run again under a bumped index (self-replace).
func (m *Manager) applyDirectives(ctx context.Context, job *api.Job, resp *api.Response) (bool, error) {
	replaced := false

	if resp.Replace != nil {
		r, err := m.applyReplace(ctx, job, resp.Replace)
		if err != nil {
			return false, err
		}
		replaced = r
	}

	if resp.Detour != nil {
		if err := m.applyDetour(ctx, job, resp.Detour); err != nil {
			return replaced, err
		}
	}

	if resp.Addition != nil {
		m.applyAddition(ctx, job, resp.Addition)
	}

	return replaced, nil
}

func hostStackFor(job *api.Job) []string {
	return append(append([]string{}, job.Hosts...), job.UUID)
}

// applyReplace distinguishes true replace from self-replace by whether
// the replacement Flow contains a Job carrying the same uuid as job —
// the grammar this engine fixes for the ambiguity spec.md §9 flags.
func (m *Manager) applyReplace(ctx context.Context, job *api.Job, replacement *api.Flow) (bool, error) {
	replacementJobs := flattenJobs(replacement)

	var selfJob *api.Job
	for _, rj := range replacementJobs {
		if rj.UUID == job.UUID {
			selfJob = rj
			break
		}
	}

	if selfJob != nil {
		selfJob.Index = job.Index + 1
		selfJob.Hosts = append([]string{}, job.Hosts...)
		m.graph.Reinsert(selfJob)

		hostStack := hostStackFor(job)
		var siblings []*api.Job
		for _, rj := range replacementJobs {
			if rj.UUID == job.UUID {
				continue
			}
			rj.Hosts = append([]string{}, hostStack...)
			siblings = append(siblings, rj)
		}
		m.graph.AddJobs(siblings)

		m.observer.OnDirectiveApplied(ctx, job, "self_replace", []string{selfJob.UUID})
		return true, nil
	}

	hostStack := hostStackFor(job)
	for _, rj := range replacementJobs {
		rj.Hosts = append([]string{}, hostStack...)
	}
	m.graph.AddJobs(replacementJobs)

	newRef := replacement.OutputRef()
	if err := m.graph.RewireAll(job.UUID, newRef); err != nil {
		return false, err
	}

	m.observer.OnDirectiveApplied(ctx, job, "replace", jobUUIDs(replacementJobs))
	return true, nil
}

// applyDetour inserts detour's Jobs before job's downstream dependents
// and rewires any reference to job's output onto detour's output,
// leaving job's own (uuid, index) record resolvable exactly as saved.
func (m *Manager) applyDetour(ctx context.Context, job *api.Job, detour *api.Flow) error {
	detourJobs := flattenJobs(detour)
	hostStack := hostStackFor(job)
	for _, dj := range detourJobs {
		dj.Hosts = append([]string{}, hostStack...)
	}
	m.graph.AddJobs(detourJobs)

	newRef := detour.OutputRef()
	if err := m.graph.RewireAll(job.UUID, newRef); err != nil {
		return err
	}

	m.observer.OnDirectiveApplied(ctx, job, "detour", jobUUIDs(detourJobs))
	return nil
}

// applyAddition inserts addition's Jobs into the running graph without
// touching any existing wiring.
func (m *Manager) applyAddition(ctx context.Context, job *api.Job, addition *api.Flow) {
	additionJobs := flattenJobs(addition)
	hostStack := hostStackFor(job)
	for _, aj := range additionJobs {
		aj.Hosts = append([]string{}, hostStack...)
	}
	m.graph.AddJobs(additionJobs)
	m.observer.OnDirectiveApplied(ctx, job, "addition", jobUUIDs(additionJobs))
}

func jobUUIDs(jobs []*api.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.UUID
	}
	return out
}
