package engine

import "github.com/jobflow-io/jobflow/pkg/api"

// Graph is the Manager's live view of the running Flow: an
// indexed structure keyed by uuid, with edges derived on demand from
// each Job's InputUUIDs rather than cached, per the Design Note that
// the graph must support cheap rewiring under detour/addition/replace.
type Graph struct {
	jobs  map[string]*api.Job
	order []string
	ever  map[string]bool
}

// NewGraph flattens flow into a Graph, failing with the same
// GraphConstructionError Flow.Iterflow would raise if flow contains a
// cycle.
func NewGraph(flow *api.Flow) (*Graph, error) {
	if _, err := flow.Iterflow(); err != nil {
		return nil, err
	}

	g := &Graph{
		jobs: make(map[string]*api.Job),
		ever: make(map[string]bool),
	}
	g.AddJobs(flattenJobs(flow))
	return g, nil
}

func flattenJobs(flow *api.Flow) []*api.Job {
	var out []*api.Job
	var walk func(n api.Node)
	walk = func(n api.Node) {
		switch t := n.(type) {
		case *api.Job:
			out = append(out, t)
		case *api.Flow:
			for _, child := range t.Nodes {
				walk(child)
			}
		}
	}
	walk(flow)
	return out
}

// AddJobs inserts newly created Jobs (from a directive) into the graph.
func (g *Graph) AddJobs(jobs []*api.Job) {
	for _, j := range jobs {
		if g.ever[j.UUID] {
			continue
		}
		g.jobs[j.UUID] = j
		g.order = append(g.order, j.UUID)
		g.ever[j.UUID] = true
	}
}

// Reinsert forces job back into the graph under its existing uuid,
// bypassing the "already seen" dedup AddJobs applies — the mechanism a
// self-replace directive uses to make a Job with the same uuid but a
// bumped index ready to run again.
func (g *Graph) Reinsert(job *api.Job) {
	g.jobs[job.UUID] = job
	if !g.ever[job.UUID] {
		g.order = append(g.order, job.UUID)
		g.ever[job.UUID] = true
	}
}

// Ready returns the uuids of every Job still in the graph whose inputs
// are all satisfied (done, or not a Job tracked by this graph at all —
// a "prior" dependency resolved directly against the JobStore) and
// which has not been cancelled, in stable insertion order.
func (g *Graph) Ready(done map[string]int, cancelled map[string]bool) []string {
	var ready []string
	for _, uuid := range g.order {
		job, ok := g.jobs[uuid]
		if !ok || cancelled[uuid] {
			continue
		}
		inputs, err := job.InputUUIDs()
		if err != nil {
			continue
		}
		blocked := false
		for dep := range inputs {
			if dep == uuid {
				continue
			}
			if _, pending := g.jobs[dep]; pending {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, uuid)
		}
	}
	return ready
}

// Pop removes and returns the Job for uuid.
func (g *Graph) Pop(uuid string) *api.Job {
	job := g.jobs[uuid]
	delete(g.jobs, uuid)
	return job
}

// Remove drops uuid from the graph without returning it, used to take a
// cancelled Job out of consideration.
func (g *Graph) Remove(uuid string) {
	delete(g.jobs, uuid)
}

// Downstream returns the uuids of every Job still in the graph whose
// InputUUIDs directly includes uuid.
func (g *Graph) Downstream(uuid string) []string {
	var out []string
	for candidate, job := range g.jobs {
		inputs, err := job.InputUUIDs()
		if err != nil {
			continue
		}
		if _, ok := inputs[uuid]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

// RewireAll rewires every remaining Job's arguments from uuid `from` to
// reference `to`, used when applying detour and true-replace directives
// (a self-replace keeps the uuid, so nothing is rewired for it).
func (g *Graph) RewireAll(from string, to api.OutputReference) error {
	for _, job := range g.jobs {
		if err := job.Rewire(from, to); err != nil {
			return err
		}
	}
	return nil
}

// HasUnfinished reports whether any Job remains in the graph.
func (g *Graph) HasUnfinished(done map[string]int, cancelled map[string]bool) bool {
	return len(g.jobs) > 0
}

// Unfinished returns the uuids of every Job still in the graph.
func (g *Graph) Unfinished(done map[string]int, cancelled map[string]bool) []string {
	out := make([]string, 0, len(g.jobs))
	for uuid := range g.jobs {
		out = append(out, uuid)
	}
	return out
}

// AllUUIDs returns every uuid ever added to the graph, in insertion
// order.
func (g *Graph) AllUUIDs() []string {
	return append([]string{}, g.order...)
}
