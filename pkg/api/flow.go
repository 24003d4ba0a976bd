package api

import (
	"fmt"

	"github.com/google/uuid"
)

// Node is implemented by *Job and *Flow: the two things that can appear
// in a Flow's graph. The unexported nodeParent/setNodeParent pair backs
// Flow.Add's ownership-exclusivity check: a Node remembers the single
// Flow it was added to, if any.
type Node interface {
	nodeUUIDs() []string
	nodeOutput() OutputReference
	nodeParent() *Flow
	setNodeParent(*Flow)
}

func (j *Job) nodeUUIDs() []string         { return []string{j.UUID} }
func (j *Job) nodeOutput() OutputReference { return j.Output() }
func (j *Job) nodeParent() *Flow           { return j.parent }
func (j *Job) setNodeParent(f *Flow)       { j.parent = f }

// Flow is an ordered, acyclic collection of Jobs and nested Flows. Its
// Output, if set, is what downstream Jobs see when they reference the
// Flow itself rather than one of its members.
type Flow struct {
	UUID  string
	Name  string
	Nodes []Node

	// Output is the reference substituted wherever code builds an
	// OutputReference to this Flow rather than to one of its Jobs.
	Output *OutputReference

	parent *Flow
}

func (f *Flow) nodeUUIDs() []string {
	var out []string
	for _, n := range f.Nodes {
		out = append(out, n.nodeUUIDs()...)
	}
	return out
}

func (f *Flow) nodeOutput() OutputReference {
	if f.Output != nil {
		return *f.Output
	}
	if len(f.Nodes) > 0 {
		return f.Nodes[len(f.Nodes)-1].nodeOutput()
	}
	return OutputReference{}
}

func (f *Flow) nodeParent() *Flow     { return f.parent }
func (f *Flow) setNodeParent(p *Flow) { f.parent = p }

// hostStack returns the chain of enclosing Flow uuids from the root down
// to and including f itself, the value every Job directly inside f
// carries as its Hosts.
func (f *Flow) hostStack() []string {
	if f.parent == nil {
		return []string{f.UUID}
	}
	return append(f.parent.hostStack(), f.UUID)
}

// NewFlow constructs a Flow, optionally seeded with nodes, by Adding
// each one in order. Every call site in this codebase only ever seeds
// NewFlow with fresh nodes that have no existing parent, so Add cannot
// fail here; if it ever does, that is a programmer error and NewFlow
// panics rather than silently dropping the ownership check.
func NewFlow(name string, nodes ...Node) *Flow {
	f := &Flow{Name: name, UUID: uuid.NewString()}
	for _, n := range nodes {
		if err := f.Add(n); err != nil {
			panic(fmt.Sprintf("jobflow: NewFlow(%q): %v", name, err))
		}
	}
	return f
}

// Add appends a Node (Job or Flow) to the Flow, taking ownership of it
// and refreshing the Hosts of every Job in its subtree. Ownership is
// exclusive: Add fails if n already belongs to a Flow, or if adding it
// would introduce a cycle (n is f itself, or a Flow that already
// contains f somewhere in its subtree).
func (f *Flow) Add(n Node) error {
	if n.nodeParent() != nil {
		return &GraphConstructionError{Reason: fmt.Sprintf("node already belongs to flow %q", n.nodeParent().Name)}
	}
	if nf, ok := n.(*Flow); ok && containsFlow(nf, f) {
		return &GraphConstructionError{Reason: fmt.Sprintf("adding %q to %q would introduce a cycle", nf.Name, f.Name)}
	}

	f.Nodes = append(f.Nodes, n)
	n.setNodeParent(f)
	refreshHosts(n, f.hostStack())
	return nil
}

// containsFlow reports whether target appears anywhere in root's
// subtree, root itself included.
func containsFlow(root, target *Flow) bool {
	if root == target {
		return true
	}
	for _, child := range root.Nodes {
		if cf, ok := child.(*Flow); ok && containsFlow(cf, target) {
			return true
		}
	}
	return false
}

// refreshHosts sets Hosts on every Job reachable under n to
// ancestorStack, the host chain of the Flow n was just added to,
// recursing into nested Flows with their own uuid appended. It is the
// mechanism that keeps a Job's Hosts a prefix of its enclosing Flow's
// hosts even when a Flow built standalone is later added to an outer
// Flow.
func refreshHosts(n Node, ancestorStack []string) {
	switch t := n.(type) {
	case *Job:
		t.Hosts = append([]string{}, ancestorStack...)
	case *Flow:
		stack := append(append([]string{}, ancestorStack...), t.UUID)
		for _, child := range t.Nodes {
			refreshHosts(child, stack)
		}
	}
}

// OutputRef returns the OutputReference downstream code should use when
// it references this Flow as a whole, resolving to SetOutput's value or,
// absent that, the last node's output.
func (f *Flow) OutputRef() OutputReference {
	return f.nodeOutput()
}

// SetOutput marks ref as the output Flow itself resolves to, overriding
// the default (the last node's output).
func (f *Flow) SetOutput(ref OutputReference) {
	f.Output = &ref
}

// AllUUIDs returns every Job uuid reachable in the Flow, including those
// nested inside sub-Flows, in encounter order.
func (f *Flow) AllUUIDs() []string {
	return f.nodeUUIDs()
}

// jobs flattens the Flow into its constituent *Job pointers, in
// encounter order, descending into nested Flows.
func (f *Flow) jobs() []*Job {
	var out []*Job
	var walk func(n Node)
	walk = func(n Node) {
		switch t := n.(type) {
		case *Job:
			out = append(out, t)
		case *Flow:
			for _, child := range t.Nodes {
				walk(child)
			}
		}
	}
	for _, n := range f.Nodes {
		walk(n)
	}
	return out
}

// Iterflow returns the Flow's Jobs in topological order: a Job is only
// yielded after every Job whose output it references has already been
// yielded. Among Jobs with no remaining unresolved dependency, insertion
// order is preserved, so two Flows built with the same Add sequence
// always iterate identically.
func (f *Flow) Iterflow() ([]*Job, error) {
	jobs := f.jobs()

	index := make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		index[j.UUID] = j
	}

	indegree := make(map[string]int, len(jobs))
	dependents := make(map[string][]string)
	for _, j := range jobs {
		inputs, err := j.InputUUIDs()
		if err != nil {
			return nil, err
		}
		count := 0
		for uuid := range inputs {
			if uuid == j.UUID {
				continue
			}
			if _, known := index[uuid]; !known {
				continue
			}
			count++
			dependents[uuid] = append(dependents[uuid], j.UUID)
		}
		indegree[j.UUID] = count
	}

	var ready []string
	for _, j := range jobs {
		if indegree[j.UUID] == 0 {
			ready = append(ready, j.UUID)
		}
	}

	var order []*Job
	seen := make(map[string]bool, len(jobs))
	for len(ready) > 0 {
		uuid := ready[0]
		ready = ready[1:]
		if seen[uuid] {
			continue
		}
		seen[uuid] = true
		order = append(order, index[uuid])
		for _, dep := range dependents[uuid] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(jobs) {
		var stuck []string
		for _, j := range jobs {
			if !seen[j.UUID] {
				stuck = append(stuck, j.UUID)
			}
		}
		return nil, &GraphConstructionError{Reason: fmt.Sprintf("cycle detected among jobs %v", stuck)}
	}
	return order, nil
}
