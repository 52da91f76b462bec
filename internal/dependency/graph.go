// internal/dependency/graph.go
package dependency

import (
	"pluginrunner/internal/catalog"
)

// Edge is one requirement of a node, resolved against the catalog snapshot.
type Edge struct {
	Service catalog.ServiceID
	Level   catalog.RequirementLevel

	// Provider is the resolved providing component. It is only meaningful when
	// Resolved is true; an unresolved edge means the provider is missing.
	Provider catalog.ComponentID
	Resolved bool
}

// Node represents a component together with its resolved requirements.
type Node struct {
	ID           catalog.ComponentID
	FriendlyName string
	// Order is the position of the component in discovery order.
	Order int
	Edges []Edge
}

// EdgeFilter selects which edges a traversal follows.
type EdgeFilter func(Edge) bool

// AllEdges follows every resolved edge.
func AllEdges(Edge) bool { return true }

// ActivationEdges follows the edges that order starts: every level except
// Optional.
func ActivationEdges(e Edge) bool { return e.Level != catalog.Optional }

// RunEdges follows MustExistAndRun edges only.
func RunEdges(e Edge) bool { return e.Level.RequiresRunning() }

// Graph is the requirement graph of one catalog snapshot. It is immutable
// once built, so it can be shared by readers without locking.
type Graph struct {
	nodes     map[catalog.ComponentID]*Node
	order     []catalog.ComponentID
	providers map[catalog.ServiceID]catalog.ComponentID
}

// Build snapshots the catalog and resolves every requirement. When several
// components provide the same service, the first one in discovery order wins.
func Build(c catalog.Catalog) *Graph {
	components := c.AllComponents()
	g := &Graph{
		nodes:     make(map[catalog.ComponentID]*Node, len(components)),
		order:     make([]catalog.ComponentID, 0, len(components)),
		providers: make(map[catalog.ServiceID]catalog.ComponentID),
	}

	for _, d := range components {
		for _, s := range d.Provides {
			if _, taken := g.providers[s]; !taken {
				g.providers[s] = d.ID
			}
		}
	}

	for i, d := range components {
		n := &Node{
			ID:           d.ID,
			FriendlyName: d.DisplayName(),
			Order:        i,
			Edges:        make([]Edge, 0, len(d.Requirements)),
		}
		for _, r := range d.Requirements {
			provider, ok := g.providers[r.Service]
			n.Edges = append(n.Edges, Edge{
				Service:  r.Service,
				Level:    r.Level,
				Provider: provider,
				Resolved: ok,
			})
		}
		g.nodes[d.ID] = n
		g.order = append(g.order, d.ID)
	}
	return g
}

// Resolve returns the component providing the service, if any.
func (g *Graph) Resolve(s catalog.ServiceID) (catalog.ComponentID, bool) {
	id, ok := g.providers[s]
	return id, ok
}

// Get returns the stored node or nil if it does not exist.
func (g *Graph) Get(id catalog.ComponentID) *Node {
	return g.nodes[id]
}

// Contains reports whether the component is part of the snapshot.
func (g *Graph) Contains(id catalog.ComponentID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns all node IDs in discovery order.
func (g *Graph) Nodes() []catalog.ComponentID {
	ids := make([]catalog.ComponentID, len(g.order))
	copy(ids, g.order)
	return ids
}

// Dependencies returns the distinct resolved providers of id along edges
// accepted by filter, in requirement order. A component providing its own
// requirement is not listed.
func (g *Graph) Dependencies(id catalog.ComponentID, filter EdgeFilter) []catalog.ComponentID {
	n := g.nodes[id]
	if n == nil {
		return nil
	}
	var res []catalog.ComponentID
	seen := make(map[catalog.ComponentID]bool)
	for _, e := range n.Edges {
		if !e.Resolved || e.Provider == id || !filter(e) || seen[e.Provider] {
			continue
		}
		seen[e.Provider] = true
		res = append(res, e.Provider)
	}
	return res
}

// Dependents returns the components with a resolved requirement on id along
// edges accepted by filter, in discovery order. This is an O(n) walk; graphs
// are small.
func (g *Graph) Dependents(id catalog.ComponentID, filter EdgeFilter) []catalog.ComponentID {
	var res []catalog.ComponentID
	for _, nid := range g.order {
		if nid == id {
			continue
		}
		for _, e := range g.nodes[nid].Edges {
			if e.Resolved && e.Provider == id && filter(e) {
				res = append(res, nid)
				break
			}
		}
	}
	return res
}

// Reaches reports whether to can be reached from from by following edges
// accepted by filter. A node reaches itself only through a real cycle.
func (g *Graph) Reaches(from, to catalog.ComponentID, filter EdgeFilter) bool {
	visited := make(map[catalog.ComponentID]bool)
	stack := []catalog.ComponentID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.nodes[cur]
		if n == nil {
			continue
		}
		for _, e := range n.Edges {
			if !e.Resolved || !filter(e) {
				continue
			}
			if e.Provider == to {
				return true
			}
			if !visited[e.Provider] {
				visited[e.Provider] = true
				stack = append(stack, e.Provider)
			}
		}
	}
	return false
}

// TopologicalOrder orders the given subset so that providers come before
// their dependents along edges accepted by filter. Ties are broken by
// discovery order. Cycles do not stop the sort: when only cycle members are
// left, the earliest discovered member of a remaining cycle is emitted next.
func (g *Graph) TopologicalOrder(ids []catalog.ComponentID, filter EdgeFilter) []catalog.ComponentID {
	in := make(map[catalog.ComponentID]bool, len(ids))
	for _, id := range ids {
		if g.Contains(id) {
			in[id] = true
		}
	}

	// pending[d] counts the providers of d inside the subset not yet emitted.
	pending := make(map[catalog.ComponentID]int, len(in))
	for id := range in {
		for _, p := range g.Dependencies(id, filter) {
			if in[p] {
				pending[id]++
			}
		}
	}

	result := make([]catalog.ComponentID, 0, len(in))
	emitted := make(map[catalog.ComponentID]bool, len(in))
	for len(result) < len(in) {
		next, found := g.firstReady(in, emitted, pending)
		if !found {
			next = g.firstCycleMember(in, emitted, filter)
		}
		emitted[next] = true
		result = append(result, next)
		for _, d := range g.order {
			if !in[d] || emitted[d] {
				continue
			}
			for _, p := range g.Dependencies(d, filter) {
				if p == next {
					pending[d]--
				}
			}
		}
	}
	return result
}

// ReverseTopologicalOrder orders dependents before their providers.
func (g *Graph) ReverseTopologicalOrder(ids []catalog.ComponentID, filter EdgeFilter) []catalog.ComponentID {
	order := g.TopologicalOrder(ids, filter)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func (g *Graph) firstReady(in, emitted map[catalog.ComponentID]bool, pending map[catalog.ComponentID]int) (catalog.ComponentID, bool) {
	for _, id := range g.order {
		if in[id] && !emitted[id] && pending[id] <= 0 {
			return id, true
		}
	}
	return catalog.NilComponentID, false
}

// firstCycleMember is only called when every remaining node still waits on a
// remaining provider, so at least one remaining node lies on a cycle.
func (g *Graph) firstCycleMember(in, emitted map[catalog.ComponentID]bool, filter EdgeFilter) catalog.ComponentID {
	remaining := func(e Edge) bool {
		return filter(e) && in[e.Provider] && !emitted[e.Provider]
	}
	var fallback catalog.ComponentID
	for _, id := range g.order {
		if !in[id] || emitted[id] {
			continue
		}
		if fallback.IsNil() {
			fallback = id
		}
		if g.Reaches(id, id, remaining) {
			return id
		}
	}
	return fallback
}
