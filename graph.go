package dialogue

import (
	"sort"
)

// End is the reserved terminal marker. An edge that targets End terminates
// the session instead of entering another step.
const End = "__end__"

// Edge is the outgoing connection of a step: either a single unconditional
// target, or a router with a selector map.
type Edge struct {
	to      string
	router  Router
	targets map[string]string
}

// To returns an unconditional edge to the named step.
func To(step string) Edge {
	return Edge{to: step}
}

// Route returns a conditional edge. The router's selector key is looked up
// in targets to find the next step; a key missing from targets is a routing
// error, never a silent fallthrough.
func Route(router Router, targets map[string]string) Edge {
	return Edge{router: router, targets: targets}
}

// Conditional reports whether the edge uses a router.
func (e Edge) Conditional() bool { return e.router != nil }

// GraphOptions are used to configure a graph.
type GraphOptions struct {
	Name  string
	Steps []Step
	Edges map[string]Edge
	Start string
}

// Graph is an immutable topology of named steps and edges, constructed once
// and validated before first use.
type Graph struct {
	name        string
	start       string
	stepsByName map[string]Step
	edges       map[string]Edge
}

// NewGraph returns a new Graph configured with the given options. All
// validation happens here, at build time: every edge target and every
// selector-map value must reference a registered step or End, and the start
// step must be registered.
func NewGraph(opts GraphOptions) (*Graph, error) {
	if opts.Name == "" {
		return nil, newGraphDefinitionError("graph name required")
	}
	if len(opts.Steps) == 0 {
		return nil, newGraphDefinitionError("at least one step required")
	}

	stepsByName := make(map[string]Step, len(opts.Steps))
	for _, step := range opts.Steps {
		if step.Name() == "" {
			return nil, newGraphDefinitionError("step name cannot be empty")
		}
		if _, ok := stepsByName[step.Name()]; ok {
			return nil, newGraphDefinitionErrorf("duplicate step name %q", step.Name())
		}
		stepsByName[step.Name()] = step
	}

	start := opts.Start
	if start == "" {
		start = opts.Steps[0].Name()
	}
	if _, ok := stepsByName[start]; !ok {
		return nil, newGraphDefinitionErrorf("start step %q not registered", start)
	}

	edges := make(map[string]Edge, len(opts.Edges))
	for from, edge := range opts.Edges {
		if _, ok := stepsByName[from]; !ok {
			return nil, newGraphDefinitionErrorf("edge from unknown step %q", from)
		}
		if edge.Conditional() {
			if len(edge.targets) == 0 {
				return nil, newGraphDefinitionErrorf("conditional edge from %q has no targets", from)
			}
			for key, target := range edge.targets {
				if err := validateTarget(stepsByName, from, target); err != nil {
					return nil, newGraphDefinitionErrorf("edge from %q selector %q: %s", from, key, err)
				}
			}
		} else {
			if err := validateTarget(stepsByName, from, edge.to); err != nil {
				return nil, newGraphDefinitionErrorf("edge from %q: %s", from, err)
			}
		}
		edges[from] = edge
	}

	return &Graph{
		name:        opts.Name,
		start:       start,
		stepsByName: stepsByName,
		edges:       edges,
	}, nil
}

func validateTarget(stepsByName map[string]Step, from, target string) error {
	if target == End {
		return nil
	}
	if target == "" {
		return newGraphDefinitionError("empty target")
	}
	if _, ok := stepsByName[target]; !ok {
		return newGraphDefinitionErrorf("target step %q not registered", target)
	}
	return nil
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Start returns the name of the start step.
func (g *Graph) Start() string {
	return g.start
}

// Step returns a step by name.
func (g *Graph) Step(name string) (Step, bool) {
	step, ok := g.stepsByName[name]
	return step, ok
}

// Edge returns the outgoing edge of a step. A step with no edge is terminal
// once it continues.
func (g *Graph) Edge(from string) (Edge, bool) {
	edge, ok := g.edges[from]
	return edge, ok
}

// StepNames returns the names of all steps in the graph.
func (g *Graph) StepNames() []string {
	names := make([]string, 0, len(g.stepsByName))
	for name := range g.stepsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
