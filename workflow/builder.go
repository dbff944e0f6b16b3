package workflow

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// StepFunc is a single unit of work over the workflow state S.
// It must not mutate its input; it returns an updated copy of the state,
// or an error describing why the step failed.
type StepFunc[S any] func(ctx context.Context, state S) (S, error)

// Builder constructs a Graph through a fluent API. Validation is deferred to
// Compile so construction mistakes (duplicate names, dangling edges) surface
// as a single GraphValidationError at startup.
type Builder[S any] struct {
	name   string
	steps  map[string]StepFunc[S]
	names  []string // registration order, for deterministic validation output
	edges  map[string][]string
	entry  string
	dups   []string
	logger *zap.Logger
}

// NewBuilder creates a builder for a workflow with the given name.
func NewBuilder[S any](name string) *Builder[S] {
	return &Builder[S]{
		name:   name,
		steps:  make(map[string]StepFunc[S]),
		edges:  make(map[string][]string),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used during compilation and inherited by the
// compiled graph.
func (b *Builder[S]) WithLogger(logger *zap.Logger) *Builder[S] {
	b.logger = logger
	return b
}

// AddStep registers a step function under a unique name. Registering the same
// name twice is a construction error reported by Compile.
func (b *Builder[S]) AddStep(name string, fn StepFunc[S]) *Builder[S] {
	if _, exists := b.steps[name]; exists {
		b.dups = append(b.dups, name)
		return b
	}
	b.steps[name] = fn
	b.names = append(b.names, name)
	return b
}

// AddEdge declares that step "to" runs after step "from" completes,
// regardless of the outcome of "from".
func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	b.edges[from] = append(b.edges[from], to)
	return b
}

// Sequence adds edges between each consecutive pair of names and sets the
// first name as the entry step. Convenience for the common linear chain.
func (b *Builder[S]) Sequence(names ...string) *Builder[S] {
	for i := 0; i+1 < len(names); i++ {
		b.AddEdge(names[i], names[i+1])
	}
	if len(names) > 0 {
		b.SetEntry(names[0])
	}
	return b
}

// SetEntry sets the entry step of the workflow.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

// Compile validates the declared steps and edges and returns an immutable,
// executable Graph. The topological order is resolved here exactly once and
// reused by every run.
func (b *Builder[S]) Compile() (*Graph[S], error) {
	if len(b.dups) > 0 {
		return nil, validationErr(b.name, "duplicate step name %q", b.dups[0])
	}
	if len(b.steps) == 0 {
		return nil, validationErr(b.name, "graph has no steps")
	}
	if b.entry == "" {
		return nil, validationErr(b.name, "entry step not set")
	}
	if _, ok := b.steps[b.entry]; !ok {
		return nil, validationErr(b.name, "entry step %q is not registered", b.entry)
	}

	for from, tos := range b.edges {
		if _, ok := b.steps[from]; !ok {
			return nil, validationErr(b.name, "edge references unregistered step %q", from)
		}
		for _, to := range tos {
			if _, ok := b.steps[to]; !ok {
				return nil, validationErr(b.name, "edge %s->%s references unregistered step %q", from, to, to)
			}
		}
	}

	if cycle := b.findCycle(); cycle != "" {
		return nil, validationErr(b.name, "cycle detected involving step %q", cycle)
	}

	if orphans := b.findOrphans(); len(orphans) > 0 {
		return nil, validationErr(b.name, "step %q is not reachable from entry %q", orphans[0], b.entry)
	}

	order, err := b.topoSort()
	if err != nil {
		return nil, err
	}

	steps := make([]compiledStep[S], len(order))
	for i, name := range order {
		steps[i] = compiledStep[S]{name: name, fn: b.steps[name]}
	}

	b.logger.Debug("workflow compiled",
		zap.String("workflow", b.name),
		zap.Int("steps", len(steps)),
		zap.String("entry", b.entry),
	)

	return &Graph[S]{name: b.name, entry: b.entry, steps: steps}, nil
}

// findCycle runs a DFS over the edge set and returns the name of a step
// involved in a cycle, or "" if the graph is acyclic.
func (b *Builder[S]) findCycle() string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(b.steps))

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = grey
		for _, next := range b.edges[name] {
			switch color[next] {
			case grey:
				return next
			case white:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		color[name] = black
		return ""
	}

	for _, name := range b.names {
		if color[name] == white {
			if c := visit(name); c != "" {
				return c
			}
		}
	}
	return ""
}

// findOrphans returns registered steps not reachable from the entry, in
// registration order.
func (b *Builder[S]) findOrphans() []string {
	reachable := make(map[string]bool, len(b.steps))
	var mark func(name string)
	mark = func(name string) {
		if reachable[name] {
			return
		}
		reachable[name] = true
		for _, next := range b.edges[name] {
			mark(next)
		}
	}
	mark(b.entry)

	var orphans []string
	for _, name := range b.names {
		if !reachable[name] {
			orphans = append(orphans, name)
		}
	}
	return orphans
}

// topoSort produces the execution order via Kahn's algorithm. Ready steps are
// taken in lexicographic order so the result is deterministic and stable
// across repeated compilations of the same edge set.
func (b *Builder[S]) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(b.steps))
	for _, name := range b.names {
		indegree[name] = 0
	}
	for _, tos := range b.edges {
		for _, to := range tos {
			indegree[to]++
		}
	}

	var ready []string
	for _, name := range b.names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(b.steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var unlocked []string
		for _, next := range b.edges[name] {
			indegree[next]--
			if indegree[next] == 0 {
				unlocked = append(unlocked, next)
			}
		}
		sort.Strings(unlocked)
		ready = mergeSorted(ready, unlocked)
	}

	if len(order) != len(b.steps) {
		// Unreachable given the cycle check above, kept as a guard.
		return nil, validationErr(b.name, "topological sort left %d steps unordered", len(b.steps)-len(order))
	}
	return order, nil
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
