package workflow

// compiledStep pairs a step name with its function in resolved order.
type compiledStep[S any] struct {
	name string
	fn   StepFunc[S]
}

// Graph is the compiled, immutable definition of a workflow: its steps in
// topological order. A Graph is built once by Builder.Compile and shared by
// every run; it holds no per-run state and is safe for concurrent use.
type Graph[S any] struct {
	name  string
	entry string
	steps []compiledStep[S]
}

// Name returns the workflow name.
func (g *Graph[S]) Name() string { return g.name }

// Entry returns the entry step name.
func (g *Graph[S]) Entry() string { return g.entry }

// Steps returns the step names in execution order.
func (g *Graph[S]) Steps() []string {
	names := make([]string, len(g.steps))
	for i, s := range g.steps {
		names[i] = s.name
	}
	return names
}
