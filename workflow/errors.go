package workflow

import "fmt"

// GraphValidationError reports a structural problem found at Compile time:
// a duplicate step name, a dangling edge, a cycle, or an unreachable step.
// It is fatal to startup and never occurs mid-run.
type GraphValidationError struct {
	Graph  string
	Reason string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("graph %q: %s", e.Graph, e.Reason)
}

func validationErr(graph, format string, args ...any) *GraphValidationError {
	return &GraphValidationError{
		Graph:  graph,
		Reason: fmt.Sprintf(format, args...),
	}
}
