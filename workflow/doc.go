// Package workflow implements the step-graph execution engine shared by all
// agents.
//
// A workflow is declared once at startup through Builder: named steps over a
// typed state, connected by directed edges, validated and frozen by Compile.
// The resulting Graph is immutable and is executed by a Runner, once per
// inbound request, against a fresh state value.
//
// Steps follow a copy-on-write contract: a step receives the current state by
// value and returns an updated copy. A failing step returns an error and the
// runner keeps the last good state, so a failure can never corrupt fields
// computed by earlier steps.
//
// By default a run executes every step even after one fails; the first error
// decides the final verdict. WithFailFast switches a runner to skip the
// remaining steps instead.
package workflow
