// Package coding implements the coding agent: it analyzes requirements with
// the language model, generates implementation files, and opens a merge
// request on the repository host.
package coding
