// Package types holds shared error and context primitives used across
// the gateway, the agents, and their collaborator clients.
package types
