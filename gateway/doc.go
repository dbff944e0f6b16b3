// Package gateway exposes the agent platform over HTTP: one route per agent,
// tenant provisioning, and an aggregated health endpoint that probes every
// collaborator concurrently.
package gateway
