// Package config loads gateway configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
//
// Collaborator sections (CRM, Slack, Twitter, LLM) each expose a Configured
// check; when credentials are absent the corresponding client runs in
// degraded mode with deterministic placeholder results instead of failing.
package config
