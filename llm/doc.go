// Package llm defines the provider-agnostic chat completion interface shared
// by all agents, plus token accounting helpers. Concrete backends live in the
// openai and local subpackages.
package llm
