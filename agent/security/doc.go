// Package security implements the security agent: it scans a target for
// vulnerabilities, scores compliance against common frameworks, and produces
// a markdown assessment report with a weighted risk score.
package security
