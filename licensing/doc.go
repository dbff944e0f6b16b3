// Package licensing meters per-tenant agent usage and manages subscription
// licenses and billing. Usage counters live in Redis; licenses persist in
// SQLite. Metering is fail-open: tenants over their limits are flagged for
// overage billing, not blocked.
package licensing
