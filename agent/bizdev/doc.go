// Package bizdev implements the business development agent: it qualifies
// inbound leads with the language model, deduplicates them against the CRM,
// creates lead records, and schedules follow-up actions.
package bizdev
