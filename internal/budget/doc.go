// Package budget enforces the shared daily token budget for the seeding
// pipeline. The ledger aggregates an append-only usage store by UTC day,
// sizes batches against an empirical per-term cost estimate, and fails
// closed when usage cannot be read.
package budget
