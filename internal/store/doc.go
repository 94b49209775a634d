// Package store defines the persistence interfaces consumed by the seeding
// pipeline (backlog, dead-letter, manual-review, usage ledger and dictionary
// entry stores) together with the sentinel errors shared by all of their
// implementations. Concrete PostgreSQL implementations live in
// internal/platform/postgres.
package store
