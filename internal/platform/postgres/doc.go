// Package postgres provides PostgreSQL implementations of the store
// interfaces used by the seeding pipeline. All implementations accept a
// store.DBTX so they work over a plain connection or a transaction, and
// route database errors through MapError so callers only ever match
// against store sentinel errors.
package postgres
