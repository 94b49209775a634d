// Package seeder drains the term backlog in daily batches. Each run is
// sized against the remaining token budget, claims that many pending
// items, generates quality-gated dictionary entries per requested
// language, routes sub-threshold candidates to manual review, and
// records the actual token spend whether or not the terms succeeded.
package seeder
