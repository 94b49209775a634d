// Package domain contains the core entities of the glossary seeding
// pipeline: backlog items awaiting generation, dictionary entries produced
// by it, and the supporting dead-letter, manual-review and token-usage
// records. Entities validate themselves; persistence lives in the store
// implementations.
package domain
