// Package api exposes the pipeline's trigger surface over HTTP: internal
// endpoints the scheduler hits to start seeding batches and recovery
// passes, dead-letter retry, queue stats, health and metrics. All
// /internal routes require a bearer token signed with the shared trigger
// secret.
package api
