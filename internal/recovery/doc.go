// Package recovery turns failed backlog items back into work or retires
// them. A recovery pass classifies each failed item's stored error
// message, re-queues retryable failures with a schedule appropriate to
// the failure kind, demotes exhausted or hopeless items to the
// dead-letter store, and ages out dead letters past their retention
// window. Dead letters can be re-queued manually after the underlying
// cause is fixed.
package recovery
