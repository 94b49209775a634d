// Package generation orchestrates calls to the generative backend to
// produce quality-scored dictionary entries. The Engine drives a
// multi-step pipeline per term/language pair (definition, references,
// deterministic scoring, optional second-opinion validation) and retries
// internally until it reaches the configured quality threshold or runs
// out of attempts. It also supports targeted enhancement of existing
// entries.
package generation
