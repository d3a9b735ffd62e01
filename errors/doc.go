// Package errors defines AppError, the structured error returned across the
// reduction pipeline.
//
// Codes group into configuration failures (fatal before any frame), wiring
// failures (graph construction time), runtime failures of a single frame
// (node or worker task), and input validation. Retryable marks errors after
// which the caller may re-emit a fresh frame; nothing retries automatically.
package errors
