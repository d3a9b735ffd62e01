package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors raised by external collaborators (retryable)
const (
	// ErrCodeServiceUnavailable indicates a collaborator is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates an operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the emit cascade was cancelled by its context.
	ErrCodeCanceled ErrorCode = "CANCELED"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrCodeShapeMismatch indicates two arrays that must align do not.
	ErrCodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"
)

// Reduction errors
const (
	// ErrCodeConfiguration indicates a fatal setup problem detected before
	// any frame is processed, such as an ambiguous calibration source.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	// ErrCodeWiring indicates a graph construction failure: unresolved,
	// duplicate or mistyped ports, or a dependency cycle between chunks.
	ErrCodeWiring ErrorCode = "WIRING"
	// ErrCodeWorkerFailed indicates an outlier task failed inside the pool.
	ErrCodeWorkerFailed ErrorCode = "WORKER_FAILED"
	// ErrCodeNodeFailed indicates a node callback failed during emit.
	ErrCodeNodeFailed ErrorCode = "NODE_FAILED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeExternalService indicates an error from an external collaborator.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Retryable here means "re-emitting a fresh frame may succeed"; nothing in
// this module retries on its own.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeWorkerFailed:       true,
	ErrCodeNodeFailed:         true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
