package extraction

import "fmt"

// ErrorCode identifies why a conversion failed.
type ErrorCode string

const (
	ErrModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrInvalidResponse  ErrorCode = "INVALID_RESPONSE"
	ErrSchemaViolation  ErrorCode = "SCHEMA_VIOLATION"
	ErrInvalidIDNumber  ErrorCode = "INVALID_ID_NUMBER"
)

// ExtractionError is a structured error for conversion failures.
type ExtractionError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, msg string, cause error) *ExtractionError {
	return &ExtractionError{Code: code, Message: msg, Cause: cause}
}
