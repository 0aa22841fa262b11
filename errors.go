package evice

import "fmt"

// VerificationError describes why a payment could not be accepted. It is
// carried inside verification results and gate decisions rather than raised,
// so request handling always ends in a structured HTTP response.
type VerificationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeTransactionNotFound = "transaction_not_found"
	ErrCodeWrongRecipient      = "wrong_recipient"
	ErrCodeReferenceMismatch   = "reference_mismatch"
	ErrCodeInsufficientAmount  = "insufficient_amount"
	ErrCodeReplayDetected      = "replay_detected"
	ErrCodeIncompleteRequest   = "incomplete_request"
)

// NewVerificationError creates a verification error with a formatted message.
func NewVerificationError(code, format string, args ...any) *VerificationError {
	return &VerificationError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
