package transfer

import "errors"

var (
	// ErrTransferInProgress is returned by Submit while another transfer is
	// validating, awaiting a risk verdict or blocked awaiting confirmation.
	ErrTransferInProgress = errors.New("a transfer is already in progress")
	// ErrNoBlockedTransfer is returned by Confirm when nothing is held.
	ErrNoBlockedTransfer = errors.New("no blocked transfer awaiting confirmation")
)

// RejectReason names the validation rule a transfer failed.
type RejectReason string

const (
	ReasonEmptyRecipient    RejectReason = "empty_recipient"
	ReasonInvalidAmount     RejectReason = "invalid_amount"
	ReasonInsufficientFunds RejectReason = "insufficient_funds"
)

var reasonMessages = map[RejectReason]string{
	ReasonEmptyRecipient:    "recipient is required",
	ReasonInvalidAmount:     "amount must be a positive number",
	ReasonInsufficientFunds: "insufficient funds",
}

// ValidationError rejects a transfer before any risk evaluation.
type ValidationError struct {
	Reason RejectReason
}

// NewValidationError creates a ValidationError for reason.
func NewValidationError(reason RejectReason) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	if msg, ok := reasonMessages[e.Reason]; ok {
		return "transfer rejected: " + msg
	}
	return "transfer rejected: " + string(e.Reason)
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
