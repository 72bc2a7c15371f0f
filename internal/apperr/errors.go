package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes the API surfaces. Components wrap
// collaborator failures into one of these at their boundary; handlers map
// them to HTTP statuses with errors.Is.
var (
	ErrValidation           = errors.New("invalid input")
	ErrDuplicateDocument    = errors.New("document already exists")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrIngestionFailed      = errors.New("ingestion failed")
	ErrRetrievalFailed      = errors.New("retrieval failed")
	ErrAnswerFailed         = errors.New("answer generation failed")
)

// Wrap attaches a cause to a sentinel so both survive errors.Is checks.
func Wrap(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// Wrapf is Wrap with an operation description for diagnostics.
func Wrapf(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
