package tempgroup

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeInvalidDuration = "INVALID_DURATION"
	textCodeSubjectNotFound = "SUBJECT_NOT_FOUND"
	textCodeCorruptState    = "CORRUPT_TIMER_STATE"
	textCodeRevertFailed    = "GROUP_REVERT_FAILED"
	textCodePersistence     = "TIMER_PERSISTENCE_FAILED"
)

// ErrInvalidDuration is returned when a duration string does not match \d+[smhd].
var ErrInvalidDuration = goerrors.New("invalid duration format", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidDuration).
	WithCode(goerrors.CodeBadRequest)

// ErrSubjectNotFound is returned when the directory cannot resolve a subject.
var ErrSubjectNotFound = goerrors.New("subject not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeSubjectNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCorruptState is returned when the durable timer image exists but cannot
// be decoded. Whole-file overwrite persistence can leave a half-written image
// after a crash; callers decide between treating it as empty or aborting.
var ErrCorruptState = goerrors.New("timer state image is corrupt", goerrors.CategoryInternal).
	WithTextCode(textCodeCorruptState).
	WithCode(goerrors.CodeInternal)

// ErrRevertFailed is returned when the directory rejects a revert at fire
// time. The entry stays in the store so a later resumption retries it.
var ErrRevertFailed = goerrors.New("group revert failed", goerrors.CategoryOperation).
	WithTextCode(textCodeRevertFailed)

// revertFailure builds the revert error from ErrRevertFailed, carrying the
// directory failure as its source.
func revertFailure(subject, group string, cause error) error {
	rich := ErrRevertFailed.Clone()
	if rich == nil {
		rich = ErrRevertFailed
	}
	rich.Source = cause
	rich.WithMetadata(map[string]any{
		"subject": subject,
		"group":   group,
	})
	return rich
}

// ErrNoPendingTimer is returned when an operation targets a subject without
// a pending reversion.
var ErrNoPendingTimer = goerrors.New("no pending timer for subject", goerrors.CategoryNotFound).
	WithTextCode("NO_PENDING_TIMER").
	WithCode(goerrors.CodeNotFound)

// IsNotFound reports whether err maps to a missing subject or timer.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryNotFound
	}
	return false
}
