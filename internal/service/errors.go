package service

import "errors"

var (
	// ErrStudentNotFound indicates no student in the unit matches a scanned or typed token.
	ErrStudentNotFound = errors.New("student not found")
	// ErrReleaseNotFound indicates the release does not exist in the operator's unit.
	ErrReleaseNotFound = errors.New("release not found")
	// ErrReleaseNotPending indicates the release was already completed.
	ErrReleaseNotPending = errors.New("release is not pending")
	// ErrLostItemNotFound indicates the registry item does not exist in the operator's unit.
	ErrLostItemNotFound = errors.New("lost item not found")
	// ErrInvalidTransition indicates a registry write that would move an item backwards or skip a step.
	ErrInvalidTransition = errors.New("invalid lost item transition")
	// ErrCompletionPartial indicates the release was flipped but a follow-up write failed.
	ErrCompletionPartial = errors.New("release completed partially")
	// ErrSessionRequired indicates the caller has no operator name or unit.
	ErrSessionRequired = errors.New("operator session required")
	// ErrInvalidInput indicates a request that fails validation beyond struct tags.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden indicates the operator role may not perform the action.
	ErrForbidden = errors.New("operation not permitted for role")
)
