package service

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the auth and file services. Handlers map these to
// HTTP status codes; store and database failures wrap one of the *Failed
// sentinels together with the underlying error.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")

	ErrUploadFailed   = errors.New("upload failed")
	ErrListFailed     = errors.New("failed to get files")
	ErrDownloadFailed = errors.New("failed to download file")
	ErrDeleteFailed   = errors.New("failed to delete file")
	ErrPreviewFailed  = errors.New("failed to preview file")

	ErrInvalidCredentials = errors.New("invalid password")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

// ValidationError is a client-facing input error. It matches ErrBadRequest.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrBadRequest }

func badRequest(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
