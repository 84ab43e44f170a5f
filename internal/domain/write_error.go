package domain

import "fmt"

type WriteErrorCode string

const (
	WriteAlreadyExists     WriteErrorCode = "already-exists"
	WriteNotFound          WriteErrorCode = "not-found"
	WriteInvalidCredential WriteErrorCode = "invalid-credential"
	WriteUnknown           WriteErrorCode = "unknown"
)

// WriteError is a categorized failure of a remote write.
type WriteError struct {
	Code WriteErrorCode
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func NewWriteError(code WriteErrorCode, op string, err error) *WriteError {
	return &WriteError{Code: code, Op: op, Err: err}
}
