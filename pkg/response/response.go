package response

import (
	"errors"
	"fmt"
)

// Error is an error that knows which HTTP status it should be reported with.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

func NewErrorf(code int, format string, args ...interface{}) error {
	return &Error{code, fmt.Errorf(format, args...)}
}

// Body is the JSON shape of every error response.
type Body struct {
	Status    string `json:"status"`
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func NewBody(detail, code, requestID string) Body {
	return Body{
		Status:    "error",
		Detail:    detail,
		Code:      code,
		RequestID: requestID,
	}
}
