package apierr

import "net/http"

// Error is a failure classified for transport.
type Error struct {
	Status int
	Code   string
	Err    error
	// Hidden keeps Err out of client responses.
	Hidden bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.fallback()
}

func (e *Error) Unwrap() error { return e.Err }

// Public is the message a client may see.
func (e *Error) Public() string {
	if e == nil {
		return ""
	}
	if e.Hidden || e.Err == nil {
		return e.fallback()
	}
	return e.Err.Error()
}

func (e *Error) fallback() string {
	if e.Code != "" {
		return e.Code
	}
	if txt := http.StatusText(e.Status); txt != "" {
		return txt
	}
	return "api error"
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Internal wraps a server-side failure whose cause stays in the logs.
func Internal(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err, Hidden: true}
}
