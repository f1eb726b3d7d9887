package api

import (
	"errors"
	"fmt"
)

var errEmptyReport = errors.New("empty report")

type ErrorKind int

const (
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork ErrorKind = iota
	// KindHTTP means the service answered with a non-2xx status.
	KindHTTP
	// KindDecode means the response body could not be parsed.
	KindDecode
	// KindInvalid means the response parsed but does not match the expected schema.
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.Detail != "" {
			return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("api: %s: HTTP error! Status: %d", e.Op, e.StatusCode)
	default:
		if e.Err == nil {
			return fmt.Sprintf("api: %s: %s error", e.Op, e.Kind)
		}
		return fmt.Sprintf("api: %s: %s error: %s", e.Op, e.Kind, e.Err.Error())
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified client error. ok is false for
// errors that did not come from the client.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}
