package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrNetwork            = errors.New("network error")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrPageNotFound       = errors.New("page not found")
)

// NetworkError is a transport failure. Rerunning may succeed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// UnexpectedResponseError is an API contract violation.
type UnexpectedResponseError struct {
	Reason string
	Err    error
}

func (e *UnexpectedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected response: %s: %v", e.Reason, e.Err)
	}
	return "unexpected response: " + e.Reason
}

func (e *UnexpectedResponseError) Unwrap() error { return e.Err }

func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

// PageNotFoundError means the title no longer resolves on the wiki.
type PageNotFoundError struct {
	Title string
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page not found: %q", e.Title)
}

func (e *PageNotFoundError) Is(target error) bool { return target == ErrPageNotFound }

// APIError is the error object returned by the MediaWiki API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (code: %s)", e.Info, e.Code)
}
