package domain

import (
	"errors"
	"fmt"
)

// ErrNoPhotos marks a listing whose filtered photo set came back empty.
// It is a skip condition, not a failure: such listings are never persisted.
var ErrNoPhotos = errors.New("no qualifying photos")

// FetchError wraps a failed HTTP fetch. A FetchError on the index page is
// fatal to the run; on a detail page it drops only that candidate.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps a failure to parse a fetched document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
