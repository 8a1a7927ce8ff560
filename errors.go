package gridstore

import "errors"

var (
	ErrInvalidArgument = errors.New("gridstore: invalid argument")
	ErrInvalidSource   = errors.New("gridstore: source can only be a readable stream, buffer or path string")
	ErrInvalidSelector = errors.New("gridstore: selector must be either a valid object id or a filename")
	// ErrNoMatch means no file record matched the selector.
	ErrNoMatch = errors.New("gridstore: no match")
	// ErrNotFound means the record exists but its chunk data does not.
	ErrNotFound = errors.New("gridstore: file data not found")
)
