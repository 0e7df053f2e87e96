package tmpfile

import "errors"

var (
	// ErrNoDestination is returned by Publish when the destination path is
	// empty.
	ErrNoDestination = errors.New("no destination path provided")
)
