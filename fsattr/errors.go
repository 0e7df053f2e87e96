package fsattr

import "errors"

var (
	ErrNoUpdate        = errors.New("nothing to update: supply a base aggregate or at least one field override")
	ErrAmbiguousUpdate = errors.New("ambiguous update: supply either a base aggregate or field overrides, not both")
	ErrLabelTooLong    = errors.New("label does not fit in the filesystem label buffer")
)
