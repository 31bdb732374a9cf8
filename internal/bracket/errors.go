package bracket

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)

type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindConflict   ErrorKind = "conflict"
	KindUnexpected ErrorKind = "unexpected"
)

// Kind classifies err into the domain taxonomy. Anything not wrapping one of
// the sentinels is unexpected.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindUnexpected
	}
}

// IsDomain reports whether err is an expected rule violation (validation or
// conflict) as opposed to a missing entity or an internal fault.
func IsDomain(err error) bool {
	k := Kind(err)
	return k == KindValidation || k == KindConflict
}
