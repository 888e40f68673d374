package models

// LookupStatus discriminates the outcome of a login or uid lookup.
type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
	LookupBackendError
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupBackendError:
		return "backend_error"
	default:
		return "not_found"
	}
}

// Lookup is the result of asking a resolver for a uid or a login. A missing
// user is not an error: callers must be able to tell "no such user" apart
// from "backend is down".
type Lookup struct {
	Status LookupStatus
	Value  string
	Err    error
}

func Found(value string) Lookup {
	return Lookup{Status: LookupFound, Value: value}
}

func NotFound() Lookup {
	return Lookup{Status: LookupNotFound}
}

func BackendError(err error) Lookup {
	return Lookup{Status: LookupBackendError, Err: err}
}

func (l Lookup) IsFound() bool {
	return l.Status == LookupFound
}

func (l Lookup) IsNotFound() bool {
	return l.Status == LookupNotFound
}

func (l Lookup) IsBackendError() bool {
	return l.Status == LookupBackendError
}
