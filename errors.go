package findorcreate

import "fmt"

// ArgumentError reports a call that could not be started. It is always returned
// synchronously and never delivered through a callback or a promise.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return "findorcreate: " + e.Msg
}

func argumentErrorf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}
