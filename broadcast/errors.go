package broadcast

import "errors"

var (
	// ErrInvalidArgument is returned by Subscribe for a nil handler.
	ErrInvalidArgument = errors.New("broadcast: invalid argument")

	// ErrDisposed is returned by Producer.OnNext/OnError/OnCompleted and
	// Subscribe once the subject has been disposed.
	ErrDisposed = errors.New("broadcast: subject is disposed")
)
