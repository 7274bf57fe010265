package llm

import (
	"errors"
	"fmt"
)

// TransportError indicates the backend could not be reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError indicates the backend returned an error response.
type ServerError struct {
	Err error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("llm server error: %v", e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsServer reports whether err is a backend-reported failure.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
