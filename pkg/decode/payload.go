package decode

import (
	"errors"
	"fmt"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// Payload is a decoded event body. The concrete type depends on the class:
// *MilestoneSummary, *EntityMetadata, *OutputUpdate or RawBytes.
type Payload interface {
	// Class returns the topic class the payload was decoded for.
	Class() topic.Class
}

// ErrUnsupportedClass is returned for classes that have no decoder.
var ErrUnsupportedClass = errors.New("unsupported topic class")

// DecodeError describes a payload that could not be decoded.
type DecodeError struct {
	Topic  string
	Class  topic.Class
	Reason string

	// Err is the underlying parse error, if any.
	Err error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload on %q: %s", e.Class, e.Topic, e.Reason)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func newError(t string, class topic.Class, reason string, err error) *DecodeError {
	if err != nil && reason == "" {
		reason = err.Error()
	}
	return &DecodeError{Topic: t, Class: class, Reason: reason, Err: err}
}
