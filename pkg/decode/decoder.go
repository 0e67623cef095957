package decode

import (
	"github.com/nodevents/nodevents-go/pkg/topic"
)

// Decode decodes data with the decoder of class. It never panics; a
// payload that cannot be decoded returns a *DecodeError.
func Decode(class topic.Class, t string, data []byte) (p Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = newError(t, class, "decoder panic", nil)
		}
	}()

	switch class {
	case topic.ClassMilestone:
		return nonNil[*MilestoneSummary](DecodeMilestone(t, data))
	case topic.ClassEntityMetadata:
		return nonNil[*EntityMetadata](DecodeMetadata(t, data))
	case topic.ClassOutputUpdate:
		return nonNil[*OutputUpdate](DecodeOutput(t, data))
	case topic.ClassRawBytes:
		return DecodeRaw(data), nil
	default:
		return nil, newError(t, class, ErrUnsupportedClass.Error(), ErrUnsupportedClass)
	}
}

// nonNil avoids returning a typed nil pointer inside a non-nil interface.
func nonNil[T Payload](v T, err error) (Payload, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}
