package decode

import (
	"encoding/hex"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// RawBytes is a payload passed through without interpretation.
type RawBytes []byte

// Class implements Payload.
func (RawBytes) Class() topic.Class { return topic.ClassRawBytes }

// Hex returns the payload as lowercase hex.
func (r RawBytes) Hex() string {
	return hex.EncodeToString(r)
}

// DecodeRaw copies data so the result does not alias transport buffers.
func DecodeRaw(data []byte) RawBytes {
	out := make(RawBytes, len(data))
	copy(out, data)
	return out
}
