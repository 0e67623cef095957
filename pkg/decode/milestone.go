package decode

import (
	"encoding/json"
	"fmt"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// MilestoneSummary is published on the latest and confirmed milestone topics.
type MilestoneSummary struct {
	Index     uint32 `json:"index"`
	Timestamp uint64 `json:"timestamp"`
}

// Class implements Payload.
func (*MilestoneSummary) Class() topic.Class { return topic.ClassMilestone }

// String formats the summary the way the console prints it.
func (m *MilestoneSummary) String() string {
	return fmt.Sprintf("index=%d timestamp=%d", m.Index, m.Timestamp)
}

type milestoneWire struct {
	Index     *uint32 `json:"index"`
	Timestamp *uint64 `json:"timestamp"`
}

// DecodeMilestone decodes a milestone summary. Both fields are required.
func DecodeMilestone(t string, data []byte) (*MilestoneSummary, error) {
	var w milestoneWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, newError(t, topic.ClassMilestone, "", err)
	}
	if w.Index == nil {
		return nil, newError(t, topic.ClassMilestone, "missing index", nil)
	}
	if w.Timestamp == nil {
		return nil, newError(t, topic.ClassMilestone, "missing timestamp", nil)
	}
	return &MilestoneSummary{Index: *w.Index, Timestamp: *w.Timestamp}, nil
}
