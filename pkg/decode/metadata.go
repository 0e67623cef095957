package decode

import (
	"encoding/json"
	"fmt"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// InclusionState is the ledger inclusion state of a referenced block.
type InclusionState uint8

const (
	// InclusionUnset means the node did not report a state yet.
	InclusionUnset InclusionState = iota
	InclusionIncluded
	InclusionConflicting
	InclusionNoTransaction
)

// String returns the wire name of the state.
func (s InclusionState) String() string {
	switch s {
	case InclusionUnset:
		return ""
	case InclusionIncluded:
		return "included"
	case InclusionConflicting:
		return "conflicting"
	case InclusionNoTransaction:
		return "noTransaction"
	default:
		return fmt.Sprintf("InclusionState(%d)", uint8(s))
	}
}

// ParseInclusionState parses the wire name of a state.
// The empty string yields InclusionUnset.
func ParseInclusionState(s string) (InclusionState, error) {
	switch s {
	case "":
		return InclusionUnset, nil
	case "included":
		return InclusionIncluded, nil
	case "conflicting":
		return InclusionConflicting, nil
	case "noTransaction":
		return InclusionNoTransaction, nil
	default:
		return InclusionUnset, fmt.Errorf("unknown inclusion state %q", s)
	}
}

// MarshalJSON encodes the state by name.
func (s InclusionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// EntityMetadata is the metadata of one block (legacy: message).
// Optional fields the node omitted are nil.
type EntityMetadata struct {
	ID             string         `json:"id"`
	Parents        []string       `json:"parents"`
	InclusionState InclusionState `json:"ledgerInclusionState"`

	IsSolid                    *bool   `json:"isSolid,omitempty"`
	ShouldPromote              *bool   `json:"shouldPromote,omitempty"`
	ShouldReattach             *bool   `json:"shouldReattach,omitempty"`
	ReferencedByMilestoneIndex *uint32 `json:"referencedByMilestoneIndex,omitempty"`
	MilestoneIndex             *uint32 `json:"milestoneIndex,omitempty"`
	ConflictReason             *uint8  `json:"conflictReason,omitempty"`
}

// Class implements Payload.
func (*EntityMetadata) Class() topic.Class { return topic.ClassEntityMetadata }

type metadataWire struct {
	BlockID   string   `json:"blockId"`
	MessageID string   `json:"messageId"`
	Parents   []string `json:"parents"`

	// ParentMessageIDs is the legacy name of Parents.
	ParentMessageIDs []string `json:"parentMessageIds"`

	LedgerInclusionState       *string `json:"ledgerInclusionState"`
	IsSolid                    *bool   `json:"isSolid"`
	ShouldPromote              *bool   `json:"shouldPromote"`
	ShouldReattach             *bool   `json:"shouldReattach"`
	ReferencedByMilestoneIndex *uint32 `json:"referencedByMilestoneIndex"`
	MilestoneIndex             *uint32 `json:"milestoneIndex"`
	ConflictReason             *uint8  `json:"conflictReason"`
}

// DecodeMetadata decodes block or message metadata.
func DecodeMetadata(t string, data []byte) (*EntityMetadata, error) {
	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, newError(t, topic.ClassEntityMetadata, "", err)
	}

	md := &EntityMetadata{
		ID:                         w.BlockID,
		Parents:                    w.Parents,
		IsSolid:                    w.IsSolid,
		ShouldPromote:              w.ShouldPromote,
		ShouldReattach:             w.ShouldReattach,
		ReferencedByMilestoneIndex: w.ReferencedByMilestoneIndex,
		MilestoneIndex:             w.MilestoneIndex,
		ConflictReason:             w.ConflictReason,
	}
	if md.ID == "" {
		md.ID = w.MessageID
	}
	if md.ID == "" {
		return nil, newError(t, topic.ClassEntityMetadata, "missing block id", nil)
	}
	if md.Parents == nil {
		md.Parents = w.ParentMessageIDs
	}
	if md.Parents == nil {
		md.Parents = []string{}
	}

	if w.LedgerInclusionState != nil {
		state, err := ParseInclusionState(*w.LedgerInclusionState)
		if err != nil {
			return nil, newError(t, topic.ClassEntityMetadata, err.Error(), err)
		}
		md.InclusionState = state
	}
	return md, nil
}
