package topic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidMask is returned when a mask string is not one or two hex digits.
var ErrInvalidMask = errors.New("invalid capability mask")

// Mask selects the subscription groups of a session.
// Bits are independent; every value 0..255 is legal.
type Mask uint8

// Capability bits.
const (
	// BitMilestones subscribes to latest and confirmed milestone info.
	BitMilestones Mask = 1 << iota

	// BitRawEntries subscribes to all raw blocks (legacy: messages).
	BitRawEntries

	// BitTaggedData subscribes to tagged-data blocks.
	// The legacy profile uses this bit for referenced messages.
	BitTaggedData

	// BitReferencedMilestones subscribes to milestone payloads.
	// The legacy profile uses this bit for the indexation topic.
	BitReferencedMilestones

	// BitEntityMetadata subscribes to the metadata of one block.
	BitEntityMetadata

	// BitOutput subscribes to updates of one output.
	BitOutput

	// BitTransactionIncluded subscribes to the inclusion of one transaction.
	BitTransactionIncluded

	// BitEntryTransaction subscribes to transaction blocks.
	// The legacy profile uses this bit for address output subscriptions.
	BitEntryTransaction
)

// AllBits lists the capability bits from least to most significant.
var AllBits = []Mask{
	BitMilestones,
	BitRawEntries,
	BitTaggedData,
	BitReferencedMilestones,
	BitEntityMetadata,
	BitOutput,
	BitTransactionIncluded,
	BitEntryTransaction,
}

// Has reports whether all bits of b are set in m.
func (m Mask) Has(b Mask) bool {
	return m&b == b
}

// IsZero reports whether no bit is set.
func (m Mask) IsZero() bool {
	return m == 0
}

// String returns the two-digit upper-case hex form used on the console.
func (m Mask) String() string {
	return fmt.Sprintf("%02X", uint8(m))
}

// ParseMask parses the external hex form of a mask ("1", "0F", "ff").
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 2 {
		return 0, fmt.Errorf("%w: %q (want one or two hex digits)", ErrInvalidMask, s)
	}
	for _, ch := range s {
		if !isHexDigit(ch) {
			return 0, fmt.Errorf("%w: %q (not hex)", ErrInvalidMask, s)
		}
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidMask, err)
	}
	return Mask(v), nil
}

func isHexDigit(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'F') || (ch >= 'a' && ch <= 'f')
}
