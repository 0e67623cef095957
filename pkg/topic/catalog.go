package topic

import "encoding/hex"

// Identifiers carries the runtime identifiers embedded in parameterized
// topic filters. Empty fields are absent.
type Identifiers struct {
	// EntityID is a block (legacy: message) id for metadata updates.
	EntityID string

	// OutputID is an output id for output updates.
	OutputID string

	// TransactionID is a transaction id for inclusion notifications.
	TransactionID string

	// Index is the free-text indexation tag (legacy profile only).
	Index string

	// Bech32Address is a bech32 address for output updates (legacy profile only).
	Bech32Address string

	// Ed25519Address is a hex ed25519 address hash (legacy profile only).
	Ed25519Address string
}

// MetadataTopic returns the metadata topic of one block.
func MetadataTopic(p Profile, id string) string {
	if p == ProfileChrysalis {
		return "messages/" + id + "/metadata"
	}
	return "block-metadata/" + id
}

// OutputTopic returns the update topic of one output.
func OutputTopic(id string) string {
	return "outputs/" + id
}

// TransactionIncludedTopic returns the inclusion topic of one transaction.
func TransactionIncludedTopic(p Profile, id string) string {
	if p == ProfileChrysalis {
		return "transactions/" + id + "/included-message"
	}
	return "transactions/" + id + "/included-block"
}

// IndexTopic returns the legacy indexation topic. The index is a free-text
// tag; the node publishes it hex-encoded.
func IndexTopic(index string) string {
	return "messages/indexation/" + hex.EncodeToString([]byte(index))
}

// AddressOutputsTopic returns the legacy output topic of one address.
func AddressOutputsTopic(address string, bech32 bool) string {
	if bech32 {
		return "addresses/" + address + "/outputs"
	}
	return "addresses/ed25519/" + address + "/outputs"
}

// group is one catalog row: the filters a single bit contributes.
type group struct {
	bit Mask

	// parameterized groups need an identifier and contribute nothing without one.
	parameterized bool

	filters func(ids Identifiers) []string
}

func literal(topics ...string) func(Identifiers) []string {
	return func(Identifiers) []string { return topics }
}

func optional(id string, build func(string) string) []string {
	if id == "" {
		return nil
	}
	return []string{build(id)}
}

var stardustCatalog = []group{
	{bit: BitMilestones, filters: literal(TopicMilestoneLatest, TopicMilestoneConfirmed)},
	{bit: BitRawEntries, filters: literal(TopicBlocks)},
	{bit: BitTaggedData, filters: literal(TopicBlocksTaggedData)},
	{bit: BitReferencedMilestones, filters: literal(TopicMilestones)},
	{bit: BitEntityMetadata, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.EntityID, func(id string) string { return MetadataTopic(ProfileStardust, id) })
	}},
	{bit: BitOutput, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.OutputID, OutputTopic)
	}},
	{bit: BitTransactionIncluded, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.TransactionID, func(id string) string { return TransactionIncludedTopic(ProfileStardust, id) })
	}},
	{bit: BitEntryTransaction, filters: literal(TopicBlocksTransaction)},
}

var chrysalisCatalog = []group{
	{bit: BitMilestones, filters: literal(LegacyTopicMilestoneLatest, LegacyTopicMilestoneConfirmed)},
	{bit: BitRawEntries, filters: literal(LegacyTopicMessages)},
	{bit: BitTaggedData, filters: literal(LegacyTopicMessagesReferenced)},
	{bit: BitReferencedMilestones, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.Index, IndexTopic)
	}},
	{bit: BitEntityMetadata, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.EntityID, func(id string) string { return MetadataTopic(ProfileChrysalis, id) })
	}},
	{bit: BitOutput, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.OutputID, OutputTopic)
	}},
	{bit: BitTransactionIncluded, parameterized: true, filters: func(ids Identifiers) []string {
		return optional(ids.TransactionID, func(id string) string { return TransactionIncludedTopic(ProfileChrysalis, id) })
	}},
	{bit: BitEntryTransaction, parameterized: true, filters: func(ids Identifiers) []string {
		var out []string
		if ids.Bech32Address != "" {
			out = append(out, AddressOutputsTopic(ids.Bech32Address, true))
		}
		if ids.Ed25519Address != "" {
			out = append(out, AddressOutputsTopic(ids.Ed25519Address, false))
		}
		return out
	}},
}

func catalogFor(p Profile) []group {
	if p == ProfileChrysalis {
		return chrysalisCatalog
	}
	return stardustCatalog
}

// FiltersFor returns the topic filters selected by mask. The result is
// ordered by bit, free of duplicates, and identical for identical input.
// A parameterized bit whose identifier is missing contributes no filter.
func FiltersFor(p Profile, mask Mask, ids Identifiers) []string {
	var out []string
	seen := make(map[string]bool)
	for _, g := range catalogFor(p) {
		if !mask.Has(g.bit) {
			continue
		}
		for _, f := range g.filters(ids) {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// MissingIdentifiers returns the bits of mask that need an identifier
// which ids does not carry.
func MissingIdentifiers(p Profile, mask Mask, ids Identifiers) []Mask {
	var missing []Mask
	for _, g := range catalogFor(p) {
		if !g.parameterized || !mask.Has(g.bit) {
			continue
		}
		if len(g.filters(ids)) == 0 {
			missing = append(missing, g.bit)
		}
	}
	return missing
}
