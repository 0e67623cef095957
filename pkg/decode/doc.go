// Package decode turns node event payloads into typed values.
//
// Every topic class has one decoder:
//
//	MILESTONE  {"index": n, "timestamp": n}             -> *MilestoneSummary
//	METADATA   block or message metadata object          -> *EntityMetadata
//	OUTPUT     output together with its ledger metadata  -> *OutputUpdate
//	RAW        anything                                  -> RawBytes
//
// Decoders are pure and never panic. Malformed input yields a *DecodeError
// naming the topic and the reason, so callers can report it and carry on.
//
// Output payloads are accepted in both node API shapes: the current shape
// nests ledger data under "metadata" and carries the amount as a decimal
// string with unlock conditions, while the legacy shape is flat with a
// numeric amount and a single address.
package decode
