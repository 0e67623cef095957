// Package topic maps capability masks to broker topic filters and classifies
// inbound topics.
//
// A node exposes its event stream as MQTT topics. Which topics a session
// subscribes to is selected by an 8-bit capability mask:
//
//	bit 0  milestone info (latest and confirmed)
//	bit 1  raw blocks
//	bit 2  tagged-data blocks
//	bit 3  referenced milestones (legacy: indexation by tag)
//	bit 4  metadata of one block           (needs EntityID)
//	bit 5  updates of one output           (needs OutputID)
//	bit 6  inclusion of one transaction    (needs TransactionID)
//	bit 7  transaction blocks              (legacy: address outputs)
//
// Two node API generations are supported through Profile. The catalog
// (FiltersFor) and the matcher (Matcher.Classify) are pure and do not touch
// the network.
//
// # Classification
//
// Topics are matched structurally, not parsed. Rules are evaluated in a
// fixed order because several patterns are substrings of each other:
//
//  1. exact literals
//  2. metadata prefix
//  3. "outputs/" substring
//  4. "transactions/" together with "/included-"
//
// Anything else is unrecognized and must be dropped by the caller.
package topic
