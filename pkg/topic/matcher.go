package topic

import "strings"

// Class is the decoder family a topic belongs to.
type Class uint8

const (
	// ClassUnrecognized marks topics no rule matched.
	ClassUnrecognized Class = iota

	// ClassMilestone carries a milestone summary (index, timestamp).
	ClassMilestone

	// ClassEntityMetadata carries block or message metadata.
	ClassEntityMetadata

	// ClassOutputUpdate carries an output together with its metadata.
	ClassOutputUpdate

	// ClassRawBytes is passed through without interpretation.
	ClassRawBytes
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassUnrecognized:
		return "UNRECOGNIZED"
	case ClassMilestone:
		return "MILESTONE"
	case ClassEntityMetadata:
		return "METADATA"
	case ClassOutputUpdate:
		return "OUTPUT"
	case ClassRawBytes:
		return "RAW"
	default:
		return "UNKNOWN"
	}
}

// RuleKind selects how a rule compares a topic against its patterns.
type RuleKind uint8

const (
	// RuleExact matches when the topic equals the single pattern.
	RuleExact RuleKind = iota

	// RulePrefix matches when the topic starts with the single pattern.
	RulePrefix

	// RuleContains matches when the topic contains the single pattern.
	RuleContains

	// RuleContainsAll matches when the topic contains every pattern.
	RuleContainsAll
)

// String returns the rule kind name.
func (k RuleKind) String() string {
	switch k {
	case RuleExact:
		return "exact"
	case RulePrefix:
		return "prefix"
	case RuleContains:
		return "contains"
	case RuleContainsAll:
		return "contains-all"
	default:
		return "unknown"
	}
}

// Rule classifies topics matching its patterns.
type Rule struct {
	Kind     RuleKind
	Patterns []string
	Class    Class

	// Name identifies the topic family, e.g. "blocks" or "tx-included".
	Name string
}

// Matches reports whether topic satisfies the rule.
func (r Rule) Matches(topic string) bool {
	if len(r.Patterns) == 0 {
		return false
	}
	switch r.Kind {
	case RuleExact:
		return topic == r.Patterns[0]
	case RulePrefix:
		return strings.HasPrefix(topic, r.Patterns[0])
	case RuleContains:
		return strings.Contains(topic, r.Patterns[0])
	case RuleContainsAll:
		for _, p := range r.Patterns {
			if !strings.Contains(topic, p) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Exact returns a RuleExact rule.
func Exact(topic string, class Class, name string) Rule {
	return Rule{Kind: RuleExact, Patterns: []string{topic}, Class: class, Name: name}
}

// Prefix returns a RulePrefix rule.
func Prefix(prefix string, class Class, name string) Rule {
	return Rule{Kind: RulePrefix, Patterns: []string{prefix}, Class: class, Name: name}
}

// Contains returns a RuleContains rule.
func Contains(sub string, class Class, name string) Rule {
	return Rule{Kind: RuleContains, Patterns: []string{sub}, Class: class, Name: name}
}

// ContainsAll returns a RuleContainsAll rule.
func ContainsAll(class Class, name string, subs ...string) Rule {
	return Rule{Kind: RuleContainsAll, Patterns: subs, Class: class, Name: name}
}

// Match is the result of a successful classification.
type Match struct {
	Class Class
	Rule  string
}

// Matcher evaluates an ordered rule list. The first matching rule wins.
// A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// NewMatcher creates a matcher evaluating rules in the given order.
func NewMatcher(rules ...Rule) *Matcher {
	return &Matcher{rules: append([]Rule(nil), rules...)}
}

// Classify returns the first rule matching topic.
// ok is false when the topic is unrecognized.
func (m *Matcher) Classify(topic string) (match Match, ok bool) {
	for _, r := range m.rules {
		if r.Matches(topic) {
			return Match{Class: r.Class, Rule: r.Name}, true
		}
	}
	return Match{Class: ClassUnrecognized}, false
}

// Rules returns a copy of the rule list in evaluation order.
func (m *Matcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// includedMarker is shared by "included-block" and "included-message".
const includedMarker = "/included-"

var stardustMatcher = NewMatcher(
	Exact(TopicMilestoneLatest, ClassMilestone, "milestone-latest"),
	Exact(TopicMilestoneConfirmed, ClassMilestone, "milestone-confirmed"),
	Exact(TopicBlocks, ClassRawBytes, "blocks"),
	Exact(TopicBlocksTaggedData, ClassRawBytes, "tagged-data"),
	Exact(TopicMilestones, ClassRawBytes, "milestones"),
	Exact(TopicBlocksTransaction, ClassRawBytes, "block-transaction"),
	Prefix("block-metadata/", ClassEntityMetadata, "block-metadata"),
	Contains("outputs/", ClassOutputUpdate, "outputs"),
	ContainsAll(ClassRawBytes, "tx-included", "transactions/", includedMarker),
)

// The legacy rules keep the order the chrysalis firmware evaluated them in.
// Metadata ids sit in the middle of the topic, so a prefix rule cannot be used.
var chrysalisMatcher = NewMatcher(
	Exact(LegacyTopicMilestoneLatest, ClassMilestone, "milestone-latest"),
	Exact(LegacyTopicMilestoneConfirmed, ClassMilestone, "milestone-confirmed"),
	Exact(LegacyTopicMessagesReferenced, ClassEntityMetadata, "messages-referenced"),
	Exact(LegacyTopicMessages, ClassRawBytes, "messages"),
	ContainsAll(ClassEntityMetadata, "message-metadata", "messages/", "/metadata"),
	Contains("outputs/", ClassOutputUpdate, "outputs"),
	Contains("addresses/", ClassOutputUpdate, "address-outputs"),
	ContainsAll(ClassRawBytes, "tx-included", "transactions/", includedMarker),
	Prefix("messages/indexation/", ClassRawBytes, "indexation"),
)

// MatcherFor returns the built-in matcher of a profile.
func MatcherFor(p Profile) *Matcher {
	if p == ProfileChrysalis {
		return chrysalisMatcher
	}
	return stardustMatcher
}
