package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nodevents/nodevents-go/pkg/topic"
)

// DefaultQoS is the MQTT quality of service used when a selection does not
// name one.
const DefaultQoS byte = 1

// Registry errors.
var (
	ErrEmptyMask         = errors.New("capability mask selects nothing")
	ErrNoFilters         = errors.New("no topic filters for capability mask")
	ErrMissingIdentifier = errors.New("capability requires an identifier")
	ErrInvalidQoS        = errors.New("invalid QoS")
	ErrUnknownFilter     = errors.New("unknown topic filter")
)

// Selection describes what a session subscribes to.
type Selection struct {
	Profile     topic.Profile
	Mask        topic.Mask
	Identifiers topic.Identifiers

	// QoS applies to every filter. Zero means DefaultQoS; use QoS0 to
	// request at-most-once delivery.
	QoS byte

	// QoS0 forces QoS 0.
	QoS0 bool

	// Strict rejects masks whose parameterized bits lack identifiers
	// instead of skipping those bits.
	Strict bool
}

func (s Selection) qos() byte {
	if s.QoS0 {
		return 0
	}
	if s.QoS == 0 {
		return DefaultQoS
	}
	return s.QoS
}

// Subscription is one topic filter with its quality of service.
type Subscription struct {
	Filter string
	QoS    byte
}

// String returns "filter@qos".
func (s Subscription) String() string {
	return fmt.Sprintf("%s@%d", s.Filter, s.QoS)
}

// Registry is the frozen subscription set of one session.
// It is safe for concurrent use.
type Registry struct {
	selection Selection
	subs      []Subscription

	// index maps a filter to its position in subs.
	index map[string]int

	mu    sync.Mutex
	acked map[string]bool
}

// New validates sel and computes its subscription set.
func New(sel Selection) (*Registry, error) {
	if sel.Mask.IsZero() {
		return nil, ErrEmptyMask
	}
	if sel.QoS > 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, sel.QoS)
	}
	if sel.Strict {
		if missing := topic.MissingIdentifiers(sel.Profile, sel.Mask, sel.Identifiers); len(missing) > 0 {
			return nil, fmt.Errorf("%w: bits %v", ErrMissingIdentifier, missing)
		}
	}

	filters := topic.FiltersFor(sel.Profile, sel.Mask, sel.Identifiers)
	if len(filters) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoFilters, sel.Mask)
	}

	qos := sel.qos()
	r := &Registry{
		selection: sel,
		subs:      make([]Subscription, len(filters)),
		index:     make(map[string]int, len(filters)),
		acked:     make(map[string]bool, len(filters)),
	}
	for i, f := range filters {
		r.subs[i] = Subscription{Filter: f, QoS: qos}
		r.index[f] = i
	}
	return r, nil
}

// ActiveFilters returns the subscriptions of the session.
func (r *Registry) ActiveFilters() []Subscription {
	return append([]Subscription(nil), r.subs...)
}

// OnReconnect returns the subscriptions to re-establish after a reconnect.
// The set equals ActiveFilters.
func (r *Registry) OnReconnect() []Subscription {
	return r.ActiveFilters()
}

// Filters returns the bare topic filters.
func (r *Registry) Filters() []string {
	out := make([]string, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.Filter
	}
	return out
}

// Len returns the number of subscriptions.
func (r *Registry) Len() int {
	return len(r.subs)
}

// Contains reports whether filter belongs to the session.
func (r *Registry) Contains(filter string) bool {
	_, ok := r.index[filter]
	return ok
}

// Mask returns the capability mask of the session.
func (r *Registry) Mask() topic.Mask {
	return r.selection.Mask
}

// Profile returns the node API profile of the session.
func (r *Registry) Profile() topic.Profile {
	return r.selection.Profile
}

// QoS returns the QoS level of every subscription.
func (r *Registry) QoS() byte {
	return r.selection.qos()
}

// Selection returns the selection the registry was built from.
func (r *Registry) Selection() Selection {
	return r.selection
}

// Ack records the broker acknowledgement of filter on the current
// connection and reports whether every filter is now acknowledged.
func (r *Registry) Ack(filter string) (complete bool, err error) {
	if !r.Contains(filter) {
		return false, fmt.Errorf("%w: %q", ErrUnknownFilter, filter)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked[filter] = true
	return len(r.acked) == len(r.subs), nil
}

// Complete reports whether every filter is acknowledged.
func (r *Registry) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.acked) == len(r.subs)
}

// Pending returns the subscriptions not yet acknowledged, in order.
func (r *Registry) Pending() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Subscription
	for _, s := range r.subs {
		if !r.acked[s.Filter] {
			out = append(out, s)
		}
	}
	return out
}

// ResetAcks forgets all acknowledgements. Call it when the connection drops.
func (r *Registry) ResetAcks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.acked)
}
