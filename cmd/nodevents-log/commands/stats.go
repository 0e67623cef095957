package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/nodevents/nodevents-go/pkg/log"
	"github.com/nodevents/nodevents-go/pkg/topic"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByClass   map[topic.Class]int
	Sessions          map[string]*SessionStats
	Dropped           int
	DecodeErrors      int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Messages   int
	Broker     string
	ClientID   string
	Reconnects int
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, filter log.Filter, w io.Writer) error {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByClass:   make(map[topic.Class]int),
		Sessions:          make(map[string]*SessionStats),
	}

	if err := forEach(path, filter, stats.add); err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) error {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.Broker != "" && sess.Broker == "" {
		sess.Broker = event.Broker
	}
	if event.ClientID != "" && sess.ClientID == "" {
		sess.ClientID = event.ClientID
	}

	switch {
	case event.Message != nil:
		sess.Messages++
		s.MessagesByClass[event.Message.Class]++
		if event.Message.Dropped {
			s.Dropped++
		}
		if event.Message.DecodeError != "" {
			s.DecodeErrors++
		}
	case event.StateChange != nil:
		sc := event.StateChange
		if sc.Entity == log.StateEntityConnection && sc.OldState == "DISCONNECTED" && sc.NewState == "CONNECTED" {
			sess.Reconnects++
		}
	case event.Error != nil:
		s.Errors++
	}
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Node Event Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerSubscription, log.LayerDispatch} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategorySubscription, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.MessagesByClass) > 0 {
		fmt.Fprintln(w, "Messages by Class:")
		for _, class := range []topic.Class{topic.ClassMilestone, topic.ClassEntityMetadata, topic.ClassOutputUpdate, topic.ClassRawBytes, topic.ClassUnrecognized} {
			if count := stats.MessagesByClass[class]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", class.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d messages, duration %s\n",
				shortenID(s.id), s.stats.Events, s.stats.Messages, duration)
			if s.stats.Broker != "" {
				fmt.Fprintf(w, "           Broker: %s\n", s.stats.Broker)
			}
			if s.stats.ClientID != "" {
				fmt.Fprintf(w, "           Client: %s\n", s.stats.ClientID)
			}
			if s.stats.Reconnects > 0 {
				fmt.Fprintf(w, "           Reconnects: %d\n", s.stats.Reconnects)
			}
		}
	}

	if stats.Dropped > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Dropped: %d\n", stats.Dropped)
	}
	if stats.DecodeErrors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Decode Errors: %d\n", stats.DecodeErrors)
	}
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
