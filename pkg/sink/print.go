package sink

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nodevents/nodevents-go/pkg/decode"
	"github.com/nodevents/nodevents-go/pkg/engine"
)

// Printer writes events in the node console format.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// SetOutput redirects the printer, e.g. to a console that owns the terminal.
func (p *Printer) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.w = w
}

// OnEvent implements engine.Sink.
func (p *Printer) OnEvent(e engine.Event) {
	var b strings.Builder
	Format(&b, e)
	if b.Len() == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	io.WriteString(p.w, b.String())
}

// Format writes the console rendition of e to b.
func Format(b *strings.Builder, e engine.Event) {
	switch e.Kind {
	case engine.KindTransportError:
		fmt.Fprintf(b, "Node event network error : %v\n", e.Err)

	case engine.KindState:
		switch e.NewState {
		case engine.StateConnected:
			b.WriteString("Node event network connected\n")
		case engine.StateDisconnected:
			b.WriteString("Node event network disconnected\n")
		case engine.StateActive:
			b.WriteString("Subscribed topics\n")
		case engine.StateIdle:
			b.WriteString("Node events stopped\n")
		case engine.StateFailed:
			b.WriteString("Node event session failed\n")
		}

	case engine.KindMessage:
		fmt.Fprintf(b, "Message Received\nTopic : %s\n", e.Topic)
		if e.Err != nil {
			fmt.Fprintf(b, "Decode error : %v\n", e.Err)
			return
		}
		formatPayload(b, e.Payload)
	}
}

func formatPayload(b *strings.Builder, p decode.Payload) {
	switch v := p.(type) {
	case *decode.MilestoneSummary:
		fmt.Fprintf(b, "Index :%d\nTimestamp : %d\n", v.Index, v.Timestamp)

	case *decode.EntityMetadata:
		fmt.Fprintf(b, "Msg Id :%s\n", v.ID)
		for i, parent := range v.Parents {
			fmt.Fprintf(b, "Parent Id %d : %s\n", i+1, parent)
		}
		if v.InclusionState != decode.InclusionUnset {
			fmt.Fprintf(b, "Inclusion State : %s\n", v.InclusionState)
		}
		writeBool(b, "Is Solid", v.IsSolid)
		writeBool(b, "Should Promote", v.ShouldPromote)
		writeBool(b, "Should Reattach", v.ShouldReattach)
		if v.ReferencedByMilestoneIndex != nil {
			fmt.Fprintf(b, "Referenced Milestone : %d\n", *v.ReferencedByMilestoneIndex)
		}
		if v.MilestoneIndex != nil {
			fmt.Fprintf(b, "Milestone Index : %d\n", *v.MilestoneIndex)
		}
		if v.ConflictReason != nil {
			fmt.Fprintf(b, "Conflict Reason : %d\n", *v.ConflictReason)
		}

	case *decode.OutputUpdate:
		fmt.Fprintf(b, "Message ID: %s\n", v.BlockID)
		fmt.Fprintf(b, "Transaction ID: %s\n", v.TransactionID)
		fmt.Fprintf(b, "Output Index: %d\n", v.OutputIndex)
		fmt.Fprintf(b, "Ledger Index: %d\n", v.LedgerIndex)
		fmt.Fprintf(b, "isSpent: %s\n", titleBool(v.IsSpent))
		if v.Address != nil {
			fmt.Fprintf(b, "Addr: %s\n", v.Address.Hash)
		}
		fmt.Fprintf(b, "Amount: %d\n", v.Amount)

	case decode.RawBytes:
		fmt.Fprintf(b, "Received Serialized Data : %s\n", v.Hex())
	}
}

func writeBool(b *strings.Builder, label string, v *bool) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%s : %t\n", label, *v)
}

func titleBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
