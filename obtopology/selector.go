package obtopology

import (
	"fmt"

	"github.com/wyatuestc/moonlight/obblock"
	"github.com/wyatuestc/moonlight/obconfig"
	"github.com/wyatuestc/moonlight/obgraph"
)

// Classifier output ports.
const (
	PortMatched = 0
	PortDefault = 1
)

// Alert block parameters.
const (
	AlertSeverity   = 1
	AlertPacketSize = 1000
)

// Selection is the set of blocks and connectors chosen for a configuration.
type Selection struct {
	Source     *obblock.Block
	Sink       *obblock.Block
	Classifier *obblock.Block
	Alert      *obblock.Block // nil when alerting is off
	Discard    *obblock.Block

	Blocks     []*obblock.Block
	Connectors []obgraph.Connector
}

// Root returns the entry block, which is always the source.
func (s Selection) Root() *obblock.Block {
	return s.Source
}

// Graph validates and assembles the selection.
func (s Selection) Graph() (*obgraph.Graph, error) {
	return obgraph.Build(s.Blocks, s.Connectors, s.Root())
}

// Select chooses the firewall pipeline for the given settings:
//
//	source -> classifier.1 -> sink
//	          classifier.0 -> [alert ->] discard
//
// The classifier blocks TCP traffic to the configured port: an exact match on
// the destination port is evaluated first and routed to output 0, everything
// else falls through to the catch-all on output 1.
func Select(app string, s obconfig.Settings) Selection {
	name := func(kind string) string {
		return fmt.Sprintf("%s_%s", kind, app)
	}

	var from, to *obblock.Block
	if s.InUseIfc {
		from = obblock.FromDevice(name("FromDevice"), s.InIfc, true, true)
	} else {
		from = obblock.FromDump(name("FromDump"), s.InDump, false, true)
	}
	if s.OutUseIfc {
		to = obblock.ToDevice(name("ToDevice"), s.OutIfc)
	} else {
		to = obblock.ToDump(name("ToDump"), s.OutDump)
	}

	classify := obblock.HeaderClassifier(name("HeaderClassifier"), Rules(s.PortBlock), obblock.PriorityHigh)
	discard := obblock.Discard(name("Discard"))

	sel := Selection{
		Source:     from,
		Sink:       to,
		Classifier: classify,
		Discard:    discard,
		Blocks:     []*obblock.Block{from, to, classify, discard},
		Connectors: []obgraph.Connector{
			obgraph.Connect(from, 0, classify),
			obgraph.Connect(classify, PortDefault, to),
		},
	}

	if s.Alert {
		alert := obblock.Alert(name("Alert"), "Alert from "+app, AlertSeverity, true, AlertPacketSize)
		sel.Alert = alert
		sel.Blocks = append(sel.Blocks, alert)
		sel.Connectors = append(sel.Connectors,
			obgraph.Connect(classify, PortMatched, alert),
			obgraph.Connect(alert, 0, discard),
		)
	} else {
		sel.Connectors = append(sel.Connectors, obgraph.Connect(classify, PortMatched, discard))
	}

	return sel
}

// Rules returns the classifier rules blocking TCP destination port.
func Rules(port obblock.TransportPort) []obblock.Rule {
	return []obblock.Rule{
		{Match: obblock.MatchTCPDst(port), Priority: obblock.PriorityHigh, Order: PortMatched},
		{Match: obblock.MatchAll(), Priority: obblock.PriorityMedium, Order: PortDefault},
	}
}
