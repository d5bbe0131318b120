package obgraph

import (
	"encoding/json"
	"fmt"

	"github.com/wyatuestc/moonlight/obblock"
)

// Connector is a directed edge from an output port of Src to an input port of
// Dst. It implies nothing beyond connectivity.
type Connector struct {
	Src     *obblock.Block
	SrcPort int
	Dst     *obblock.Block
	DstPort int
}

// Connect wires output port srcPort of src to the first input of dst.
func Connect(src *obblock.Block, srcPort int, dst *obblock.Block) Connector {
	return Connector{Src: src, SrcPort: srcPort, Dst: dst}
}

func (c Connector) String() string {
	return fmt.Sprintf("%s.%d -> %s.%d", blockName(c.Src), c.SrcPort, blockName(c.Dst), c.DstPort)
}

func blockName(b *obblock.Block) string {
	if b == nil {
		return "<nil>"
	}
	return b.Name
}

type connectorJSON struct {
	Src     obblock.ID `json:"src"`
	SrcPort int        `json:"src_port"`
	Dst     obblock.ID `json:"dst"`
	DstPort int        `json:"dst_port"`
}

// MarshalJSON encodes the connector with block ids as endpoints.
func (c Connector) MarshalJSON() ([]byte, error) {
	if c.Src == nil || c.Dst == nil {
		return nil, fmt.Errorf("%w: connector %s has a nil endpoint", ErrValidation, c)
	}
	return json.Marshal(connectorJSON{
		Src:     c.Src.ID,
		SrcPort: c.SrcPort,
		Dst:     c.Dst.ID,
		DstPort: c.DstPort,
	})
}

// Graph is a validated processing graph. It is immutable and safe for
// concurrent use.
type Graph struct {
	blocks     map[obblock.ID]*obblock.Block
	order      []obblock.ID
	connectors []Connector
	children   map[obblock.ID][]obblock.ID
	root       obblock.ID
}

// Root returns a copy of the entry block of the graph.
func (g *Graph) Root() *obblock.Block {
	return g.blocks[g.root].Clone()
}

// Block returns a copy of the block with the given id.
func (g *Graph) Block(id obblock.ID) (*obblock.Block, bool) {
	b, ok := g.blocks[id]
	return b.Clone(), ok
}

// Blocks returns copies of all blocks in the order they were supplied.
func (g *Graph) Blocks() []*obblock.Block {
	out := make([]*obblock.Block, len(g.order))
	for i, id := range g.order {
		out[i] = g.blocks[id].Clone()
	}
	return out
}

// Connectors returns all connectors in the order they were supplied. Their
// endpoints are copies of the graph's blocks.
func (g *Graph) Connectors() []Connector {
	out := make([]Connector, len(g.connectors))
	for i, c := range g.connectors {
		c.Src, c.Dst = c.Src.Clone(), c.Dst.Clone()
		out[i] = c
	}
	return out
}

// Children returns the ids of blocks fed by id, in connector order.
func (g *Graph) Children(id obblock.ID) []obblock.ID {
	children := g.children[id]
	out := make([]obblock.ID, len(children))
	copy(out, children)
	return out
}

// Len returns the number of blocks.
func (g *Graph) Len() int {
	return len(g.order)
}

type graphJSON struct {
	Root       obblock.ID       `json:"root"`
	Blocks     []*obblock.Block `json:"blocks"`
	Connectors []Connector      `json:"connectors"`
}

// MarshalJSON encodes the graph as the engine on the box expects it.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{
		Root:       g.root,
		Blocks:     g.Blocks(),
		Connectors: g.connectors,
	})
}
