package obgraph

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wyatuestc/moonlight/obblock"
)

// MaxBlocksPerGraph bounds the size of a graph to prevent pathological inputs.
const MaxBlocksPerGraph = 10000

// Build validates blocks and connectors and assembles them into a graph
// rooted at root.
//
// Every violation found is reported; the returned error wraps ErrValidation
// and, per violation, one of the more specific sentinels below. No graph is
// returned on error so that a partially wired pipeline can never be deployed.
func Build(blocks []*obblock.Block, connectors []Connector, root *obblock.Block) (*Graph, error) {
	if len(blocks) > MaxBlocksPerGraph {
		return nil, fmt.Errorf("%w: block count %d exceeds maximum %d",
			ErrValidation, len(blocks), MaxBlocksPerGraph)
	}

	g := &Graph{
		blocks:     make(map[obblock.ID]*obblock.Block, len(blocks)),
		order:      make([]obblock.ID, 0, len(blocks)),
		connectors: make([]Connector, 0, len(connectors)),
		children:   make(map[obblock.ID][]obblock.ID, len(blocks)),
	}

	// given maps ids to the caller's blocks; the graph holds copies.
	given := make(map[obblock.ID]*obblock.Block, len(blocks))

	var err error
	for _, b := range blocks {
		err = multierr.Append(err, g.addBlock(b, given))
	}

	if root == nil {
		err = multierr.Append(err, fmt.Errorf("%w: %w: no root declared", ErrValidation, ErrRootNotFound))
	} else if !contains(given, root) {
		err = multierr.Append(err, fmt.Errorf("%w: %w: root %s is not in the block set",
			ErrValidation, ErrRootNotFound, root.Name))
	} else {
		g.root = root.ID
	}

	used := make(map[outputPort]Connector, len(connectors))
	for _, c := range connectors {
		err = multierr.Append(err, g.addConnector(c, given, used))
	}

	if err != nil {
		return nil, err
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func MustBuild(blocks []*obblock.Block, connectors []Connector, root *obblock.Block) *Graph {
	g, err := Build(blocks, connectors, root)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) addBlock(b *obblock.Block, given map[obblock.ID]*obblock.Block) error {
	if b == nil {
		return fmt.Errorf("%w: %w: nil block", ErrValidation, obblock.ErrInvalidBlock)
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if existing, ok := given[b.ID]; ok {
		return fmt.Errorf("%w: %w: %s collides with %s",
			ErrValidation, ErrDuplicateBlock, b.Name, existing.Name)
	}
	given[b.ID] = b
	g.blocks[b.ID] = b.Clone()
	g.order = append(g.order, b.ID)
	return nil
}

// contains requires the very block that was added, not just a matching id.
func contains(given map[obblock.ID]*obblock.Block, b *obblock.Block) bool {
	member, ok := given[b.ID]
	return ok && member == b
}

type outputPort struct {
	block obblock.ID
	port  int
}

func (g *Graph) addConnector(c Connector, given map[obblock.ID]*obblock.Block, used map[outputPort]Connector) error {
	var err error
	if c.Src == nil || !contains(given, c.Src) {
		err = multierr.Append(err, fmt.Errorf("%w: %w: connector %s source %s",
			ErrValidation, ErrBlockNotFound, c, blockName(c.Src)))
	} else if !c.Src.HasOutput(c.SrcPort) {
		err = multierr.Append(err, fmt.Errorf("%w: %w: connector %s: %s has %d output ports",
			ErrValidation, ErrPortOutOfRange, c, c.Src.Name, len(c.Src.Outputs)))
	}

	if c.Dst == nil || !contains(given, c.Dst) {
		err = multierr.Append(err, fmt.Errorf("%w: %w: connector %s destination %s",
			ErrValidation, ErrBlockNotFound, c, blockName(c.Dst)))
	} else if !c.Dst.HasInput(c.DstPort) {
		err = multierr.Append(err, fmt.Errorf("%w: %w: connector %s: %s has %d input ports",
			ErrValidation, ErrPortOutOfRange, c, c.Dst.Name, len(c.Dst.Inputs)))
	}

	if err != nil {
		return err
	}

	key := outputPort{block: c.Src.ID, port: c.SrcPort}
	if prev, ok := used[key]; ok {
		return fmt.Errorf("%w: %w: connector %s reuses the output of %s",
			ErrValidation, ErrPortInUse, c, prev)
	}
	used[key] = c

	c.Src, c.Dst = g.blocks[c.Src.ID], g.blocks[c.Dst.ID]
	g.connectors = append(g.connectors, c)
	g.children[c.Src.ID] = append(g.children[c.Src.ID], c.Dst.ID)
	return nil
}

// Sentinel errors for graph validation. Every validation failure matches
// ErrValidation in addition to its specific sentinel.
var (
	ErrValidation     = errors.New("graph validation failed")
	ErrRootNotFound   = errors.New("root not found")
	ErrBlockNotFound  = errors.New("block not found")
	ErrDuplicateBlock = errors.New("duplicate block id")
	ErrPortOutOfRange = errors.New("port out of range")
	ErrPortInUse      = errors.New("output port already connected")
)
