// Package obgraph assembles processing blocks and connectors into a validated
// processing graph.
//
// # Overview
//
// A processing graph is a set of blocks (unique by id), a set of connectors
// between numbered ports of those blocks, and a single root block where
// packets enter the pipeline. Build performs all validation in one pass and
// returns an immutable *Graph:
//
//	from := obblock.FromDevice("FromDevice_SampleApp", "eth0", true, true)
//	drop := obblock.Discard("Discard_SampleApp")
//
//	g, err := obgraph.Build(
//	    []*obblock.Block{from, drop},
//	    []obgraph.Connector{obgraph.Connect(from, 0, drop)},
//	    from,
//	)
//
// # Validation
//
// Build rejects:
//
//   - a root that is missing or not a member of the block set (ErrRootNotFound)
//   - two blocks with the same id (ErrDuplicateBlock)
//   - connectors whose endpoints are not members (ErrBlockNotFound)
//   - port indices outside a block's declared ports (ErrPortOutOfRange)
//   - an output port wired more than once (ErrPortInUse)
//
// Every violation is reported, combined with go.uber.org/multierr, and each
// one matches ErrValidation as well as its specific sentinel via errors.Is.
//
// Reachability from the root is not enforced; the engine on the box owns that
// decision. Graph.Unreachable lists blocks no packet can reach.
//
// # Thread Safety
//
// A *Graph is immutable after Build and safe to share between goroutines.
// Build keeps deep copies of the blocks it is given, and accessors return
// copies of blocks and internal slices, so later changes to a block never
// reach the graph.
package obgraph
