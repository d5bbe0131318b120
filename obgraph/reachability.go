package obgraph

import (
	"github.com/wyatuestc/moonlight/obblock"
)

// Unreachable returns the blocks that cannot be reached from the root by
// following connectors, in insertion order. Such blocks are legal but will
// never see a packet.
func (g *Graph) Unreachable() []*obblock.Block {
	reachable := make(map[obblock.ID]bool, len(g.blocks))
	g.markReachable(g.root, reachable)

	var orphans []*obblock.Block
	for _, id := range g.order {
		if !reachable[id] {
			orphans = append(orphans, g.blocks[id].Clone())
		}
	}
	return orphans
}

// markReachable recursively marks all blocks reachable from the given block.
func (g *Graph) markReachable(id obblock.ID, reachable map[obblock.ID]bool) {
	if reachable[id] {
		return
	}
	reachable[id] = true

	for _, child := range g.children[id] {
		g.markReachable(child, reachable)
	}
}

// Walk visits blocks breadth first from the root. Each block is visited once.
// Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(*obblock.Block) bool) {
	visited := make(map[obblock.ID]bool, len(g.blocks))
	queue := []obblock.ID{g.root}
	visited[g.root] = true

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if !fn(g.blocks[id].Clone()) {
			return
		}
		for _, child := range g.children[id] {
			if !visited[child] {
				visited[child] = true
				queue = append(queue, child)
			}
		}
	}
}
