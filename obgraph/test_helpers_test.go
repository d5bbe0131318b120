package obgraph

import (
	"github.com/wyatuestc/moonlight/obblock"
)

// testPipeline is a minimal source -> classifier -> {sink, discard} graph.
type testPipeline struct {
	src  *obblock.Block
	cls  *obblock.Block
	sink *obblock.Block
	drop *obblock.Block
}

func newTestPipeline() *testPipeline {
	return &testPipeline{
		src: obblock.FromDevice("src", "eth0", true, true),
		cls: obblock.HeaderClassifier("cls", []obblock.Rule{
			{Match: obblock.MatchTCPDst(80), Priority: obblock.PriorityHigh, Order: 0},
			{Match: obblock.MatchAll(), Priority: obblock.PriorityMedium, Order: 1},
		}, obblock.PriorityHigh),
		sink: obblock.ToDevice("sink", "eth1"),
		drop: obblock.Discard("drop"),
	}
}

func (p *testPipeline) blocks() []*obblock.Block {
	return []*obblock.Block{p.src, p.cls, p.sink, p.drop}
}

func (p *testPipeline) connectors() []Connector {
	return []Connector{
		Connect(p.src, 0, p.cls),
		Connect(p.cls, 1, p.sink),
		Connect(p.cls, 0, p.drop),
	}
}
