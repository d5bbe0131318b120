// Package obblock describes the processing blocks that can be placed in a
// box processing graph.
//
// A block is purely descriptive: it carries a name, a stable id derived from
// that name, its numbered input and output ports, and the kind specific
// parameters the engine on the box needs to instantiate it. Packet handling
// itself happens on the box.
//
//	src := obblock.FromDevice("FromDevice_SampleApp", "eth0", true, true)
//	drop := obblock.Discard("Discard_SampleApp")
//
// Header classifiers expose one output port per rule. Rules are evaluated by
// descending priority and then ascending order, and the n-th rule in that
// order routes to output port n.
package obblock
