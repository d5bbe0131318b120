package obtopology

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/wyatuestc/moonlight/obproto"
)

// Resolver turns a user supplied segment id into a Location.
type Resolver interface {
	Resolve(segment int64) (obproto.Location, error)
}

// Topology is the application's view of the network: the segments statements
// can be deployed to and the instances requests can be sent to.
type Topology interface {
	Resolver
	Instance(id int64) (obproto.Location, error)
	Segments() []int64
}

// StaticTopology is a fixed topology known at startup.
type StaticTopology struct {
	segments  []int64
	instances []int64
}

// NewStaticTopology returns a topology of the given segments and instances.
func NewStaticTopology(segments, instances []int64) *StaticTopology {
	s := slices.Clone(segments)
	i := slices.Clone(instances)
	slices.Sort(s)
	slices.Sort(i)
	return &StaticTopology{
		segments:  slices.Compact(s),
		instances: slices.Compact(i),
	}
}

// Resolve implements Resolver.
func (t *StaticTopology) Resolve(segment int64) (obproto.Location, error) {
	if _, ok := slices.BinarySearch(t.segments, segment); !ok {
		return obproto.Location{}, fmt.Errorf("%w: segment %d", obproto.ErrLocationUnresolved, segment)
	}
	return obproto.SegmentLocation(segment), nil
}

// Instance resolves a box instance id.
func (t *StaticTopology) Instance(id int64) (obproto.Location, error) {
	if _, ok := slices.BinarySearch(t.instances, id); !ok {
		return obproto.Location{}, fmt.Errorf("%w: instance %d", obproto.ErrLocationUnresolved, id)
	}
	return obproto.InstanceLocation(id), nil
}

// Segments returns the known segments in ascending order.
func (t *StaticTopology) Segments() []int64 {
	return slices.Clone(t.segments)
}
