package obproto

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrLocationUnresolved is returned when a segment is not part of the
	// known topology.
	ErrLocationUnresolved = errors.New("location unresolved")

	// ErrInstanceUnavailable is returned synchronously when a request targets
	// an instance that cannot currently be reached.
	ErrInstanceUnavailable = errors.New("instance not available")

	// ErrInvalidStatement is returned when a statement lacks a location or graph.
	ErrInvalidStatement = errors.New("invalid statement")
)

// LocationKind tells what a Location refers to.
type LocationKind int

const (
	locationUnresolved LocationKind = iota
	LocationSegment
	LocationInstance
)

func (k LocationKind) String() string {
	switch k {
	case LocationSegment:
		return "segment"
	case LocationInstance:
		return "instance"
	default:
		return "unresolved"
	}
}

// Location is an opaque resolved reference to a network segment or a single
// box instance. The zero value is unresolved.
type Location struct {
	kind LocationKind
	id   int64
}

// SegmentLocation refers to every instance on a network segment.
func SegmentLocation(segment int64) Location {
	return Location{kind: LocationSegment, id: segment}
}

// InstanceLocation refers to one box instance.
func InstanceLocation(instance int64) Location {
	return Location{kind: LocationInstance, id: instance}
}

// Kind returns what the location refers to.
func (l Location) Kind() LocationKind { return l.kind }

// ID returns the segment or instance number.
func (l Location) ID() int64 { return l.id }

// IsResolved reports whether the location refers to anything.
func (l Location) IsResolved() bool { return l.kind != locationUnresolved }

func (l Location) String() string {
	if !l.IsResolved() {
		return "unresolved"
	}
	return l.kind.String() + ":" + strconv.FormatInt(l.id, 10)
}

// MarshalText implements encoding.TextMarshaler as "<kind>:<id>". An
// unresolved location encodes as the empty string.
func (l Location) MarshalText() ([]byte, error) {
	if !l.IsResolved() {
		return []byte{}, nil
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Location) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*l = Location{}
		return nil
	}
	parsed, err := ParseLocation(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLocation parses the "<kind>:<id>" form produced by String.
func ParseLocation(s string) (Location, error) {
	for _, kind := range []LocationKind{LocationSegment, LocationInstance} {
		prefix := kind.String() + ":"
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			id, err := strconv.ParseInt(s[len(prefix):], 10, 64)
			if err != nil {
				return Location{}, fmt.Errorf("%w: %q: %w", ErrLocationUnresolved, s, err)
			}
			return Location{kind: kind, id: id}, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %q", ErrLocationUnresolved, s)
}
