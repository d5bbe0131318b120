package obblock

import (
	"cmp"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// Priority orders classifier rules and blocks. Higher values win.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// HeaderField names a packet header field a rule can match on.
type HeaderField string

const (
	FieldEthType HeaderField = "ETH_TYPE"
	FieldIPProto HeaderField = "IP_PROTO"
	FieldIPv4Src HeaderField = "IPV4_SRC"
	FieldIPv4Dst HeaderField = "IPV4_DST"
	FieldTCPSrc  HeaderField = "TCP_SRC"
	FieldTCPDst  HeaderField = "TCP_DST"
	FieldUDPSrc  HeaderField = "UDP_SRC"
	FieldUDPDst  HeaderField = "UDP_DST"
)

// TransportPort is a TCP or UDP port number.
type TransportPort uint16

// NewTransportPort checks that p is a valid port number.
func NewTransportPort(p int) (TransportPort, error) {
	if p < 0 || p > math.MaxUint16 {
		return 0, fmt.Errorf("%w: transport port %d out of range [0, %d]", ErrInvalidBlock, p, math.MaxUint16)
	}
	return TransportPort(p), nil
}

// FieldMatch requires a header field to equal Value.
type FieldMatch struct {
	Field HeaderField `json:"field"`
	Value uint64      `json:"value"`
}

// HeaderMatch is a conjunction of exact field matches. The zero value matches
// every packet.
type HeaderMatch struct {
	Exact []FieldMatch `json:"exact,omitempty"`
}

// MatchAll returns a match accepting every packet.
func MatchAll() HeaderMatch {
	return HeaderMatch{}
}

// MatchExact returns a match on a single header field.
func MatchExact(field HeaderField, value uint64) HeaderMatch {
	return HeaderMatch{Exact: []FieldMatch{{Field: field, Value: value}}}
}

// MatchTCPDst matches packets with the given TCP destination port.
func MatchTCPDst(port TransportPort) HeaderMatch {
	return MatchExact(FieldTCPDst, uint64(port))
}

// IsCatchAll reports whether the match accepts every packet.
func (m HeaderMatch) IsCatchAll() bool {
	return len(m.Exact) == 0
}

// Rule is a single classifier entry. Rules are evaluated by descending
// Priority, ties broken by ascending Order.
type Rule struct {
	Match    HeaderMatch `json:"match"`
	Priority Priority    `json:"priority"`
	Order    int         `json:"order"`
}

// SortRules returns a copy of rules in evaluation order. The index of a rule
// in the result is the classifier output port it routes to.
func SortRules(rules []Rule) []Rule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Order, b.Order)
	})
	return sorted
}
