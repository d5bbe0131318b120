package obproto

import (
	"encoding/json"
	"fmt"

	"github.com/wyatuestc/moonlight/obgraph"
)

// Statement binds a processing graph to the location it executes at. It is
// the unit of deployment.
type Statement struct {
	location Location
	graph    *obgraph.Graph
}

// NewStatement binds graph to location.
func NewStatement(location Location, graph *obgraph.Graph) (Statement, error) {
	if !location.IsResolved() {
		return Statement{}, fmt.Errorf("%w: location is unresolved", ErrInvalidStatement)
	}
	if graph == nil {
		return Statement{}, fmt.Errorf("%w: processing graph is missing", ErrInvalidStatement)
	}
	return Statement{location: location, graph: graph}, nil
}

// Location returns where the statement executes.
func (s Statement) Location() Location { return s.location }

// Graph returns the processing graph of the statement.
func (s Statement) Graph() *obgraph.Graph { return s.graph }

type statementJSON struct {
	Location Location       `json:"location"`
	Graph    *obgraph.Graph `json:"processing_graph"`
}

// MarshalJSON implements json.Marshaler.
func (s Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(statementJSON{Location: s.location, Graph: s.graph})
}
