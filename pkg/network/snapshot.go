package network

import (
	"github.com/google/uuid"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/port"
)

// Snapshot is the serializable structure of a network.
type Snapshot struct {
	Processors  []ProcessorState  `json:"processors"`
	Connections []port.Connection `json:"connections"`
}

// ProcessorState describes one processor in a Snapshot.
type ProcessorState struct {
	ID         identifier.Identifier `json:"id"`
	Type       string                `json:"type"`
	Instance   uuid.UUID             `json:"instance"`
	Properties []PropertyState       `json:"properties,omitempty"`
}

// PropertyState is a property value in a Snapshot.
type PropertyState struct {
	ID    identifier.Identifier `json:"id"`
	Value interface{}           `json:"value"`
}

// Snapshot captures processors in insertion order, their property values in
// declaration order, and connections in creation order.
func (n *Network) Snapshot() Snapshot {
	s := Snapshot{
		Processors:  make([]ProcessorState, 0, len(n.entries)),
		Connections: n.Connections(),
	}
	for _, e := range n.entries {
		state := ProcessorState{
			ID:       e.proc.ID(),
			Type:     e.proc.TypeName(),
			Instance: e.instance,
		}
		for _, p := range e.proc.Properties() {
			state.Properties = append(state.Properties, PropertyState{ID: p.ID(), Value: p.Get()})
		}
		s.Processors = append(s.Processors, state)
	}
	return s
}
