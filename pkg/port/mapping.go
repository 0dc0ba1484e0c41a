package port

import (
	"fmt"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Mapping resolves a processor's port names to render-target handles for a
// single Process call. The executor builds it immediately before the call
// and discards it afterwards; processors must not retain it.
type Mapping struct {
	targets map[identifier.Identifier]texture.Handle
	order   []identifier.Identifier
}

// NewMapping creates an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{targets: make(map[identifier.Identifier]texture.Handle)}
}

// Bind resolves port to h, replacing any earlier binding.
func (m *Mapping) Bind(port identifier.Identifier, h texture.Handle) {
	if _, ok := m.targets[port]; !ok {
		m.order = append(m.order, port)
	}
	m.targets[port] = h
}

// Target returns the handle bound to port.
func (m *Mapping) Target(port identifier.Identifier) (texture.Handle, error) {
	h, ok := m.targets[port]
	if !ok {
		return texture.InvalidHandle, fmt.Errorf("port %s not mapped: %w", port, prismerrors.ErrUnknownPort)
	}
	return h, nil
}

// Has reports whether port is bound. Unconnected optional inputs are not.
func (m *Mapping) Has(port identifier.Identifier) bool {
	_, ok := m.targets[port]
	return ok
}

// Ports returns bound port names in binding order.
func (m *Mapping) Ports() []identifier.Identifier {
	out := make([]identifier.Identifier, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of bound ports.
func (m *Mapping) Len() int {
	return len(m.order)
}
