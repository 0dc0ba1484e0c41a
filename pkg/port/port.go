// Package port defines the typed connection points of processors, the
// connections between them, and the per-invocation mapping from port names
// to render-target handles.
package port

import (
	"fmt"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Direction represents the direction of data flow for a port.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// DataType is the kind of data a port carries. Only ports of equal type connect.
type DataType string

const (
	ImageType  DataType = "image"
	VolumeType DataType = "volume"
)

// Port is a named, typed connection point on a processor. A port has no
// identity beyond its owner and name.
type Port struct {
	Name      identifier.Identifier
	Direction Direction
	Type      DataType

	// Required inputs must be connected for the owner to run.
	// Outputs are always considered required.
	Required bool

	// Persistent outputs keep their target across frames.
	Persistent bool

	// SizeHint is the allocation size for outputs; the zero Size means the frame size.
	SizeHint texture.Size

	Owner identifier.Identifier
}

// IsInput reports whether p is an input port.
func (p *Port) IsInput() bool {
	return p.Direction == In
}

// Ref returns the endpoint naming p.
func (p *Port) Ref() Ref {
	return Ref{Processor: p.Owner, Port: p.Name}
}

func (p *Port) String() string {
	return p.Ref().String()
}

// Ref names a port by owning processor and port name.
type Ref struct {
	Processor identifier.Identifier `json:"processor"`
	Port      identifier.Identifier `json:"port"`
}

// NewRef builds a Ref from text.
func NewRef(processor, port string) Ref {
	return Ref{Processor: identifier.Intern(processor), Port: identifier.Intern(port)}
}

func (r Ref) String() string {
	return r.Processor.String() + ":" + r.Port.String()
}

// Connection is a directed edge from an output port to an input port.
type Connection struct {
	From Ref `json:"from"`
	To   Ref `json:"to"`
}

func (c Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// Compatible checks that out may feed in.
func Compatible(out, in *Port) error {
	if out.Direction != Out || in.Direction != In {
		return fmt.Errorf("connect %s -> %s: %w", out, in, prismerrors.ErrPortDirection)
	}
	if out.Owner == in.Owner {
		return fmt.Errorf("connect %s -> %s: %w", out, in, prismerrors.ErrSelfConnection)
	}
	if out.Type != in.Type {
		return fmt.Errorf("connect %s (%s) -> %s (%s): %w", out, out.Type, in, in.Type, prismerrors.ErrPortTypeMismatch)
	}
	return nil
}
