// Package processor defines the polymorphic rendering stage of a network.
//
// A processor owns an ordered set of properties and ports, subscribes to
// message types, and implements one Process step per frame. Concrete
// processors embed Base, which provides everything except Process.
//
// Process contract:
//   - read inputs only through the supplied port.Mapping
//   - write every declared output that the mapping binds
//   - leave no render target active on return
//
// The executor calls Process on its render goroutine, one processor at a
// time, so processors never need their own locking.
//
// # Creating a processor
//
//	type Invert struct {
//		processor.Base
//		in, out *port.Port
//	}
//
//	func NewInvert(id identifier.Identifier) (processor.Processor, error) {
//		p := &Invert{Base: processor.NewBase(id, "Invert")}
//		p.in = p.CreateInport("image.inport", port.ImageType)
//		p.out = p.CreateOutport("image.outport", port.ImageType)
//		return p, nil
//	}
package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Processor is the interface every network stage implements.
type Processor interface {
	message.Receiver

	// TypeName returns the registered type, used by the factory and documents.
	TypeName() string

	// Info returns descriptive metadata.
	Info() Info

	// Properties returns the owned properties in declaration order.
	Properties() []*property.Property

	// Property looks up an owned property.
	Property(id identifier.Identifier) (*property.Property, bool)

	// Ports returns the declared ports in declaration order.
	Ports() []*port.Port

	// Port looks up a declared port.
	Port(name identifier.Identifier) (*port.Port, bool)

	// Subscriptions returns the message types the processor listens to.
	Subscriptions() []identifier.Identifier

	// Process renders one frame.
	Process(ctx context.Context, rc *RenderContext, m *port.Mapping) error
}

// Info describes a processor type.
type Info struct {
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// SizeHinter is implemented by processors whose outputs are not frame-sized.
type SizeHinter interface {
	OutputSize(portName identifier.Identifier, frame texture.Size) texture.Size
}

// Creator builds a processor instance with the given id.
type Creator func(id identifier.Identifier) (Processor, error)

// RenderContext carries the GPU resource owner and frame state into Process.
// It replaces any ambient graphics state: everything a processor may bind
// or allocate is reachable from here.
type RenderContext struct {
	Textures  *texture.Container
	Units     *texture.UnitMapper
	Messages  *message.Distributor
	FrameSize texture.Size
	Frame     uint64
	Logger    *zap.Logger
}

// Surface resolves a mapped port to its pixel memory.
func (rc *RenderContext) Surface(m *port.Mapping, name identifier.Identifier) (*texture.Surface, texture.Handle, error) {
	h, err := m.Target(name)
	if err != nil {
		return nil, texture.InvalidHandle, err
	}
	s, err := rc.Textures.Surface(h)
	if err != nil {
		return nil, h, fmt.Errorf("port %s: %w", name, err)
	}
	return s, h, nil
}

// Post sends msg through the frame's distributor, if any.
func (rc *RenderContext) Post(msg message.Message) {
	if rc.Messages != nil {
		rc.Messages.Post(msg)
	}
}

// Log returns the frame logger, never nil.
func (rc *RenderContext) Log() *zap.Logger {
	if rc.Logger == nil {
		return zap.NewNop()
	}
	return rc.Logger
}
