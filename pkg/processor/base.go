package processor

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/texture"
)

// Base provides common functionality for processors.
// Embed this in your processor implementations.
//
// Every property added through AddProperty also becomes a message
// subscription: a message whose type equals the property id sets the
// property to the message content.
type Base struct {
	id       identifier.Identifier
	typeName string
	info     Info
	logger   *zap.Logger

	properties []*property.Property
	propIndex  map[identifier.Identifier]*property.Property

	ports     []*port.Port
	portIndex map[identifier.Identifier]*port.Port

	subscriptions []identifier.Identifier
	handlers      map[identifier.Identifier]func(message.Message)
}

// NewBase creates a base for a processor with the given id and type.
func NewBase(id identifier.Identifier, typeName string) Base {
	return Base{
		id:        id,
		typeName:  typeName,
		logger:    zap.NewNop(),
		propIndex: make(map[identifier.Identifier]*property.Property),
		portIndex: make(map[identifier.Identifier]*port.Port),
		handlers:  make(map[identifier.Identifier]func(message.Message)),
	}
}

// ID returns the processor id.
func (b *Base) ID() identifier.Identifier {
	return b.id
}

// TypeName returns the processor type.
func (b *Base) TypeName() string {
	return b.typeName
}

// Info returns the processor metadata.
func (b *Base) Info() Info {
	return b.info
}

// SetInfo sets the processor metadata.
func (b *Base) SetInfo(info Info) {
	b.info = info
}

// Logger returns the processor logger.
func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// SetLogger replaces the processor logger. The processor id is attached to every entry.
func (b *Base) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b.logger = logger.With(zap.String("processor", b.id.String()))
}

// AddProperty takes ownership of p and subscribes to its id.
func (b *Base) AddProperty(p *property.Property) error {
	if _, exists := b.propIndex[p.ID()]; exists {
		return fmt.Errorf("processor %s: property %s: %w", b.id, p.ID(), prismerrors.ErrDuplicateProperty)
	}
	if err := p.SetOwner(b.id); err != nil {
		return err
	}
	b.properties = append(b.properties, p)
	b.propIndex[p.ID()] = p
	b.Subscribe(p.ID())
	return nil
}

// Properties returns the owned properties in declaration order.
func (b *Base) Properties() []*property.Property {
	return slices.Clone(b.properties)
}

// Property looks up an owned property.
func (b *Base) Property(id identifier.Identifier) (*property.Property, bool) {
	p, ok := b.propIndex[id]
	return p, ok
}

// PortOption configures a port at creation.
type PortOption func(*port.Port)

// Optional marks an input as not required for execution.
func Optional() PortOption {
	return func(p *port.Port) {
		p.Required = false
	}
}

// Persistent keeps an output's target across frames.
func Persistent() PortOption {
	return func(p *port.Port) {
		p.Persistent = true
	}
}

// WithSizeHint sets the allocation size of an output.
func WithSizeHint(size texture.Size) PortOption {
	return func(p *port.Port) {
		p.SizeHint = size
	}
}

// CreateInport declares a required input port. Declaring two ports with the
// same name is a programming error and panics.
func (b *Base) CreateInport(name string, typ port.DataType, opts ...PortOption) *port.Port {
	return b.addPort(name, port.In, typ, opts)
}

// CreateOutport declares an output port.
func (b *Base) CreateOutport(name string, typ port.DataType, opts ...PortOption) *port.Port {
	return b.addPort(name, port.Out, typ, opts)
}

func (b *Base) addPort(name string, dir port.Direction, typ port.DataType, opts []PortOption) *port.Port {
	id := identifier.Intern(name)
	if _, exists := b.portIndex[id]; exists {
		panic(fmt.Sprintf("processor %s: duplicate port %s", b.id, name))
	}
	p := &port.Port{
		Name:      id,
		Direction: dir,
		Type:      typ,
		Required:  true,
		Owner:     b.id,
	}
	for _, opt := range opts {
		opt(p)
	}
	b.ports = append(b.ports, p)
	b.portIndex[id] = p
	return p
}

// Ports returns the declared ports in declaration order.
func (b *Base) Ports() []*port.Port {
	return slices.Clone(b.ports)
}

// Port looks up a declared port.
func (b *Base) Port(name identifier.Identifier) (*port.Port, bool) {
	p, ok := b.portIndex[name]
	return p, ok
}

// Inports returns the input ports in declaration order.
func (b *Base) Inports() []*port.Port {
	return b.portsIn(port.In)
}

// Outports returns the output ports in declaration order.
func (b *Base) Outports() []*port.Port {
	return b.portsIn(port.Out)
}

func (b *Base) portsIn(dir port.Direction) []*port.Port {
	var out []*port.Port
	for _, p := range b.ports {
		if p.Direction == dir {
			out = append(out, p)
		}
	}
	return out
}

// Subscribe adds msgType to the subscriptions. Adding twice is a no-op.
// Subscriptions must be declared before the processor joins a network.
func (b *Base) Subscribe(msgType identifier.Identifier) {
	if !slices.Contains(b.subscriptions, msgType) {
		b.subscriptions = append(b.subscriptions, msgType)
	}
}

// On subscribes to msgType and routes it to fn instead of the default handling.
func (b *Base) On(msgType identifier.Identifier, fn func(message.Message)) {
	b.Subscribe(msgType)
	b.handlers[msgType] = fn
}

// Subscriptions returns the subscribed message types in declaration order.
func (b *Base) Subscriptions() []identifier.Identifier {
	return slices.Clone(b.subscriptions)
}

// HandleMessage dispatches msg to a handler registered with On, or sets the
// property whose id equals the message type. Other messages are ignored.
func (b *Base) HandleMessage(msg message.Message) {
	if fn, ok := b.handlers[msg.Type]; ok {
		fn(msg)
		return
	}
	p, ok := b.propIndex[msg.Type]
	if !ok {
		return
	}
	if err := p.Set(msg.Content); err != nil {
		b.logger.Warn("Ignoring property message",
			zap.String("property", p.ID().String()),
			zap.Error(err))
	}
}
