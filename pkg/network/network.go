// Package network owns a set of processors and the connections between
// them, and computes the order in which they execute.
//
// Structural edits (adding or removing processors and connections) are
// validated before anything changes: a rejected edit leaves the network
// exactly as it was. Every successful edit invalidates the cached
// topological order and notifies observers.
//
// A Network is not safe for concurrent use. Edits coming from other
// goroutines (a GUI, the remote bridge) must be marshaled onto the render
// goroutine first.
package network

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
)

type entry struct {
	proc     processor.Processor
	instance uuid.UUID
}

// Network owns processors and connections.
type Network struct {
	entries     []*entry
	index       map[identifier.Identifier]*entry
	connections []port.Connection
	incoming    map[port.Ref]port.Connection

	dist   *message.Distributor
	logger *zap.Logger

	order      []processor.Processor
	orderErr   error
	orderValid bool
	version    uint64

	selected   identifier.Identifier
	observers  []observerEntry
	nextHandle ObserverHandle
}

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the network logger. Processors that accept a logger get a child of it.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates an empty network. Processors are subscribed on dist; a nil
// dist gets a private distributor.
func New(dist *message.Distributor, opts ...Option) *Network {
	n := &Network{
		index:    make(map[identifier.Identifier]*entry),
		incoming: make(map[port.Ref]port.Connection),
		dist:     dist,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.dist == nil {
		n.dist = message.NewDistributor(message.WithLogger(n.logger))
	}
	return n
}

// Distributor returns the distributor processors are subscribed on.
func (n *Network) Distributor() *message.Distributor {
	return n.dist
}

// Version increments on every structural change.
func (n *Network) Version() uint64 {
	return n.version
}

// AddOption configures AddProcessor.
type AddOption func(*entry)

// WithInstanceID keeps a previously assigned instance id, for documents.
func WithInstanceID(id uuid.UUID) AddOption {
	return func(e *entry) {
		if id != uuid.Nil {
			e.instance = id
		}
	}
}

type loggerSetter interface {
	SetLogger(*zap.Logger)
}

// AddProcessor adds p and subscribes it to its message types.
func (n *Network) AddProcessor(p processor.Processor, opts ...AddOption) error {
	if p == nil || p.ID().IsZero() {
		return fmt.Errorf("network: processor without id: %w", prismerrors.ErrUnknownProcessor)
	}
	if _, exists := n.index[p.ID()]; exists {
		return fmt.Errorf("network: add %s: %w", p.ID(), prismerrors.ErrDuplicateProcessor)
	}

	e := &entry{proc: p, instance: uuid.New()}
	for _, opt := range opts {
		opt(e)
	}
	if ls, ok := p.(loggerSetter); ok {
		ls.SetLogger(n.logger)
	}

	n.entries = append(n.entries, e)
	n.index[p.ID()] = e
	for _, msgType := range p.Subscriptions() {
		n.dist.Subscribe(p, msgType)
	}
	n.invalidate()

	n.logger.Debug("Added processor",
		zap.String("processor", p.ID().String()),
		zap.String("type", p.TypeName()),
		zap.String("instance_id", e.instance.String()))
	n.notify(func(o Observer) { o.ProcessorAdded(p) })
	return nil
}

// RemoveProcessor disconnects every port of the processor, drops all of its
// message subscriptions and then removes it.
func (n *Network) RemoveProcessor(id identifier.Identifier) error {
	e, ok := n.index[id]
	if !ok {
		return fmt.Errorf("network: remove %s: %w", id, prismerrors.ErrUnknownProcessor)
	}

	for _, c := range slices.Clone(n.connections) {
		if c.From.Processor == id || c.To.Processor == id {
			n.removeConnection(c)
		}
	}
	n.dist.UnsubscribeAll(id)

	idx := slices.Index(n.entries, e)
	n.entries = slices.Delete(n.entries, idx, idx+1)
	delete(n.index, id)
	if n.selected == id {
		n.selected = identifier.Identifier{}
	}
	n.invalidate()

	n.logger.Debug("Removed processor", zap.String("processor", id.String()))
	n.notify(func(o Observer) { o.ProcessorRemoved(id) })
	return nil
}

// Processor looks up a processor by id.
func (n *Network) Processor(id identifier.Identifier) (processor.Processor, bool) {
	e, ok := n.index[id]
	if !ok {
		return nil, false
	}
	return e.proc, true
}

// Processors returns all processors in insertion order.
func (n *Network) Processors() []processor.Processor {
	out := make([]processor.Processor, len(n.entries))
	for i, e := range n.entries {
		out[i] = e.proc
	}
	return out
}

// InstanceID returns the uuid assigned to a processor when it was added.
func (n *Network) InstanceID(id identifier.Identifier) (uuid.UUID, bool) {
	e, ok := n.index[id]
	if !ok {
		return uuid.Nil, false
	}
	return e.instance, true
}

// Len returns the number of processors.
func (n *Network) Len() int {
	return len(n.entries)
}

func (n *Network) resolve(ref port.Ref) (*port.Port, error) {
	e, ok := n.index[ref.Processor]
	if !ok {
		return nil, fmt.Errorf("network: %s: %w", ref, prismerrors.ErrUnknownProcessor)
	}
	p, ok := e.proc.Port(ref.Port)
	if !ok {
		return nil, fmt.Errorf("network: %s: %w", ref, prismerrors.ErrUnknownPort)
	}
	return p, nil
}

// Connect adds an edge from an output port to an input port.
//
// It fails with ErrPortTypeMismatch when the data types differ, with
// ErrPortAlreadyConnected when the input already has an incoming edge, and
// with ErrCyclicDependency when the input is required and the edge would
// close a cycle among required connections.
func (n *Network) Connect(from, to port.Ref) error {
	out, err := n.resolve(from)
	if err != nil {
		return err
	}
	in, err := n.resolve(to)
	if err != nil {
		return err
	}
	if err := port.Compatible(out, in); err != nil {
		return err
	}
	if existing, ok := n.incoming[to]; ok {
		return fmt.Errorf("network: connect %s: %s already fed by %s: %w", from, to, existing.From, prismerrors.ErrPortAlreadyConnected)
	}
	if in.Required && n.requiredPathExists(to.Processor, from.Processor) {
		return fmt.Errorf("network: connect %s -> %s: %w", from, to, prismerrors.ErrCyclicDependency)
	}

	c := port.Connection{From: from, To: to}
	n.connections = append(n.connections, c)
	n.incoming[to] = c
	n.invalidate()

	n.logger.Debug("Connected ports", zap.Stringer("connection", c))
	n.notify(func(o Observer) { o.ConnectionAdded(c) })
	return nil
}

// Disconnect removes the incoming edge of an input port. It reports whether
// an edge was removed; disconnecting an unconnected port is a no-op.
func (n *Network) Disconnect(to port.Ref) bool {
	c, ok := n.incoming[to]
	if !ok {
		return false
	}
	n.removeConnection(c)
	return true
}

func (n *Network) removeConnection(c port.Connection) {
	n.connections = slices.DeleteFunc(n.connections, func(x port.Connection) bool { return x == c })
	delete(n.incoming, c.To)
	n.invalidate()
	n.logger.Debug("Disconnected ports", zap.Stringer("connection", c))
	n.notify(func(o Observer) { o.ConnectionRemoved(c) })
}

// Connections returns all edges in the order they were made.
func (n *Network) Connections() []port.Connection {
	return slices.Clone(n.connections)
}

// Incoming returns the edge feeding an input port.
func (n *Network) Incoming(to port.Ref) (port.Connection, bool) {
	c, ok := n.incoming[to]
	return c, ok
}

// Outgoing returns every edge leaving an output port.
func (n *Network) Outgoing(from port.Ref) []port.Connection {
	var out []port.Connection
	for _, c := range n.connections {
		if c.From == from {
			out = append(out, c)
		}
	}
	return out
}

func (n *Network) isRequired(c port.Connection) bool {
	in, err := n.resolve(c.To)
	return err == nil && in.Required
}

// requiredPathExists reports whether target is reachable from start along
// required connections.
func (n *Network) requiredPathExists(start, target identifier.Identifier) bool {
	if start == target {
		return true
	}
	visited := map[identifier.Identifier]bool{start: true}
	stack := []identifier.Identifier{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.connections {
			if c.From.Processor != cur || !n.isRequired(c) {
				continue
			}
			next := c.To.Processor
			if next == target {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Select marks a processor as selected and notifies observers.
func (n *Network) Select(id identifier.Identifier) error {
	if _, ok := n.index[id]; !ok {
		return fmt.Errorf("network: select %s: %w", id, prismerrors.ErrUnknownProcessor)
	}
	n.selected = id
	n.notify(func(o Observer) { o.ProcessorSelected(id) })
	return nil
}

// Selected returns the selected processor id, or the zero identifier.
func (n *Network) Selected() identifier.Identifier {
	return n.selected
}

// SetProperty sets a property of a processor.
func (n *Network) SetProperty(proc, prop identifier.Identifier, value interface{}) error {
	e, ok := n.index[proc]
	if !ok {
		return fmt.Errorf("network: set %s.%s: %w", proc, prop, prismerrors.ErrUnknownProcessor)
	}
	p, ok := e.proc.Property(prop)
	if !ok {
		return fmt.Errorf("network: set %s.%s: %w", proc, prop, prismerrors.ErrUnknownProperty)
	}
	return p.Set(value)
}

// Post delivers msg through the network's distributor.
func (n *Network) Post(msg message.Message) {
	n.dist.Post(msg)
}

// Validate reports every required input without a connection and any
// dependency cycle, joined.
func (n *Network) Validate() error {
	var errs []error
	for _, e := range n.entries {
		for _, p := range e.proc.Ports() {
			if !p.IsInput() || !p.Required {
				continue
			}
			if _, ok := n.incoming[p.Ref()]; !ok {
				errs = append(errs, fmt.Errorf("network: %s: %w", p.Ref(), prismerrors.ErrMissingConnection))
			}
		}
	}
	if _, err := n.TopologicalOrder(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (n *Network) invalidate() {
	n.orderValid = false
	n.order = nil
	n.orderErr = nil
	n.version++
}
