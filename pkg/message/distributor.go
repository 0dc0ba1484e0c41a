package message

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

// DefaultMaxDepth bounds how deeply handlers may nest Post calls.
const DefaultMaxDepth = 64

// Distributor routes messages to receivers subscribed by message type.
//
// Delivery is synchronous and depth-first: a receiver may call Post from
// HandleMessage, and the nested message is fully delivered before the outer
// dispatch moves on to its next receiver. Each Post works on a snapshot of
// the subscriber list taken when it starts, so receivers subscribed during a
// dispatch only see later messages. A receiver that is unsubscribed while a
// dispatch is running is skipped for the rest of that dispatch.
//
// A Distributor is not safe for concurrent use; it lives on the render goroutine.
type Distributor struct {
	subs        map[identifier.Identifier][]subscription
	seq         uint64
	middlewares []Middleware
	handler     Handler
	logger      *zap.Logger

	depth     int
	maxDepth  int
	delivered int64
	dropped   int64
}

// subscription is one Subscribe call. seq tells a receiver apart from a
// later one registered under the same id.
type subscription struct {
	r   Receiver
	seq uint64
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithLogger sets the logger used for dropped-message diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Distributor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxDepth sets the nesting bound for re-entrant posts.
func WithMaxDepth(n int) Option {
	return func(d *Distributor) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithMiddleware installs delivery middleware, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Distributor) {
		d.middlewares = append(d.middlewares, mw...)
	}
}

// NewDistributor creates an empty distributor.
func NewDistributor(opts ...Option) *Distributor {
	d := &Distributor{
		subs:     make(map[identifier.Identifier][]subscription),
		logger:   zap.NewNop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handler = Chain(d.middlewares...)(deliver)
	return d
}

// Use appends middleware to the delivery chain.
func (d *Distributor) Use(mw ...Middleware) {
	d.middlewares = append(d.middlewares, mw...)
	d.handler = Chain(d.middlewares...)(deliver)
}

// Subscribe registers r for msgType. Subscribing twice is a no-op.
func (d *Distributor) Subscribe(r Receiver, msgType identifier.Identifier) {
	if d.IsSubscribed(r.ID(), msgType) {
		return
	}
	d.seq++
	d.subs[msgType] = append(d.subs[msgType], subscription{r: r, seq: d.seq})
}

// Unsubscribe removes the receiver with id from msgType. Unknown pairs are ignored.
func (d *Distributor) Unsubscribe(id, msgType identifier.Identifier) {
	list := d.subs[msgType]
	idx := slices.IndexFunc(list, func(s subscription) bool { return s.r.ID() == id })
	if idx < 0 {
		return
	}
	// never mutate in place: a running dispatch may hold this backing array
	next := slices.Delete(slices.Clone(list), idx, idx+1)
	if len(next) == 0 {
		delete(d.subs, msgType)
		return
	}
	d.subs[msgType] = next
}

// UnsubscribeAll removes every subscription held by id.
func (d *Distributor) UnsubscribeAll(id identifier.Identifier) {
	for msgType := range d.subs {
		d.Unsubscribe(id, msgType)
	}
}

// IsSubscribed reports whether id is subscribed to msgType.
func (d *Distributor) IsSubscribed(id, msgType identifier.Identifier) bool {
	return slices.ContainsFunc(d.subs[msgType], func(s subscription) bool { return s.r.ID() == id })
}

// Subscribers returns the receiver ids subscribed to msgType in registration order.
func (d *Distributor) Subscribers(msgType identifier.Identifier) []identifier.Identifier {
	list := d.subs[msgType]
	ids := make([]identifier.Identifier, len(list))
	for i, s := range list {
		ids[i] = s.r.ID()
	}
	return ids
}

// Types returns every message type with at least one subscriber, sorted.
func (d *Distributor) Types() []identifier.Identifier {
	types := make([]identifier.Identifier, 0, len(d.subs))
	for t := range d.subs {
		types = append(types, t)
	}
	identifier.Sort(types)
	return types
}

// Post delivers msg. It never fails: a message nobody listens to is dropped.
func (d *Distributor) Post(msg Message) {
	if d.depth >= d.maxDepth {
		d.dropped++
		d.logger.Error("Dropping message: re-entrant post depth exceeded",
			zap.String("message_type", msg.Type.String()),
			zap.Int("max_depth", d.maxDepth))
		return
	}
	d.depth++
	defer func() { d.depth-- }()

	list := d.subs[msg.Type]
	if len(list) == 0 {
		return
	}

	if !msg.IsBroadcast() {
		for _, s := range list {
			if s.r.ID() == msg.Destination {
				d.delivered++
				d.handler(s.r, msg)
				return
			}
		}
		return
	}

	snapshot := slices.Clone(list)
	for _, s := range snapshot {
		if !d.active(msg.Type, s.seq) {
			continue
		}
		d.delivered++
		d.handler(s.r, msg)
	}
}

// active reports whether the subscription seq still holds for msgType.
func (d *Distributor) active(msgType identifier.Identifier, seq uint64) bool {
	return slices.ContainsFunc(d.subs[msgType], func(s subscription) bool { return s.seq == seq })
}

// Delivered returns the number of deliveries made so far.
func (d *Distributor) Delivered() int64 {
	return d.delivered
}

// Dropped returns the number of messages dropped by the depth bound.
func (d *Distributor) Dropped() int64 {
	return d.dropped
}
