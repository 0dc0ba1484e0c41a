// Package message provides typed, addressed notifications and the
// distributor that routes them to subscribed receivers.
package message

import (
	"fmt"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Message is an immutable typed envelope. A message whose Destination is
// identifier.All is a broadcast; otherwise it is addressed to one receiver.
type Message struct {
	// Type selects which subscriptions match
	Type identifier.Identifier

	// Content is the payload, typically a property value
	Content interface{}

	// Destination is a receiver id or identifier.All
	Destination identifier.Identifier
}

// New creates a broadcast message.
func New(msgType identifier.Identifier, content interface{}) Message {
	return Message{
		Type:        msgType,
		Content:     content,
		Destination: identifier.All,
	}
}

// NewTo creates a message addressed to a single receiver.
func NewTo(destination, msgType identifier.Identifier, content interface{}) Message {
	return Message{
		Type:        msgType,
		Content:     content,
		Destination: destination,
	}
}

// IsBroadcast reports whether the message goes to every subscriber.
func (m Message) IsBroadcast() bool {
	return m.Destination == identifier.All
}

// String returns a short description for logs.
func (m Message) String() string {
	return fmt.Sprintf("%s -> %s", m.Type, m.Destination)
}

// ContentAs returns the content as T.
func ContentAs[T any](m Message) (T, bool) {
	v, ok := m.Content.(T)
	return v, ok
}

// Receiver handles messages delivered by a Distributor. Receivers are
// identified by ID; subscribing two receivers with the same ID is not supported.
type Receiver interface {
	ID() identifier.Identifier
	HandleMessage(msg Message)
}

type receiverFunc struct {
	id identifier.Identifier
	fn func(Message)
}

func (r *receiverFunc) ID() identifier.Identifier { return r.id }
func (r *receiverFunc) HandleMessage(msg Message) { r.fn(msg) }

// ReceiverFunc adapts a function to a Receiver, for listeners that are not
// processors (user interface layers, bridges, tests).
func ReceiverFunc(id identifier.Identifier, fn func(Message)) Receiver {
	return &receiverFunc{id: id, fn: fn}
}
