package remote

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wehubfusion/Prism/pkg/port"
)

// Envelope wraps everything the bridge publishes.
type Envelope struct {
	ID uuid.UUID `json:"id"`

	// CorrelationID is the id of the command a result answers
	CorrelationID string `json:"correlation_id,omitempty"`

	// Type is the message type or event kind
	Type string `json:"type"`

	// Destination is set for directed messages
	Destination string `json:"destination,omitempty"`

	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Command operations.
const (
	OpSetProperty     = "setProperty"
	OpPost            = "post"
	OpConnect         = "connect"
	OpDisconnect      = "disconnect"
	OpRemoveProcessor = "removeProcessor"
	OpSelect          = "select"
)

// Command is a request received on the command subject.
type Command struct {
	ID uuid.UUID `json:"id"`
	Op string    `json:"op"`

	Processor string `json:"processor,omitempty"`
	Property  string `json:"property,omitempty"`

	// MessageType and Destination are used by post; an empty destination broadcasts
	MessageType string `json:"message_type,omitempty"`
	Destination string `json:"destination,omitempty"`

	// Value is the property value or message content
	Value json.RawMessage `json:"value,omitempty"`

	From *port.Ref `json:"from,omitempty"`
	To   *port.Ref `json:"to,omitempty"`
}

// CommandResult answers a command on the commandResult event subject.
type CommandResult struct {
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Event kinds.
const (
	EventProcessorAdded    = "processorAdded"
	EventProcessorRemoved  = "processorRemoved"
	EventProcessorSelected = "processorSelected"
	EventConnectionAdded   = "connectionAdded"
	EventConnectionRemoved = "connectionRemoved"
	EventCommandResult     = "commandResult"
)

// ProcessorEvent is the payload of processor events.
type ProcessorEvent struct {
	Processor string `json:"processor"`
	Type      string `json:"type,omitempty"`
}
