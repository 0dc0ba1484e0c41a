// Package remote connects a processor network to a remote user interface
// over NATS.
//
// Outgoing traffic (forwarded messages, network events, command results) is
// published as JSON envelopes. Incoming commands arrive on the NATS
// goroutine and are only queued there; Drain applies them on the render
// goroutine, which owns the network.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/executor"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
)

var (
	// ErrUnknownCommand is returned for a command with an unsupported op.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrQueueFull is reported when a command arrives while the queue is full.
	ErrQueueFull = errors.New("command queue full")

	// ErrMalformedCommand is reported for a command that cannot be parsed or misses a field.
	ErrMalformedCommand = errors.New("malformed command")
)

// BridgeID is the receiver id the bridge subscribes with.
var BridgeID = identifier.Intern("remote.bridge")

// Stats counts bridge traffic.
type Stats struct {
	Published      int64
	PublishErrors  int64
	Received       int64
	Applied        int64
	Failed         int64
	QueueOverflows int64
	Dropped        int64
	Breaker        BreakerState
}

// Bridge forwards network traffic to NATS and applies remote commands.
type Bridge struct {
	conn   Conn
	net    *network.Network
	cfg    Config
	logger *zap.Logger

	queue   chan Command
	breaker *breaker
	sleep   func(time.Duration)

	mu       sync.Mutex
	sub      Subscription
	observer network.ObserverHandle
	started  bool

	published      atomic.Int64
	publishErrors  atomic.Int64
	received       atomic.Int64
	applied        atomic.Int64
	failed         atomic.Int64
	queueOverflows atomic.Int64
	dropped        atomic.Int64
}

// New creates a bridge for net. Call Start to begin forwarding.
func New(conn Conn, net *network.Network, cfg Config) (*Bridge, error) {
	if conn == nil {
		return nil, fmt.Errorf("remote: connection cannot be nil")
	}
	if net == nil {
		return nil, fmt.Errorf("remote: network cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bridge{
		conn:    conn,
		net:     net,
		cfg:     cfg,
		logger:  cfg.Logger,
		queue:   make(chan Command, cfg.QueueSize),
		breaker: newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		sleep:   time.Sleep,
	}, nil
}

// ID implements message.Receiver.
func (b *Bridge) ID() identifier.Identifier {
	return BridgeID
}

// Start subscribes to the command subject, the forwarded message types and
// the network events. It must be called on the render goroutine.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	sub, err := b.conn.Subscribe(b.cfg.CommandSubject(), b.receive)
	if err != nil {
		return fmt.Errorf("remote: subscribe %s: %w", b.cfg.CommandSubject(), err)
	}
	b.sub = sub

	dist := b.net.Distributor()
	dist.Subscribe(b, executor.FrameRendered)
	for _, t := range b.cfg.MessageTypes {
		dist.Subscribe(b, t)
	}
	b.observer = b.net.AddObserver(network.ObserverFuncs{
		OnProcessorAdded: func(p processor.Processor) {
			b.publishEvent(EventProcessorAdded, "", ProcessorEvent{Processor: p.ID().String(), Type: p.TypeName()})
		},
		OnProcessorRemoved: func(id identifier.Identifier) {
			b.publishEvent(EventProcessorRemoved, "", ProcessorEvent{Processor: id.String()})
		},
		OnProcessorSelected: func(id identifier.Identifier) {
			b.publishEvent(EventProcessorSelected, "", ProcessorEvent{Processor: id.String()})
		},
		OnConnectionAdded: func(c port.Connection) {
			b.publishEvent(EventConnectionAdded, "", c)
		},
		OnConnectionRemoved: func(c port.Connection) {
			b.publishEvent(EventConnectionRemoved, "", c)
		},
	})
	b.started = true

	b.logger.Info("Remote bridge started",
		zap.String("command_subject", b.cfg.CommandSubject()),
		zap.Int("forwarded_types", len(b.cfg.MessageTypes)+1))
	return nil
}

// Stop unsubscribes everything. Queued commands are discarded.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.started = false

	b.net.Distributor().UnsubscribeAll(BridgeID)
	b.net.RemoveObserver(b.observer)
	var err error
	if b.sub != nil {
		err = b.sub.Unsubscribe()
		b.sub = nil
	}
	for len(b.queue) > 0 {
		<-b.queue
	}
	b.logger.Info("Remote bridge stopped")
	return err
}

// HandleMessage forwards a subscribed message to <prefix>.messages.<type>.
func (b *Bridge) HandleMessage(msg message.Message) {
	payload, err := json.Marshal(msg.Content)
	if err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("Dropping message with unserializable content",
			zap.String("message_type", msg.Type.String()),
			zap.Error(err))
		return
	}
	env := Envelope{
		ID:        uuid.New(),
		Type:      msg.Type.String(),
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if !msg.IsBroadcast() {
		env.Destination = msg.Destination.String()
	}
	b.publish(b.cfg.MessageSubject(msg.Type), env)
}

// receive runs on the NATS goroutine. It only parses and enqueues.
func (b *Bridge) receive(subject string, data []byte) {
	b.received.Add(1)

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		b.failed.Add(1)
		b.logger.Warn("Discarding malformed command", zap.String("subject", subject), zap.Error(err))
		b.reply(cmd, fmt.Errorf("%w: %w", ErrMalformedCommand, err))
		return
	}
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}

	select {
	case b.queue <- cmd:
	default:
		b.queueOverflows.Add(1)
		b.failed.Add(1)
		b.logger.Warn("Command queue full, rejecting command",
			zap.String("op", cmd.Op),
			zap.String("command_id", cmd.ID.String()))
		b.reply(cmd, ErrQueueFull)
	}
}

// Drain applies every queued command. It must run on the render goroutine;
// register it with executor.BeforeFrame.
func (b *Bridge) Drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case cmd := <-b.queue:
			err := b.Apply(cmd)
			if err != nil {
				b.failed.Add(1)
				b.logger.Warn("Remote command failed",
					zap.String("op", cmd.Op),
					zap.String("command_id", cmd.ID.String()),
					zap.String("error_code", prismerrors.Categorize(err)),
					zap.Error(err))
			} else {
				b.applied.Add(1)
			}
			b.reply(cmd, err)
		default:
			return
		}
	}
}

// Pending returns the number of queued commands.
func (b *Bridge) Pending() int {
	return len(b.queue)
}

// Apply executes one command against the network.
func (b *Bridge) Apply(cmd Command) error {
	switch cmd.Op {
	case OpSetProperty:
		if cmd.Processor == "" || cmd.Property == "" || len(cmd.Value) == 0 {
			return fmt.Errorf("%w: setProperty needs processor, property and value", ErrMalformedCommand)
		}
		p, ok := b.net.Processor(identifier.Intern(cmd.Processor))
		if !ok {
			return fmt.Errorf("remote: %s: %w", cmd.Processor, prismerrors.ErrUnknownProcessor)
		}
		prop, ok := p.Property(identifier.Intern(cmd.Property))
		if !ok {
			return fmt.Errorf("remote: %s.%s: %w", cmd.Processor, cmd.Property, prismerrors.ErrUnknownProperty)
		}
		return prop.SetJSON(cmd.Value)

	case OpPost:
		if cmd.MessageType == "" {
			return fmt.Errorf("%w: post needs message_type", ErrMalformedCommand)
		}
		msgType := identifier.Intern(cmd.MessageType)
		dest := identifier.Intern(cmd.Destination)
		content, err := b.decodeContent(msgType, dest, cmd.Value)
		if err != nil {
			return err
		}
		if dest.IsZero() {
			b.net.Post(message.New(msgType, content))
		} else {
			b.net.Post(message.NewTo(dest, msgType, content))
		}
		return nil

	case OpConnect:
		if cmd.From == nil || cmd.To == nil {
			return fmt.Errorf("%w: connect needs from and to", ErrMalformedCommand)
		}
		return b.net.Connect(*cmd.From, *cmd.To)

	case OpDisconnect:
		if cmd.To == nil {
			return fmt.Errorf("%w: disconnect needs to", ErrMalformedCommand)
		}
		b.net.Disconnect(*cmd.To)
		return nil

	case OpRemoveProcessor:
		return b.net.RemoveProcessor(identifier.Intern(cmd.Processor))

	case OpSelect:
		return b.net.Select(identifier.Intern(cmd.Processor))
	}
	return fmt.Errorf("remote: %q: %w", cmd.Op, ErrUnknownCommand)
}

// decodeContent decodes a post payload. When msgType is a property id of a
// receiving processor the payload is decoded into that property's type, so
// a JSON number reaches an int property as an int. For a broadcast the first
// subscriber owning such a property decides the type. Other payloads decode
// as plain JSON values.
func (b *Bridge) decodeContent(msgType, dest identifier.Identifier, raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	receivers := []identifier.Identifier{dest}
	if dest.IsZero() {
		receivers = b.net.Distributor().Subscribers(msgType)
	}
	for _, id := range receivers {
		p, ok := b.net.Processor(id)
		if !ok {
			continue
		}
		if prop, ok := p.Property(msgType); ok {
			return prop.Decode(raw)
		}
	}

	var content interface{}
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}
	return content, nil
}

// Stats returns traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published:      b.published.Load(),
		PublishErrors:  b.publishErrors.Load(),
		Received:       b.received.Load(),
		Applied:        b.applied.Load(),
		Failed:         b.failed.Load(),
		QueueOverflows: b.queueOverflows.Load(),
		Dropped:        b.dropped.Load(),
		Breaker:        b.breaker.current(),
	}
}

func (b *Bridge) reply(cmd Command, err error) {
	result := CommandResult{Op: cmd.Op, OK: err == nil}
	if err != nil {
		result.Error = err.Error()
		result.Code = prismerrors.Categorize(err)
	}
	correlation := ""
	if cmd.ID != uuid.Nil {
		correlation = cmd.ID.String()
	}
	b.publishEvent(EventCommandResult, correlation, result)
}

func (b *Bridge) publishEvent(kind, correlationID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.publishErrors.Add(1)
		b.logger.Error("Failed to marshal event", zap.String("kind", kind), zap.Error(err))
		return
	}
	b.publish(b.cfg.EventSubject(kind), Envelope{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Type:          kind,
		Timestamp:     time.Now().UTC(),
		Payload:       data,
	})
}

// publish sends env, retrying up to PublishMaxRetries times with a linear
// backoff of PublishRetryDelay. While the breaker is open envelopes are
// dropped without touching the connection.
func (b *Bridge) publish(subject string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.publishErrors.Add(1)
		b.logger.Error("Failed to marshal envelope", zap.String("subject", subject), zap.Error(err))
		return
	}
	if !b.breaker.allow() {
		b.dropped.Add(1)
		return
	}

	for attempt := 0; ; attempt++ {
		err = b.conn.Publish(subject, data)
		if err == nil {
			b.breaker.success()
			b.published.Add(1)
			return
		}
		if attempt >= b.cfg.PublishMaxRetries {
			break
		}
		if b.cfg.PublishRetryDelay > 0 {
			b.sleep(time.Duration(attempt+1) * b.cfg.PublishRetryDelay)
		}
	}
	b.publishErrors.Add(1)
	b.logger.Error("Failed to publish",
		zap.String("subject", subject),
		zap.Int("attempts", b.cfg.PublishMaxRetries+1),
		zap.Error(err))
	if b.breaker.failure() {
		b.logger.Warn("Publish breaker opened",
			zap.Int("threshold", b.cfg.BreakerThreshold),
			zap.Duration("cooldown", b.cfg.BreakerCooldown))
	}
}

var _ message.Receiver = (*Bridge)(nil)
