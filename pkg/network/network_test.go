package network_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
)

var paramChanged = identifier.Intern("paramChanged")

type stage struct {
	processor.Base
	received []message.Message
}

func (s *stage) Process(context.Context, *processor.RenderContext, *port.Mapping) error { return nil }

func (s *stage) HandleMessage(msg message.Message) {
	s.received = append(s.received, msg)
	s.Base.HandleMessage(msg)
}

// newStage builds a processor with a required image inport, optional
// feedback and volume inports, and image and volume outports.
func newStage(t *testing.T, name string) *stage {
	t.Helper()
	s := &stage{Base: processor.NewBase(identifier.Intern(name), "Stage")}
	s.CreateInport("image.inport", port.ImageType)
	s.CreateInport("feedback.inport", port.ImageType, processor.Optional())
	s.CreateInport("volume.inport", port.VolumeType, processor.Optional())
	s.CreateOutport("image.outport", port.ImageType)
	s.CreateOutport("volume.outport", port.VolumeType)
	require.NoError(t, s.AddProperty(property.NewFloat(identifier.Intern("set.gain"), "Gain", 1, 0, 10)))
	s.Subscribe(paramChanged)
	return s
}

func img(proc string) (from, to port.Ref) {
	return port.NewRef(proc, "image.outport"), port.NewRef(proc, "image.inport")
}

func connect(t *testing.T, n *network.Network, from, to string) {
	t.Helper()
	out, _ := img(from)
	_, in := img(to)
	require.NoError(t, n.Connect(out, in))
}

func ids(t *testing.T, n *network.Network) []string {
	t.Helper()
	order, err := n.OrderIDs()
	require.NoError(t, err)
	out := make([]string, len(order))
	for i, id := range order {
		out[i] = id.String()
	}
	return out
}

func build(t *testing.T, names ...string) *network.Network {
	t.Helper()
	n := network.New(nil)
	for _, name := range names {
		require.NoError(t, n.AddProcessor(newStage(t, name)))
	}
	return n
}

func TestAddProcessorRejectsDuplicates(t *testing.T) {
	n := build(t, "a")
	err := n.AddProcessor(newStage(t, "a"))
	assert.ErrorIs(t, err, prismerrors.ErrDuplicateProcessor)
	assert.Equal(t, 1, n.Len())

	instance, ok := n.InstanceID(identifier.Intern("a"))
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, instance)

	fixed := uuid.New()
	require.NoError(t, n.AddProcessor(newStage(t, "b"), network.WithInstanceID(fixed)))
	got, _ := n.InstanceID(identifier.Intern("b"))
	assert.Equal(t, fixed, got)
}

func TestConnectValidation(t *testing.T) {
	n := build(t, "a", "b")

	err := n.Connect(port.NewRef("a", "volume.outport"), port.NewRef("b", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrPortTypeMismatch)

	err = n.Connect(port.NewRef("ghost", "image.outport"), port.NewRef("b", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrUnknownProcessor)

	err = n.Connect(port.NewRef("a", "nope"), port.NewRef("b", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrUnknownPort)

	err = n.Connect(port.NewRef("a", "image.outport"), port.NewRef("a", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrSelfConnection)

	err = n.Connect(port.NewRef("b", "image.inport"), port.NewRef("a", "image.outport"))
	assert.ErrorIs(t, err, prismerrors.ErrPortDirection)

	assert.Empty(t, n.Connections())
}

func TestInputAcceptsOneConnection(t *testing.T) {
	n := build(t, "a", "b", "c")
	connect(t, n, "a", "c")

	err := n.Connect(port.NewRef("b", "image.outport"), port.NewRef("c", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrPortAlreadyConnected)

	// outputs fan out
	connect(t, n, "a", "b")
	assert.Len(t, n.Outgoing(port.NewRef("a", "image.outport")), 2)

	_, to := img("c")
	assert.True(t, n.Disconnect(to))
	assert.False(t, n.Disconnect(to))
	connect(t, n, "b", "c")

	c, ok := n.Incoming(to)
	require.True(t, ok)
	assert.Equal(t, identifier.Intern("b"), c.From.Processor)
}

func TestConnectDisconnectSequencesKeepSingleIncoming(t *testing.T) {
	n := build(t, "a", "b", "c", "d")
	sources := []string{"a", "b", "c"}
	_, target := img("d")

	for i := 0; i < 30; i++ {
		src := sources[i%len(sources)]
		from, _ := img(src)
		if i%4 == 3 {
			n.Disconnect(target)
		}
		_ = n.Connect(from, target)

		incoming := 0
		for _, c := range n.Connections() {
			if c.To == target {
				incoming++
			}
		}
		assert.LessOrEqual(t, incoming, 1)
	}
}

func TestCycleRejectedAndStructureUnchanged(t *testing.T) {
	n := build(t, "a", "b", "c")
	connect(t, n, "a", "b")
	connect(t, n, "b", "c")

	before := n.Snapshot()
	version := n.Version()

	err := n.Connect(port.NewRef("c", "image.outport"), port.NewRef("a", "image.inport"))
	assert.ErrorIs(t, err, prismerrors.ErrCyclicDependency)
	assert.Equal(t, before, n.Snapshot())
	assert.Equal(t, version, n.Version())
	assert.Equal(t, []string{"a", "b", "c"}, ids(t, n))
}

func TestOptionalFeedbackEdgeIsAllowed(t *testing.T) {
	n := build(t, "a", "b")
	connect(t, n, "a", "b")

	require.NoError(t, n.Connect(port.NewRef("b", "image.outport"), port.NewRef("a", "feedback.inport")))
	assert.Equal(t, []string{"a", "b"}, ids(t, n))
}

func TestOptionalEdgesStillOrderWhenAcyclic(t *testing.T) {
	n := build(t, "consumer", "producer")
	require.NoError(t, n.Connect(port.NewRef("producer", "volume.outport"), port.NewRef("consumer", "volume.inport")))
	assert.Equal(t, []string{"producer", "consumer"}, ids(t, n))
}

func TestTopologicalOrderIsStableAndUsesInsertionOrder(t *testing.T) {
	n := build(t, "e", "d", "c", "b", "a")
	connect(t, n, "a", "c")
	connect(t, n, "d", "b")

	first := ids(t, n)
	assert.Equal(t, []string{"e", "d", "b", "a", "c"}, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ids(t, n))
	}

	// cached until a structural change
	require.NoError(t, n.AddProcessor(newStage(t, "f")))
	assert.Equal(t, []string{"e", "d", "b", "a", "c", "f"}, ids(t, n))
}

func TestRemovedProcessorGetsNoMessages(t *testing.T) {
	n := build(t, "a")
	b := newStage(t, "b")
	require.NoError(t, n.AddProcessor(b))
	connect(t, n, "a", "b")

	n.Post(message.New(paramChanged, 1))
	require.Len(t, b.received, 1)

	require.NoError(t, n.RemoveProcessor(b.ID()))
	n.Post(message.New(paramChanged, 2))
	n.Post(message.NewTo(b.ID(), paramChanged, 3))

	assert.Len(t, b.received, 1)
	assert.Empty(t, n.Connections())
	assert.False(t, n.Distributor().IsSubscribed(b.ID(), paramChanged))
	assert.ErrorIs(t, n.RemoveProcessor(b.ID()), prismerrors.ErrUnknownProcessor)
}

func TestObserversSeeStructuralEvents(t *testing.T) {
	n := network.New(message.NewDistributor())
	var events []string
	h := n.AddObserver(network.ObserverFuncs{
		OnProcessorAdded:    func(p processor.Processor) { events = append(events, "added:"+p.ID().String()) },
		OnProcessorRemoved:  func(id identifier.Identifier) { events = append(events, "removed:"+id.String()) },
		OnProcessorSelected: func(id identifier.Identifier) { events = append(events, "selected:"+id.String()) },
		OnConnectionAdded:   func(c port.Connection) { events = append(events, "connected:"+c.To.String()) },
		OnConnectionRemoved: func(c port.Connection) { events = append(events, "disconnected:"+c.To.String()) },
	})

	require.NoError(t, n.AddProcessor(newStage(t, "a")))
	require.NoError(t, n.AddProcessor(newStage(t, "b")))
	connect(t, n, "a", "b")
	require.NoError(t, n.Select(identifier.Intern("b")))
	require.NoError(t, n.RemoveProcessor(identifier.Intern("b")))

	assert.Equal(t, []string{
		"added:a", "added:b", "connected:b:image.inport", "selected:b",
		"disconnected:b:image.inport", "removed:b",
	}, events)
	assert.True(t, n.Selected().IsZero())
	assert.ErrorIs(t, n.Select(identifier.Intern("b")), prismerrors.ErrUnknownProcessor)

	n.RemoveObserver(h)
	require.NoError(t, n.AddProcessor(newStage(t, "c")))
	assert.Len(t, events, 6)
}

func TestConnectionObserversSeeCurrentOrder(t *testing.T) {
	n := build(t, "a", "b")
	var seen [][]string
	n.AddObserver(network.ObserverFuncs{
		OnConnectionAdded:   func(port.Connection) { seen = append(seen, ids(t, n)) },
		OnConnectionRemoved: func(port.Connection) { seen = append(seen, ids(t, n)) },
	})

	connect(t, n, "b", "a")
	_, in := img("a")
	require.True(t, n.Disconnect(in))
	connect(t, n, "b", "a")
	require.NoError(t, n.RemoveProcessor(identifier.Intern("b")))

	assert.Equal(t, [][]string{
		{"b", "a"},
		{"a", "b"},
		{"b", "a"},
		{"a", "b"},
	}, seen)
}

func TestSetPropertyAndSnapshot(t *testing.T) {
	n := build(t, "a", "b")
	connect(t, n, "a", "b")
	gain := identifier.Intern("set.gain")

	require.NoError(t, n.SetProperty(identifier.Intern("a"), gain, 2.5))
	assert.ErrorIs(t, n.SetProperty(identifier.Intern("a"), gain, "loud"), prismerrors.ErrTypeMismatch)
	assert.ErrorIs(t, n.SetProperty(identifier.Intern("a"), identifier.Intern("nope"), 1.0), prismerrors.ErrUnknownProperty)
	assert.ErrorIs(t, n.SetProperty(identifier.Intern("z"), gain, 1.0), prismerrors.ErrUnknownProcessor)

	// property messages reach the owning processor
	n.Post(message.NewTo(identifier.Intern("b"), gain, 4.0))

	snap := n.Snapshot()
	require.Len(t, snap.Processors, 2)
	assert.Equal(t, "Stage", snap.Processors[0].Type)
	assert.Equal(t, 2.5, snap.Processors[0].Properties[0].Value)
	assert.Equal(t, 4.0, snap.Processors[1].Properties[0].Value)
	assert.Equal(t, []port.Connection{{From: port.NewRef("a", "image.outport"), To: port.NewRef("b", "image.inport")}}, snap.Connections)
}

func TestValidateReportsMissingConnections(t *testing.T) {
	n := build(t, "a", "b")
	err := n.Validate()
	assert.ErrorIs(t, err, prismerrors.ErrMissingConnection)
	assert.ErrorContains(t, err, "b:image.inport")

	connect(t, n, "a", "b")
	err = n.Validate()
	assert.ErrorIs(t, err, prismerrors.ErrMissingConnection)
	assert.ErrorContains(t, err, "a:image.inport")
	assert.NotContains(t, err.Error(), "b:image.inport")
}
