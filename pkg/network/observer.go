package network

import (
	"slices"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
)

// Observer receives structural notifications. Observers hold processors by
// id only and must drop their references on ProcessorRemoved.
type Observer interface {
	ProcessorAdded(p processor.Processor)
	ProcessorRemoved(id identifier.Identifier)
	ProcessorSelected(id identifier.Identifier)
	ConnectionAdded(c port.Connection)
	ConnectionRemoved(c port.Connection)
}

// ObserverFuncs adapts optional callbacks to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnProcessorAdded    func(p processor.Processor)
	OnProcessorRemoved  func(id identifier.Identifier)
	OnProcessorSelected func(id identifier.Identifier)
	OnConnectionAdded   func(c port.Connection)
	OnConnectionRemoved func(c port.Connection)
}

func (f ObserverFuncs) ProcessorAdded(p processor.Processor) {
	if f.OnProcessorAdded != nil {
		f.OnProcessorAdded(p)
	}
}

func (f ObserverFuncs) ProcessorRemoved(id identifier.Identifier) {
	if f.OnProcessorRemoved != nil {
		f.OnProcessorRemoved(id)
	}
}

func (f ObserverFuncs) ProcessorSelected(id identifier.Identifier) {
	if f.OnProcessorSelected != nil {
		f.OnProcessorSelected(id)
	}
}

func (f ObserverFuncs) ConnectionAdded(c port.Connection) {
	if f.OnConnectionAdded != nil {
		f.OnConnectionAdded(c)
	}
}

func (f ObserverFuncs) ConnectionRemoved(c port.Connection) {
	if f.OnConnectionRemoved != nil {
		f.OnConnectionRemoved(c)
	}
}

var _ Observer = ObserverFuncs{}

// ObserverHandle identifies a registered observer.
type ObserverHandle uint64

type observerEntry struct {
	handle ObserverHandle
	obs    Observer
}

// AddObserver registers o and returns a handle for RemoveObserver.
func (n *Network) AddObserver(o Observer) ObserverHandle {
	n.nextHandle++
	n.observers = append(n.observers, observerEntry{handle: n.nextHandle, obs: o})
	return n.nextHandle
}

// RemoveObserver unregisters an observer. Unknown handles are ignored.
func (n *Network) RemoveObserver(h ObserverHandle) {
	n.observers = slices.DeleteFunc(slices.Clone(n.observers), func(e observerEntry) bool { return e.handle == h })
}

// notify calls fn for a snapshot of the observers taken before the first call.
func (n *Network) notify(fn func(Observer)) {
	if len(n.observers) == 0 {
		return
	}
	for _, e := range slices.Clone(n.observers) {
		fn(e.obs)
	}
}
