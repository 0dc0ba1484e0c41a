// Package property provides named, typed, observable values: the unit of
// user-adjustable processor state.
//
// A Property's declared type is fixed by its initial value. Set rejects
// values of any other runtime type without touching the stored value or
// notifying observers. Every successful Set calls the registered observers
// synchronously, in registration order, before returning.
//
// The observer list is copied before each dispatch. An observer may add or
// remove observers (including itself) while being called; the change applies
// from the next Set on.
//
// Properties are not safe for concurrent use. Mutations from other
// goroutines must be marshaled onto the render goroutine first.
package property

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
)

// Observer is called after a successful Set with the previous and new value.
type Observer func(p *Property, oldValue, newValue interface{})

// ObserverHandle identifies a registered observer for removal.
type ObserverHandle uint64

type observerEntry struct {
	handle ObserverHandle
	fn     Observer
}

// Property is a named, typed, observable value.
type Property struct {
	id          identifier.Identifier
	displayName string
	value       interface{}
	def         interface{}
	kind        reflect.Type
	lod         LevelOfDetail
	owner       identifier.Identifier

	bounded  bool
	min, max float64

	observers  []observerEntry
	nextHandle ObserverHandle
}

// Option configures a Property at construction.
type Option func(*Property)

// WithLevelOfDetail sets the initial level of detail.
func WithLevelOfDetail(l LevelOfDetail) Option {
	return func(p *Property) {
		p.lod = l
	}
}

// WithRange bounds numeric values (and each component of vector values) to [min, max].
func WithRange(min, max float64) Option {
	return func(p *Property) {
		p.bounded = true
		p.min, p.max = min, max
	}
}

// New creates a property whose declared type is the runtime type of initial.
// initial must not be nil.
func New(id identifier.Identifier, displayName string, initial interface{}, opts ...Option) *Property {
	if initial == nil {
		panic("property: nil initial value for " + id.String())
	}
	p := &Property{
		id:          id,
		displayName: displayName,
		value:       initial,
		def:         initial,
		kind:        reflect.TypeOf(initial),
		lod:         Minimal,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFloat creates a float property bounded to [min, max].
func NewFloat(id identifier.Identifier, displayName string, value, min, max float64, opts ...Option) *Property {
	return New(id, displayName, value, append([]Option{WithRange(min, max)}, opts...)...)
}

// NewInt creates an int property bounded to [min, max].
func NewInt(id identifier.Identifier, displayName string, value, min, max int, opts ...Option) *Property {
	return New(id, displayName, value, append([]Option{WithRange(float64(min), float64(max))}, opts...)...)
}

// NewBool creates a bool property.
func NewBool(id identifier.Identifier, displayName string, value bool, opts ...Option) *Property {
	return New(id, displayName, value, opts...)
}

// NewString creates a string property.
func NewString(id identifier.Identifier, displayName string, value string, opts ...Option) *Property {
	return New(id, displayName, value, opts...)
}

// ID returns the property identifier.
func (p *Property) ID() identifier.Identifier {
	return p.id
}

// DisplayName returns the human-readable name.
func (p *Property) DisplayName() string {
	return p.displayName
}

// Get returns the current value.
func (p *Property) Get() interface{} {
	return p.value
}

// Default returns the value the property was created with.
func (p *Property) Default() interface{} {
	return p.def
}

// Kind returns the declared value type.
func (p *Property) Kind() reflect.Type {
	return p.kind
}

// Range returns the numeric bounds and whether the property is bounded.
func (p *Property) Range() (min, max float64, ok bool) {
	return p.min, p.max, p.bounded
}

// Value returns the property value as T.
func Value[T any](p *Property) (T, bool) {
	v, ok := p.value.(T)
	return v, ok
}

// Set replaces the value and notifies observers.
func (p *Property) Set(v interface{}) error {
	got := reflect.TypeOf(v)
	if got != p.kind {
		return &TypeMismatchError{Property: p.id, Expected: p.kind, Got: got}
	}
	if p.bounded && !p.inRange(v) {
		return fmt.Errorf("property %s: %v not in [%g, %g]: %w", p.id, v, p.min, p.max, prismerrors.ErrOutOfRange)
	}
	old := p.value
	p.value = v
	p.notify(old, v)
	return nil
}

// Reset restores the default value. Observers are notified.
func (p *Property) Reset() {
	old := p.value
	p.value = p.def
	p.notify(old, p.def)
}

// Decode decodes raw into the declared type without setting it.
func (p *Property) Decode(raw json.RawMessage) (interface{}, error) {
	ptr := reflect.New(p.kind)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, &TypeMismatchError{Property: p.id, Expected: p.kind, Got: nil, cause: err}
	}
	return ptr.Elem().Interface(), nil
}

// SetJSON decodes raw into the declared type and sets it.
func (p *Property) SetJSON(raw json.RawMessage) error {
	v, err := p.Decode(raw)
	if err != nil {
		return err
	}
	return p.Set(v)
}

// LevelOfDetail returns the current level of detail.
func (p *Property) LevelOfDetail() LevelOfDetail {
	return p.lod
}

// SetLevelOfDetail changes the level of detail. Observers are not notified.
func (p *Property) SetLevelOfDetail(l LevelOfDetail) {
	p.lod = l
}

// VisibleAt reports whether the property is shown in a view set to setting.
func (p *Property) VisibleAt(setting LevelOfDetail) bool {
	return p.lod <= setting
}

// Owner returns the identifier of the owning processor.
func (p *Property) Owner() identifier.Identifier {
	return p.owner
}

// SetOwner records the owning processor. A property is never transferred:
// assigning a different owner fails with ErrAlreadyOwned.
func (p *Property) SetOwner(owner identifier.Identifier) error {
	if !p.owner.IsZero() && p.owner != owner {
		return fmt.Errorf("property %s owned by %s: %w", p.id, p.owner, prismerrors.ErrAlreadyOwned)
	}
	p.owner = owner
	return nil
}

// OnChange registers fn and returns a handle for RemoveObserver.
func (p *Property) OnChange(fn Observer) ObserverHandle {
	p.nextHandle++
	p.observers = append(p.observers, observerEntry{handle: p.nextHandle, fn: fn})
	return p.nextHandle
}

// RemoveObserver unregisters an observer. Unknown handles are ignored.
func (p *Property) RemoveObserver(h ObserverHandle) {
	for i, o := range p.observers {
		if o.handle == h {
			p.observers = slices.Delete(p.observers, i, i+1)
			return
		}
	}
}

// ObserverCount returns the number of registered observers.
func (p *Property) ObserverCount() int {
	return len(p.observers)
}

func (p *Property) notify(oldValue, newValue interface{}) {
	if len(p.observers) == 0 {
		return
	}
	snapshot := make([]observerEntry, len(p.observers))
	copy(snapshot, p.observers)
	for _, o := range snapshot {
		o.fn(p, oldValue, newValue)
	}
}

func (p *Property) inRange(v interface{}) bool {
	within := func(f float64) bool { return f >= p.min && f <= p.max }
	switch x := v.(type) {
	case float64:
		return within(x)
	case int:
		return within(float64(x))
	case Vec2:
		return within(x[0]) && within(x[1])
	case IVec2:
		return within(float64(x[0])) && within(float64(x[1]))
	case Color:
		return within(x[0]) && within(x[1]) && within(x[2]) && within(x[3])
	}
	return true
}

// TypeMismatchError reports a Set with a value of the wrong runtime type.
type TypeMismatchError struct {
	Property identifier.Identifier
	Expected reflect.Type
	Got      reflect.Type
	cause    error
}

func (e *TypeMismatchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("property %s: cannot decode %v: %v", e.Property, e.Expected, e.cause)
	}
	return fmt.Sprintf("property %s: expected %v, got %v", e.Property, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrTypeMismatch.
func (e *TypeMismatchError) Unwrap() error {
	return prismerrors.ErrTypeMismatch
}
