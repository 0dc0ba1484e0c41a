package texture

import (
	"fmt"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
)

// DefaultTextureUnits is the unit count assumed when none is configured.
const DefaultTextureUnits = 8

type unitBinding struct {
	unit   int
	handle Handle
}

// UnitMapper assigns texture units to named bindings for one Process call.
// Every key gets its own unit, so two handles bound at the same time never
// share one. The executor resets the mapper before each call.
type UnitMapper struct {
	driver   Driver
	capacity int
	bindings map[identifier.Identifier]unitBinding
}

// NewUnitMapper creates a mapper over capacity units.
func NewUnitMapper(driver Driver, capacity int) *UnitMapper {
	if capacity <= 0 {
		capacity = DefaultTextureUnits
	}
	return &UnitMapper{
		driver:   driver,
		capacity: capacity,
		bindings: make(map[identifier.Identifier]unitBinding),
	}
}

// Bind assigns a unit to key and records h as bound to it. Binding an
// existing key again keeps its unit and replaces the handle.
func (m *UnitMapper) Bind(key identifier.Identifier, h Handle) (int, error) {
	if b, ok := m.bindings[key]; ok {
		b.handle = h
		m.bindings[key] = b
		return b.unit, nil
	}
	if len(m.bindings) >= m.capacity {
		return -1, fmt.Errorf("texture: bind %s: %d units in use: %w", key, m.capacity, prismerrors.ErrNoFreeUnit)
	}
	unit := len(m.bindings)
	m.bindings[key] = unitBinding{unit: unit, handle: h}
	return unit, nil
}

// Unit returns the logical unit index of key.
func (m *UnitMapper) Unit(key identifier.Identifier) (int, bool) {
	b, ok := m.bindings[key]
	return b.unit, ok
}

// GLUnit returns the driver unit enumerant of key.
func (m *UnitMapper) GLUnit(key identifier.Identifier) (int, bool) {
	b, ok := m.bindings[key]
	if !ok {
		return 0, false
	}
	return m.driver.UnitFor(b.unit), true
}

// Handle returns the handle bound to key, or InvalidHandle.
func (m *UnitMapper) Handle(key identifier.Identifier) Handle {
	return m.bindings[key].handle
}

// InUse returns the number of assigned units.
func (m *UnitMapper) InUse() int {
	return len(m.bindings)
}

// Capacity returns the number of units.
func (m *UnitMapper) Capacity() int {
	return m.capacity
}

// Reset frees every unit.
func (m *UnitMapper) Reset() {
	clear(m.bindings)
}
