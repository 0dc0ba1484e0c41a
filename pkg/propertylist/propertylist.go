// Package propertylist is a toolkit-independent model of a property panel
// view. It keeps one panel per processor of a network, filters properties by
// level of detail and tells the view when it has to repaint.
//
// The model observes the network and its properties; it never owns either.
// Like the network, it lives on the render goroutine.
package propertylist

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/property"
)

// Mode selects which panels are shown.
type Mode int

const (
	// List shows every processor, with the selected one expanded.
	List Mode = iota
	// Single shows only the selected processor.
	Single
)

func (m Mode) String() string {
	if m == Single {
		return "single"
	}
	return "list"
}

// Row is one visible property.
type Row struct {
	Property identifier.Identifier
	Label    string
	Value    interface{}
	Detail   property.LevelOfDetail
}

// Panel is the view of one processor.
type Panel struct {
	Processor identifier.Identifier
	Title     string
	Expanded  bool
	Rows      []Row
}

// RepaintFunc is called with the processor whose panel changed.
type RepaintFunc func(id identifier.Identifier)

type panel struct {
	proc    processor.Processor
	title   string
	handles map[*property.Property]property.ObserverHandle
}

// Model is the property list.
type Model struct {
	net     *network.Network
	mode    Mode
	detail  property.LevelOfDetail
	repaint RepaintFunc
	logger  *zap.Logger
	caser   cases.Caser

	panels   []*panel
	observer network.ObserverHandle
	closed   bool
}

// Option configures a Model.
type Option func(*Model)

// WithMode sets the initial mode.
func WithMode(mode Mode) Option {
	return func(m *Model) { m.mode = mode }
}

// WithLevelOfDetail sets the initial level of detail.
func WithLevelOfDetail(l property.LevelOfDetail) Option {
	return func(m *Model) { m.detail = l }
}

// WithRepaint sets the repaint callback.
func WithRepaint(fn RepaintFunc) Option {
	return func(m *Model) { m.repaint = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New builds panels for the processors already in net and follows later changes.
func New(net *network.Network, opts ...Option) *Model {
	m := &Model{
		net:    net,
		mode:   List,
		detail: property.Minimal,
		logger: zap.NewNop(),
		caser:  cases.Title(language.English),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range net.Processors() {
		m.add(p)
	}
	m.observer = net.AddObserver(network.ObserverFuncs{
		OnProcessorAdded: func(p processor.Processor) {
			m.add(p)
			m.notify(p.ID())
		},
		OnProcessorRemoved: func(id identifier.Identifier) {
			if m.remove(id) {
				m.notify(id)
			}
		},
		OnProcessorSelected: func(id identifier.Identifier) {
			m.notify(id)
		},
	})
	return m
}

// Close stops observing the network and every property.
func (m *Model) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.net.RemoveObserver(m.observer)
	for _, p := range m.panels {
		p.detach()
	}
	m.panels = nil
}

// Mode returns the current mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// SetMode switches between List and Single.
func (m *Model) SetMode(mode Mode) {
	if m.mode == mode {
		return
	}
	m.mode = mode
	m.notify(identifier.Identifier{})
}

// LevelOfDetail returns the current level of detail.
func (m *Model) LevelOfDetail() property.LevelOfDetail {
	return m.detail
}

// SetLevelOfDetail changes which properties are listed.
func (m *Model) SetLevelOfDetail(l property.LevelOfDetail) {
	if m.detail == l {
		return
	}
	m.detail = l
	m.notify(identifier.Identifier{})
}

// Len returns the number of panels, shown or not.
func (m *Model) Len() int {
	return len(m.panels)
}

// Panels returns the visible panels in network order.
func (m *Model) Panels() []Panel {
	selected := m.net.Selected()
	var out []Panel
	for _, p := range m.panels {
		id := p.proc.ID()
		if m.mode == Single && id != selected {
			continue
		}
		out = append(out, m.render(p, id == selected))
	}
	return out
}

// Panel returns the panel of one processor regardless of mode.
func (m *Model) Panel(id identifier.Identifier) (Panel, bool) {
	for _, p := range m.panels {
		if p.proc.ID() == id {
			return m.render(p, id == m.net.Selected()), true
		}
	}
	return Panel{}, false
}

func (m *Model) render(p *panel, expanded bool) Panel {
	out := Panel{Processor: p.proc.ID(), Title: p.title, Expanded: expanded}
	for _, prop := range p.proc.Properties() {
		if !prop.VisibleAt(m.detail) {
			continue
		}
		out.Rows = append(out.Rows, Row{
			Property: prop.ID(),
			Label:    m.caser.String(prop.DisplayName()),
			Value:    prop.Get(),
			Detail:   prop.LevelOfDetail(),
		})
	}
	return out
}

func (m *Model) add(proc processor.Processor) {
	p := &panel{
		proc:    proc,
		title:   m.title(proc),
		handles: make(map[*property.Property]property.ObserverHandle),
	}
	id := proc.ID()
	for _, prop := range proc.Properties() {
		p.handles[prop] = prop.OnChange(func(prop *property.Property, _, _ interface{}) {
			if prop.VisibleAt(m.detail) {
				m.notify(id)
			}
		})
	}
	m.panels = append(m.panels, p)
	m.logger.Debug("Added property panel", zap.String("processor", id.String()), zap.Int("properties", len(p.handles)))
}

func (m *Model) remove(id identifier.Identifier) bool {
	for i, p := range m.panels {
		if p.proc.ID() == id {
			p.detach()
			m.panels = append(m.panels[:i], m.panels[i+1:]...)
			return true
		}
	}
	return false
}

func (p *panel) detach() {
	for prop, h := range p.handles {
		prop.RemoveObserver(h)
	}
	p.handles = nil
}

func (m *Model) notify(id identifier.Identifier) {
	if m.repaint != nil {
		m.repaint(id)
	}
}

// title turns "DepthOfField" into "Depth Of Field (dof)".
func (m *Model) title(proc processor.Processor) string {
	words := m.caser.String(splitCamel(proc.TypeName()))
	return words + " (" + proc.ID().String() + ")"
}

func splitCamel(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
