// Package document serializes processor networks.
//
// A document lists processors in insertion order with their type, id,
// instance id and property values, followed by the connections in creation
// order. Decoding rebuilds the network through a processor factory, so any
// type the factory knows can be stored.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processor"
	"github.com/wehubfusion/Prism/pkg/storage"
)

// Version is the document format written by Encode.
const Version = 1

// Document is the serialized form of a network.
type Document struct {
	Version     int               `json:"version"`
	Processors  []Processor       `json:"processors"`
	Connections []port.Connection `json:"connections"`
}

// Processor is one serialized processor.
type Processor struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Instance   uuid.UUID  `json:"instance"`
	Properties []Property `json:"properties,omitempty"`
}

// Property is one serialized property value.
type Property struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// FromNetwork builds a Document from the network snapshot.
func FromNetwork(net *network.Network) (*Document, error) {
	snap := net.Snapshot()
	doc := &Document{
		Version:     Version,
		Processors:  make([]Processor, 0, len(snap.Processors)),
		Connections: snap.Connections,
	}
	for _, ps := range snap.Processors {
		p := Processor{Type: ps.Type, ID: ps.ID.String(), Instance: ps.Instance}
		for _, prop := range ps.Properties {
			raw, err := json.Marshal(prop.Value)
			if err != nil {
				return nil, fmt.Errorf("document: property %s of %s: %w", prop.ID, ps.ID, err)
			}
			p.Properties = append(p.Properties, Property{ID: prop.ID.String(), Value: raw})
		}
		doc.Processors = append(doc.Processors, p)
	}
	if doc.Connections == nil {
		doc.Connections = []port.Connection{}
	}
	return doc, nil
}

// Encode serializes net as indented JSON.
func Encode(net *network.Network) ([]byte, error) {
	doc, err := FromNetwork(net)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses data and rebuilds the network it describes. Processors are
// created with factory and subscribed on dist. Properties the processor no
// longer declares are skipped with a warning; anything else that does not
// fit fails the whole decode with ErrInvalidDocument.
func Decode(data []byte, factory processor.Factory, dist *message.Distributor, logger *zap.Logger) (*network.Network, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", prismerrors.ErrInvalidDocument, err)
	}
	return doc.Build(factory, dist, logger)
}

// Build creates the network described by doc.
func (doc *Document) Build(factory processor.Factory, dist *message.Distributor, logger *zap.Logger) (*network.Network, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", prismerrors.ErrInvalidDocument, doc.Version)
	}

	net := network.New(dist, network.WithLogger(logger))
	for i, pd := range doc.Processors {
		if pd.ID == "" {
			return nil, fmt.Errorf("%w: processor %d has no id", prismerrors.ErrInvalidDocument, i)
		}
		id := identifier.Intern(pd.ID)
		p, err := factory.Create(pd.Type, id)
		if err != nil {
			return nil, fmt.Errorf("%w: processor %s: %w", prismerrors.ErrInvalidDocument, pd.ID, err)
		}
		for _, prop := range pd.Properties {
			target, ok := p.Property(identifier.Intern(prop.ID))
			if !ok {
				logger.Warn("Skipping unknown property",
					zap.String("processor", pd.ID),
					zap.String("property", prop.ID))
				continue
			}
			if err := target.SetJSON(prop.Value); err != nil {
				return nil, fmt.Errorf("%w: processor %s: %w", prismerrors.ErrInvalidDocument, pd.ID, err)
			}
		}
		if err := net.AddProcessor(p, network.WithInstanceID(pd.Instance)); err != nil {
			return nil, fmt.Errorf("%w: %w", prismerrors.ErrInvalidDocument, err)
		}
	}

	for _, c := range doc.Connections {
		if err := net.Connect(c.From, c.To); err != nil {
			return nil, fmt.Errorf("%w: connection %s: %w", prismerrors.ErrInvalidDocument, c, err)
		}
	}

	logger.Debug("Decoded network document",
		zap.Int("processors", len(doc.Processors)),
		zap.Int("connections", len(doc.Connections)))
	return net, nil
}

// Save encodes net and stores it under storage.NetworkPath(name).
func Save(ctx context.Context, store storage.DocumentStore, name string, net *network.Network) (string, error) {
	data, err := Encode(net)
	if err != nil {
		return "", err
	}
	return store.Put(ctx, storage.NetworkPath(name), data, map[string]string{
		"format_version":  strconv.Itoa(Version),
		"processor_count": strconv.Itoa(net.Len()),
	})
}

// Load reads the document at ref and decodes it.
func Load(ctx context.Context, store storage.DocumentStore, ref string, factory processor.Factory, dist *message.Distributor, logger *zap.Logger) (*network.Network, error) {
	data, err := store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("document: load %s: %w", ref, err)
	}
	return Decode(data, factory, dist, logger)
}
