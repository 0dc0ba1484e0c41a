package document_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wehubfusion/Prism/pkg/document"
	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/message"
	"github.com/wehubfusion/Prism/pkg/network"
	"github.com/wehubfusion/Prism/pkg/port"
	"github.com/wehubfusion/Prism/pkg/processors/canvas"
	"github.com/wehubfusion/Prism/pkg/processors/raycaster"
	"github.com/wehubfusion/Prism/pkg/processors/registry"
	"github.com/wehubfusion/Prism/pkg/processors/volumesource"
	"github.com/wehubfusion/Prism/pkg/property"
	"github.com/wehubfusion/Prism/pkg/storage"
)

func buildNetwork(t *testing.T) *network.Network {
	t.Helper()
	factory := registry.NewFactory()
	net := network.New(nil)
	for _, s := range [][2]string{{"VolumeSource", "volume"}, {"Raycaster", "raycaster"}, {"Canvas", "canvas"}} {
		p, err := factory.Create(s[0], identifier.Intern(s[1]))
		require.NoError(t, err)
		require.NoError(t, net.AddProcessor(p))
	}
	require.NoError(t, net.Connect(port.NewRef("volume", "volume.outport"), port.NewRef("raycaster", "volume.inport")))
	require.NoError(t, net.Connect(port.NewRef("raycaster", "image.outport"), port.NewRef("canvas", "image.inport")))

	require.NoError(t, net.SetProperty(identifier.Intern("volume"), volumesource.VolumeShape, volumesource.ShapeCube))
	require.NoError(t, net.SetProperty(identifier.Intern("raycaster"), raycaster.SamplingRate, 2.0))
	require.NoError(t, net.SetProperty(identifier.Intern("canvas"), canvas.Background, property.Color{0.2, 0.3, 0.4, 1}))
	return net
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	net := buildNetwork(t)
	data, err := document.Encode(net)
	require.NoError(t, err)

	decoded, err := document.Decode(data, registry.NewFactory(), message.NewDistributor(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, net.Snapshot(), decoded.Snapshot())

	order, err := decoded.OrderIDs()
	require.NoError(t, err)
	assert.Equal(t, []identifier.Identifier{
		identifier.Intern("volume"), identifier.Intern("raycaster"), identifier.Intern("canvas"),
	}, order)

	rc, ok := decoded.Processor(identifier.Intern("raycaster"))
	require.True(t, ok)
	rate, _ := rc.Property(raycaster.SamplingRate)
	assert.Equal(t, 2.0, rate.Get())
}

func TestEncodeFormat(t *testing.T) {
	data, err := document.Encode(buildNetwork(t))
	require.NoError(t, err)

	var doc document.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, document.Version, doc.Version)
	require.Len(t, doc.Processors, 3)
	assert.Equal(t, "VolumeSource", doc.Processors[0].Type)
	assert.Equal(t, "volume", doc.Processors[0].ID)
	require.Len(t, doc.Connections, 2)
	assert.Equal(t, "volume:volume.outport -> raycaster:volume.inport", doc.Connections[0].String())
}

func TestEncodeEmptyNetwork(t *testing.T) {
	data, err := document.Encode(network.New(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"processors":[],"connections":[]}`, string(data))
}

func TestDecodeSkipsUnknownProperty(t *testing.T) {
	data := `{
		"version": 1,
		"processors": [
			{"type": "Raycaster", "id": "rc", "instance": "00000000-0000-0000-0000-000000000000",
			 "properties": [{"id": "set.retired", "value": 3}, {"id": "set.isoThreshold", "value": 0.25}]}
		],
		"connections": []
	}`
	net, err := document.Decode([]byte(data), registry.NewFactory(), nil, nil)
	require.NoError(t, err)

	rc, ok := net.Processor(identifier.Intern("rc"))
	require.True(t, ok)
	iso, _ := rc.Property(raycaster.IsoThreshold)
	assert.Equal(t, 0.25, iso.Get())

	instance, ok := net.InstanceID(identifier.Intern("rc"))
	require.True(t, ok)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", instance.String())
}

func TestDecodeRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
		is   error
	}{
		{name: "not json", data: `{`},
		{name: "unknown field", data: `{"version":1,"processors":[],"connections":[],"extra":1}`},
		{name: "version", data: `{"version":2,"processors":[],"connections":[]}`},
		{name: "missing id", data: `{"version":1,"processors":[{"type":"Canvas"}],"connections":[]}`},
		{
			name: "unknown type",
			data: `{"version":1,"processors":[{"type":"Teapot","id":"t"}],"connections":[]}`,
			is:   prismerrors.ErrUnknownProcessorType,
		},
		{
			name: "duplicate id",
			data: `{"version":1,"processors":[{"type":"Canvas","id":"c"},{"type":"Canvas","id":"c"}],"connections":[]}`,
			is:   prismerrors.ErrDuplicateProcessor,
		},
		{
			name: "property type",
			data: `{"version":1,"processors":[{"type":"Raycaster","id":"r","properties":[{"id":"set.samplingRate","value":"fast"}]}],"connections":[]}`,
			is:   prismerrors.ErrTypeMismatch,
		},
		{
			name: "property range",
			data: `{"version":1,"processors":[{"type":"Raycaster","id":"r","properties":[{"id":"set.samplingRate","value":9}]}],"connections":[]}`,
			is:   prismerrors.ErrOutOfRange,
		},
		{
			name: "connection type",
			data: `{"version":1,"processors":[{"type":"Raycaster","id":"r"},{"type":"Canvas","id":"c"}],
				"connections":[{"from":{"processor":"c","port":"image.outport"},"to":{"processor":"r","port":"volume.inport"}}]}`,
			is: prismerrors.ErrPortTypeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := document.Decode([]byte(tt.data), registry.NewFactory(), nil, nil)
			require.Error(t, err)
			assert.Nil(t, net)
			assert.ErrorIs(t, err, prismerrors.ErrInvalidDocument)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	net := buildNetwork(t)

	ref, err := document.Save(ctx, store, "demo", net)
	require.NoError(t, err)
	assert.Equal(t, "networks/demo.json", ref)
	assert.Equal(t, "3", store.Metadata(ref)["processor_count"])

	loaded, err := document.Load(ctx, store, ref, registry.NewFactory(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, net.Snapshot(), loaded.Snapshot())

	_, err = document.Load(ctx, store, "networks/none.json", registry.NewFactory(), nil, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
