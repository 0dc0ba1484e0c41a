package property_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	prismerrors "github.com/wehubfusion/Prism/pkg/errors"
	"github.com/wehubfusion/Prism/pkg/identifier"
	"github.com/wehubfusion/Prism/pkg/property"
)

var thresholdID = identifier.Intern("set.depthOfFieldThreshold")

func TestSetRejectsWrongType(t *testing.T) {
	p := property.NewFloat(thresholdID, "Depth Threshold", 0.5, 0, 1)
	calls := 0
	p.OnChange(func(*property.Property, interface{}, interface{}) { calls++ })

	for _, bad := range []interface{}{"0.7", 1, float32(0.7), nil, true} {
		err := p.Set(bad)
		require.Error(t, err)
		assert.ErrorIs(t, err, prismerrors.ErrTypeMismatch)

		var tm *property.TypeMismatchError
		require.ErrorAs(t, err, &tm)
		assert.Equal(t, thresholdID, tm.Property)
	}

	assert.Equal(t, 0.5, p.Get())
	assert.Zero(t, calls)
}

func TestSetRejectsOutOfRange(t *testing.T) {
	p := property.NewInt(identifier.Intern("set.radius"), "Radius", 4, 0, 16)
	calls := 0
	p.OnChange(func(*property.Property, interface{}, interface{}) { calls++ })

	err := p.Set(17)
	assert.ErrorIs(t, err, prismerrors.ErrOutOfRange)
	assert.Equal(t, 4, p.Get())
	assert.Zero(t, calls)

	require.NoError(t, p.Set(16))
	assert.Equal(t, 1, calls)
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	p := property.NewFloat(thresholdID, "Depth Threshold", 0.5, 0, 1)
	var order []string
	var seenOld, seenNew interface{}
	p.OnChange(func(_ *property.Property, oldValue, newValue interface{}) {
		order = append(order, "first")
		seenOld, seenNew = oldValue, newValue
	})
	p.OnChange(func(*property.Property, interface{}, interface{}) { order = append(order, "second") })
	p.OnChange(func(*property.Property, interface{}, interface{}) { order = append(order, "third") })

	require.NoError(t, p.Set(0.25))

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 0.5, seenOld)
	assert.Equal(t, 0.25, seenNew)
}

func TestSetWithSameValueStillNotifies(t *testing.T) {
	p := property.NewBool(identifier.Intern("set.enabled"), "Enabled", true)
	calls := 0
	p.OnChange(func(*property.Property, interface{}, interface{}) { calls++ })

	require.NoError(t, p.Set(true))
	assert.Equal(t, 1, calls)
}

func TestObserverRemovalDuringDispatchUsesSnapshot(t *testing.T) {
	p := property.NewString(identifier.Intern("set.mode"), "Mode", "mip")
	var calls []string
	var second property.ObserverHandle
	p.OnChange(func(*property.Property, interface{}, interface{}) {
		calls = append(calls, "first")
		p.RemoveObserver(second)
		p.OnChange(func(*property.Property, interface{}, interface{}) { calls = append(calls, "late") })
	})
	second = p.OnChange(func(*property.Property, interface{}, interface{}) { calls = append(calls, "second") })

	require.NoError(t, p.Set("composite"))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	require.NoError(t, p.Set("mip"))
	assert.Equal(t, []string{"first", "late"}, calls)
}

func TestRemoveObserverIsIdempotent(t *testing.T) {
	p := property.NewBool(identifier.Intern("set.enabled"), "Enabled", false)
	h := p.OnChange(func(*property.Property, interface{}, interface{}) { t.Fatal("removed observer called") })
	p.RemoveObserver(h)
	p.RemoveObserver(h)
	p.RemoveObserver(property.ObserverHandle(999))
	assert.Zero(t, p.ObserverCount())
	require.NoError(t, p.Set(true))
}

func TestLevelOfDetail(t *testing.T) {
	p := property.NewFloat(thresholdID, "Depth Threshold", 0.5, 0, 1, property.WithLevelOfDetail(property.Detailed))
	calls := 0
	p.OnChange(func(*property.Property, interface{}, interface{}) { calls++ })

	assert.False(t, p.VisibleAt(property.Minimal))
	assert.True(t, p.VisibleAt(property.Detailed))
	assert.True(t, p.VisibleAt(property.All))

	p.SetLevelOfDetail(property.All)
	assert.Equal(t, property.All, p.LevelOfDetail())
	assert.False(t, p.VisibleAt(property.Detailed))
	assert.Zero(t, calls)

	assert.Equal(t, property.Detailed, property.ParseLevelOfDetail("Detailed"))
	assert.Equal(t, property.Minimal, property.ParseLevelOfDetail("bogus"))
	assert.Equal(t, "all", property.All.String())
}

func TestOwnerIsNeverTransferred(t *testing.T) {
	p := property.NewBool(identifier.Intern("set.enabled"), "Enabled", false)
	a, b := identifier.Intern("dof"), identifier.Intern("raycaster")

	require.NoError(t, p.SetOwner(a))
	require.NoError(t, p.SetOwner(a))
	assert.ErrorIs(t, p.SetOwner(b), prismerrors.ErrAlreadyOwned)
	assert.Equal(t, a, p.Owner())
}

func TestVectorAndColorValues(t *testing.T) {
	p := property.New(identifier.Intern("set.eyeOffset"), "Eye Offset", property.Vec2{0, 0}, property.WithRange(-1, 1))
	require.NoError(t, p.Set(property.Vec2{0.5, -0.5}))
	assert.ErrorIs(t, p.Set(property.Vec2{2, 0}), prismerrors.ErrOutOfRange)
	assert.ErrorIs(t, p.Set([2]float64{0, 0}), prismerrors.ErrTypeMismatch)

	v, ok := property.Value[property.Vec2](p)
	require.True(t, ok)
	assert.Equal(t, property.Vec2{0.5, -0.5}, v)

	_, ok = property.Value[float64](p)
	assert.False(t, ok)
}

func TestSetJSON(t *testing.T) {
	f := property.NewFloat(thresholdID, "Depth Threshold", 0.5, 0, 1)
	require.NoError(t, f.SetJSON(json.RawMessage(`0.75`)))
	assert.Equal(t, 0.75, f.Get())

	i := property.NewInt(identifier.Intern("set.volumeSize"), "Volume Size", 32, 4, 256)
	require.NoError(t, i.SetJSON(json.RawMessage(`64`)))
	assert.Equal(t, 64, i.Get())
	assert.ErrorIs(t, i.SetJSON(json.RawMessage(`"big"`)), prismerrors.ErrTypeMismatch)
	assert.Equal(t, 64, i.Get())

	c := property.New(identifier.Intern("set.background"), "Background", property.Color{0, 0, 0, 1})
	require.NoError(t, c.SetJSON(json.RawMessage(`[1,0.5,0,1]`)))
	assert.Equal(t, property.Color{1, 0.5, 0, 1}, c.Get())
}

func TestDecodeLeavesValueUntouched(t *testing.T) {
	i := property.NewInt(identifier.Intern("set.volumeSize"), "Volume Size", 32, 4, 256)
	calls := 0
	i.OnChange(func(*property.Property, interface{}, interface{}) { calls++ })

	v, err := i.Decode(json.RawMessage(`300`))
	require.NoError(t, err)
	assert.Equal(t, 300, v, "range is checked by Set, not Decode")
	assert.Equal(t, 32, i.Get())
	assert.Zero(t, calls)

	_, err = i.Decode(json.RawMessage(`1.5`))
	assert.ErrorIs(t, err, prismerrors.ErrTypeMismatch)
}

func TestReset(t *testing.T) {
	p := property.NewString(identifier.Intern("set.mode"), "Mode", "mip")
	require.NoError(t, p.Set("composite"))

	var got interface{}
	p.OnChange(func(_ *property.Property, _, newValue interface{}) { got = newValue })
	p.Reset()

	assert.Equal(t, "mip", p.Get())
	assert.Equal(t, "mip", got)
	assert.Equal(t, "mip", p.Default())
}
