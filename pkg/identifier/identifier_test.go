package identifier_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wehubfusion/Prism/pkg/identifier"
)

func TestInternIsIdempotent(t *testing.T) {
	a := identifier.Intern("set.depthOfFieldThreshold")
	b := identifier.Intern("set." + "depthOfFieldThreshold")

	assert.True(t, a == b)
	assert.Equal(t, "set.depthOfFieldThreshold", a.String())
	assert.NotEqual(t, a, identifier.Intern("set.other"))
}

func TestEmptyIdentifier(t *testing.T) {
	var zero identifier.Identifier
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())
	assert.Equal(t, zero, identifier.Intern(""))
	assert.False(t, identifier.All.IsZero())
}

func TestOrdering(t *testing.T) {
	ids := []identifier.Identifier{
		identifier.Intern("raycaster"),
		identifier.Intern("canvas"),
		identifier.Intern("dof"),
	}
	identifier.Sort(ids)

	got := []string{ids[0].String(), ids[1].String(), ids[2].String()}
	assert.Equal(t, []string{"canvas", "dof", "raycaster"}, got)
	assert.Equal(t, 0, identifier.Compare(ids[0], identifier.Intern("canvas")))
	assert.Negative(t, identifier.Compare(ids[0], ids[1]))
}

func TestUsableAsMapKey(t *testing.T) {
	m := map[identifier.Identifier]int{}
	m[identifier.Intern("a")]++
	m[identifier.Intern("a")]++
	assert.Equal(t, 2, m[identifier.Intern("a")])
	assert.Len(t, m, 1)
}

func TestJSONRoundTrip(t *testing.T) {
	type doc struct {
		ID identifier.Identifier `json:"id"`
	}
	raw, err := json.Marshal(doc{ID: identifier.Intern("image.outport")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"image.outport"}`, string(raw))

	var back doc
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, identifier.Intern("image.outport"), back.ID)
}
