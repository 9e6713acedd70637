package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Value:
// - Each kind round-trips through JSON losslessly
// - Absent encodes as null and decodes back to Absent
// - Arrays decode as Strings or Floats by element type
// - Mixed-type arrays are rejected
// - Equal distinguishes kinds and contents

func TestValue_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	values := []Value{
		Absent(),
		NewString("SIEMENS"),
		NewStrings([]string{"DERIVED", "PRIMARY"}),
		NewFloat(31.25),
		NewFloats([]float64{1.40625, 1.40625}),
	}

	for _, v := range values {
		data, err := json.Marshal(v)
		require.NoError(t, err)

		var back Value
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, v.Equal(back), "value %s did not round-trip (got %s)", v, back)
	}
}

func TestValue_AbsentIsNull(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Absent())
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var v Value
	require.NoError(t, json.Unmarshal([]byte("null"), &v))
	assert.True(t, v.IsAbsent())
}

func TestValue_MixedArrayRejected(t *testing.T) {
	t.Parallel()

	var v Value
	err := json.Unmarshal([]byte(`["a", 1.5]`), &v)
	assert.Error(t, err)
}

func TestValue_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, NewFloat(1).Equal(NewFloat(1)))
	assert.False(t, NewFloat(1).Equal(NewFloat(2)))
	assert.False(t, NewFloat(1).Equal(NewString("1")))
	assert.False(t, NewFloats([]float64{1}).Equal(NewFloats([]float64{1, 2})))
	assert.True(t, Absent().Equal(Absent()))
}

func TestValue_Accessors(t *testing.T) {
	t.Parallel()

	f, ok := NewFloat(2.5).AsFloat()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = NewString("x").AsFloat()
	assert.False(t, ok)

	ss, ok := NewStrings([]string{"a", "b"}).AsStrings()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ss)
}
