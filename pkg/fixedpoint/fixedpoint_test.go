package fixedpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/fixedpoint"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []float64{0, 1, -1, 2.5, -2.5, 3, -4}
	for _, x := range cases {
		s, err := fixedpoint.Encode(fixedpoint.Default, x)
		require.NoError(t, err)
		got := fixedpoint.Decode(fixedpoint.Default, s.Elem)
		assert.InDelta(t, x, got, 1.0/8.0, "x=%v", x)
	}
}

func TestEncodeOverflow(t *testing.T) {
	_, err := fixedpoint.Encode(fixedpoint.Default, 1e9)
	assert.Error(t, err)
}

func TestScenarioS1Identity(t *testing.T) {
	// S1's input values (1,2,3,4) encode and decode back exactly.
	for _, x := range []float64{1, 2, 3, 4} {
		s, err := fixedpoint.Encode(fixedpoint.Default, x)
		require.NoError(t, err)
		assert.Equal(t, x, fixedpoint.Decode(fixedpoint.Default, s.Elem))
	}
}
