package gc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/gc"
)

func toBits(v int64, n int) []bool {
	bits := make([]bool, n)
	u := uint64(v)
	for i := 0; i < n; i++ {
		bits[i] = (u>>uint(i))&1 == 1
	}
	return bits
}

func fromBits(bits []bool) int64 {
	var u uint64
	for i, b := range bits {
		if b {
			u |= 1 << uint(i)
		}
	}
	n := uint(len(bits))
	if bits[n-1] {
		u -= 1 << n
	}
	return int64(u)
}

func evalWithEvaluatorShare(t *testing.T, c *gc.Circuit, g *gc.GarbledCircuit, evaluatorBits []bool) []bool {
	t.Helper()
	labels := make([]gc.Label, len(evaluatorBits))
	for i, bit := range evaluatorBits {
		pair := g.EvaluatorInputPairs[i]
		if bit {
			labels[i] = pair[1]
		} else {
			labels[i] = pair[0]
		}
	}
	out, err := gc.Evaluate(c, g, labels)
	require.NoError(t, err)
	return out
}

func TestRippleAddReconstructsSharedValue(t *testing.T) {
	const bits = 8
	b := gc.NewBuilder()
	garblerBits := b.GarblerInputBits(toBits(5, bits))
	evalBits := b.EvaluatorInputs(bits)
	sum, _ := b.RippleAdd(garblerBits, evalBits)
	c := b.Build(sum)

	g, err := gc.Garble(c)
	require.NoError(t, err)

	out := evalWithEvaluatorShare(t, c, g, toBits(12, bits))
	require.Equal(t, int64(17), fromBits(out))
}

func TestTruncatedReLUScenarioS3(t *testing.T) {
	const bits = 61
	const truncBits = 3

	cases := []struct {
		name           string
		serverShare    int64
		evaluatorShare int64
		rPrime         int64
		want           int64
	}{
		{"negative input floors to rPrime", -8 << truncBits, 0, 7, 7},
		{"zero input stays rPrime", 0, 0, 11, 11},
		{"positive input passes truncated value plus rPrime", 8 << truncBits, 0, 3, 8 + 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			serverBits := toBits(tc.serverShare, bits)
			rPrimeBits := toBits(tc.rPrime, bits)

			c, err := gc.BuildTruncatedReLU(bits, truncBits, serverBits, rPrimeBits)
			require.NoError(t, err)

			g, err := gc.Garble(c)
			require.NoError(t, err)

			out := evalWithEvaluatorShare(t, c, g, toBits(tc.evaluatorShare, bits))
			require.Equal(t, tc.want, fromBits(out))
		})
	}
}

// TestTruncatedReLUReconstructsFullFieldShares exercises BuildTruncatedReLU
// at gc.FieldBits() width with additive shares that individually wrap the
// field's modulus, the way acg.RunServer actually draws them (uniform over
// the whole field, not confined to a small range near zero). A circuit that
// only reconstructed the low bits of server+evaluator, rather than the true
// value modulo p, would reconstruct garbage here even though the earlier,
// narrow-share S3 cases above would still pass.
func TestTruncatedReLUReconstructsFullFieldShares(t *testing.T) {
	const bits = 61
	const truncBits = 3
	p := field.Modulus

	bitsOf := func(v uint64) []bool {
		out := make([]bool, bits)
		for i := 0; i < bits; i++ {
			out[i] = (v>>uint(i))&1 == 1
		}
		return out
	}
	fromField := func(out []bool) uint64 {
		var u uint64
		for i, b := range out {
			if b {
				u |= 1 << uint(i)
			}
		}
		return u
	}

	cases := []struct {
		name        string
		value       int64 // the true pre-truncation shared activation
		rPrime      uint64
		wantNonzero bool
	}{
		{"positive value reconstructed from wrapping shares", 40, 9, true},
		{"negative value floors to rPrime despite wrapping shares", -40, 9, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var x uint64
			if tc.value >= 0 {
				x = uint64(tc.value)
			} else {
				x = p - uint64(-tc.value)
			}

			serverShare := uint64(123456789012345) % p
			evaluatorShare := (x + p - serverShare%p) % p

			serverBits := bitsOf(serverShare)
			rPrimeBits := bitsOf(tc.rPrime)

			c, err := gc.BuildTruncatedReLU(bits, truncBits, serverBits, rPrimeBits)
			require.NoError(t, err)

			g, err := gc.Garble(c)
			require.NoError(t, err)

			out := evalWithEvaluatorShare(t, c, g, bitsOf(evaluatorShare))
			got := fromField(out)

			if tc.wantNonzero {
				require.Equal(t, uint64(tc.value)>>truncBits+tc.rPrime, got)
			} else {
				require.Equal(t, tc.rPrime, got)
			}
		})
	}
}

func TestChunkSplitsAtExactBoundary(t *testing.T) {
	circuits := make([]*gc.GarbledCircuit, gc.ChunkSize+1)
	for i := range circuits {
		circuits[i] = &gc.GarbledCircuit{}
	}
	chunks := gc.Chunk(circuits)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], gc.ChunkSize)
	require.Len(t, chunks[1], 1)
}

func TestChunkEmpty(t *testing.T) {
	require.Nil(t, gc.Chunk(nil))
}
