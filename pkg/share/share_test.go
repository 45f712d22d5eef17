package share_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luxfi/secnn/pkg/field"
	"github.com/luxfi/secnn/pkg/share"
)

func authShareOf(x, alpha field.Elem, aValue, aMAC field.Elem) (share.Auth, share.Auth) {
	bValue := x.Sub(aValue)
	bMAC := alpha.Mul(x).Sub(aMAC)
	a := share.Auth{Value: share.Additive{Value: aValue}, MAC: share.Additive{Value: aMAC}}
	b := share.Auth{Value: share.Additive{Value: bValue}, MAC: share.Additive{Value: bMAC}}
	return a, b
}

func TestAuthAddPreservesMACInvariant(t *testing.T) {
	alpha := field.FromUint64(77)
	x := field.FromUint64(5)
	y := field.FromUint64(9)

	ax, bx := authShareOf(x, alpha, field.FromUint64(123), field.FromUint64(456))
	ay, by := authShareOf(y, alpha, field.FromUint64(321), field.FromUint64(654))

	aSum := ax.Add(ay)
	bSum := bx.Add(by)

	gotValue := share.Reconstruct(aSum.Value, bSum.Value)
	gotMAC := share.Reconstruct(aSum.MAC, bSum.MAC)

	assert.True(t, gotValue.Equal(x.Add(y)))
	assert.True(t, gotMAC.Equal(alpha.Mul(x.Add(y))))
}

func TestAuthMulConst(t *testing.T) {
	alpha := field.FromUint64(13)
	x := field.FromUint64(7)
	c := field.FromUint64(4)

	a, b := authShareOf(x, alpha, field.FromUint64(1), field.FromUint64(2))
	aScaled := a.MulConst(c)
	bScaled := b.MulConst(c)

	gotValue := share.Reconstruct(aScaled.Value, bScaled.Value)
	gotMAC := share.Reconstruct(aScaled.MAC, bScaled.MAC)

	assert.True(t, gotValue.Equal(x.Mul(c)))
	assert.True(t, gotMAC.Equal(alpha.Mul(x.Mul(c))))
}
