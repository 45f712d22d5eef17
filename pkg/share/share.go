// Package share implements additive and authenticated-additive shares as
// first-class, immutable value types (spec §9: "Authenticated shares as
// first-class sum types"). Every operation takes shares by value and
// returns a new share; nothing here mutates in place, which is what keeps
// the data-parallel evaluation of a whole tensor of shares safe to run
// across the worker pool in pkg/concurrency without synchronization.
package share

import "github.com/luxfi/secnn/pkg/field"

// Additive is one party's half of an additive sharing of a value x in F:
// holder_a.Value + holder_b.Value == x.
type Additive struct {
	Value field.Elem
}

// AddA returns the local sum of two additive shares (no communication).
func (s Additive) AddA(o Additive) Additive {
	return Additive{Value: s.Value.Add(o.Value)}
}

// SubA returns the local difference of two additive shares.
func (s Additive) SubA(o Additive) Additive {
	return Additive{Value: s.Value.Sub(o.Value)}
}

// MulConst scales an additive share by a public constant (no communication).
func (s Additive) MulConst(c field.Elem) Additive {
	return Additive{Value: s.Value.Mul(c)}
}

// Auth is an authenticated additive share of x under a session-wide MAC key
// α, the pair of additive shares (of x and of α·x) described in spec §3.
// The invariant it upholds — holder alone cannot recover x nor forge a
// different x' with a matching α·x' — is enforced by never exposing a
// constructor that sets Value without also setting MAC from a real
// authentication step; every Auth in this codebase originates from Tag,
// from ShareOwn/ShareTheirs (mpc/online), from an ACG reply (pkg/acg), or
// from one of the linear maps below.
type Auth struct {
	Value Additive
	MAC   Additive
}

// Add returns the local sum of two authenticated shares; both the value and
// MAC components transform identically, so no new authentication step is
// required (spec §4.5 add()).
func (s Auth) Add(o Auth) Auth {
	return Auth{Value: s.Value.AddA(o.Value), MAC: s.MAC.AddA(o.MAC)}
}

// Sub returns the local difference of two authenticated shares.
func (s Auth) Sub(o Auth) Auth {
	return Auth{Value: s.Value.SubA(o.Value), MAC: s.MAC.SubA(o.MAC)}
}

// MulConst scales an authenticated share by a public constant c; again both
// components scale identically (spec §4.5 mul_const()).
func (s Auth) MulConst(c field.Elem) Auth {
	return Auth{Value: s.Value.MulConst(c), MAC: s.MAC.MulConst(c)}
}

// AddConst adds valueDelta to the value share and macDelta to the MAC share.
// Both parties hold all of α (pkg/mpc), so a public constant c is added by
// exactly one party with valueDelta = c and macDelta = α·c, and the other
// party adds nothing (as online.Session.Mul's leader does).
func (s Auth) AddConst(valueDelta field.Elem, macDelta field.Elem) Auth {
	return Auth{
		Value: Additive{Value: s.Value.Value.Add(valueDelta)},
		MAC:   Additive{Value: s.MAC.Value.Add(macDelta)},
	}
}

// Neg returns the authenticated share of -x.
func (s Auth) Neg() Auth {
	return Auth{Value: Additive{Value: s.Value.Value.Neg()}, MAC: Additive{Value: s.MAC.Value.Neg()}}
}

// Tag locally authenticates one party's own additive share v under the
// session-wide MAC key alpha, producing that party's half of an Auth pair.
// Combining it with the counterpart's Tag of its own complementary share
// (computed against the same alpha) yields a valid authenticated share:
// the value halves sum to x, the MAC halves sum to alpha*x, and neither
// party ever needed to learn the other's half to compute its own. This
// only typechecks as "authentication" because alpha never leaves either
// party's process in the clear (see pkg/mpc's session-start handoff); it
// is the one place alpha is used directly rather than through an
// already-authenticated share.
func Tag(alpha, v field.Elem) Auth {
	return Auth{Value: Additive{Value: v}, MAC: Additive{Value: alpha.Mul(v)}}
}

// Reconstruct combines two additive shares into the value they share,
// without any MAC check. pkg/mpc/online.Open performs the same sum inline
// and follows it with a MAC verification.
func Reconstruct(a, b Additive) field.Elem {
	return a.Value.Add(b.Value)
}
