// Package gc implements the garbled-boolean-circuit engine the truncated
// ReLU activation (spec §4.6) runs on: a minimal two-gate (XOR, AND)
// free-XOR garbling scheme with point-and-permute row selection, enough to
// compose a ripple-carry reconstruction, sign-mux, truncation, and
// re-masking circuit per activation. The lattice and Paillier AHE backends
// in pkg/ahe are the example corpus's contribution to this repository's
// crypto stack; garbled-circuit construction itself has no corpus-supplied
// library (none of the retrieved repositories implement Yao's protocol), so
// this package is the one place the implementation necessarily falls back
// to a from-scratch construction over crypto-grade primitives
// (crypto/aes-equivalent strength via blake3 hashing) rather than an
// imported scheme.
package gc
