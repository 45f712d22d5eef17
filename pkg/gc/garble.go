package gc

import "fmt"

// GarbledCircuit is the output of garbling a Circuit: a table of encrypted
// rows for every AND gate, the garbler's own revealed input labels, the
// 0/1 label pair for every evaluator input (to be delivered one per bit via
// CDS/input-auth or the OT primitive in pkg/ot), and the decoding data for
// the output wires.
type GarbledCircuit struct {
	NumWires int
	Gates    []Gate
	Tweak    []byte

	// Tables is indexed by a gate's output wire id; present only for AND
	// gates. Row selection at evaluation time uses the point-and-permute
	// color bits of the two input labels the evaluator actually holds.
	Tables map[int][4]Label

	GarblerInputLabels  []Label
	EvaluatorInputPairs [][2]Label

	OutputWires     []int
	OutputZeroLabel []Label
}

// Garble produces a fresh garbling of c under a random global free-XOR
// offset. Every call yields an independent circuit instance even for the
// same Circuit structure, matching spec §4.6's "a fresh circuit per
// activation, never reused across evaluations."
func Garble(c *Circuit) (*GarbledCircuit, error) {
	R, err := randomLabel()
	if err != nil {
		return nil, fmt.Errorf("gc: sample free-xor offset: %w", err)
	}
	R[15] |= 1 // global offset must have odd parity for point-and-permute

	tweak, err := randomLabel()
	if err != nil {
		return nil, fmt.Errorf("gc: sample tweak: %w", err)
	}

	wire0 := make([]Label, c.NumWires)
	assigned := make([]bool, c.NumWires)
	for _, w := range c.GarblerWires {
		l, err := randomLabel()
		if err != nil {
			return nil, err
		}
		wire0[w], assigned[w] = l, true
	}
	for _, w := range c.EvaluatorWires {
		l, err := randomLabel()
		if err != nil {
			return nil, err
		}
		wire0[w], assigned[w] = l, true
	}

	tables := make(map[int][4]Label)
	for _, g := range c.Gates {
		if !assigned[g.A] || !assigned[g.B] {
			return nil, fmt.Errorf("gc: gate references unassigned wire")
		}
		switch g.Type {
		case GateXOR:
			wire0[g.Output] = wire0[g.A].xor(wire0[g.B])
		case GateAND:
			out0, err := randomLabel()
			if err != nil {
				return nil, err
			}
			wire0[g.Output] = out0
			out1 := out0.xor(R)

			a0, a1 := wire0[g.A], wire0[g.A].xor(R)
			b0, b1 := wire0[g.B], wire0[g.B].xor(R)

			var row [4]Label
			for va := 0; va < 2; va++ {
				for vb := 0; vb < 2; vb++ {
					la, lb := a0, b0
					if va == 1 {
						la = a1
					}
					if vb == 1 {
						lb = b1
					}
					outLabel := out0
					if va == 1 && vb == 1 {
						outLabel = out1
					}
					pad := hashLabels(tweak[:], g.Output, la, lb)
					cipher := pad.xor(outLabel)
					row[la.color()<<1|lb.color()] = cipher
				}
			}
			tables[g.Output] = row
		default:
			return nil, fmt.Errorf("gc: unknown gate type %d", g.Type)
		}
		assigned[g.Output] = true
	}

	garblerLabels := make([]Label, len(c.GarblerWires))
	for i, w := range c.GarblerWires {
		garblerLabels[i] = wire0[w]
		if c.GarblerValues[i] {
			garblerLabels[i] = garblerLabels[i].xor(R)
		}
	}

	evalPairs := make([][2]Label, len(c.EvaluatorWires))
	for i, w := range c.EvaluatorWires {
		evalPairs[i] = [2]Label{wire0[w], wire0[w].xor(R)}
	}

	outZero := make([]Label, len(c.OutputWires))
	for i, w := range c.OutputWires {
		outZero[i] = wire0[w]
	}

	return &GarbledCircuit{
		NumWires:            c.NumWires,
		Gates:               c.Gates,
		Tweak:               tweak[:],
		Tables:              tables,
		GarblerInputLabels:  garblerLabels,
		EvaluatorInputPairs: evalPairs,
		OutputWires:         c.OutputWires,
		OutputZeroLabel:     outZero,
	}, nil
}
