package gc

// ChunkSize is the number of garbled circuits batched into one wire message
// during the garbling phase, confirmed against the original MUSE
// implementation's garbling benchmark (experiments/src/latency/server.rs),
// which sends ReLU circuits in fixed groups of this size rather than one
// message per activation.
const ChunkSize = 8192

// Chunk splits circuits into groups of at most ChunkSize, preserving order,
// for delivery as separate wire messages.
func Chunk(circuits []*GarbledCircuit) [][]*GarbledCircuit {
	if len(circuits) == 0 {
		return nil
	}
	var chunks [][]*GarbledCircuit
	for start := 0; start < len(circuits); start += ChunkSize {
		end := start + ChunkSize
		if end > len(circuits) {
			end = len(circuits)
		}
		chunks = append(chunks, circuits[start:end])
	}
	return chunks
}
