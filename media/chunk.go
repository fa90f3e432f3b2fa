package media

import "time"

// Chunk is one producer-emitted stream fragment. Chunks are never reordered
// or dropped: reassembly correctness depends on call-order fidelity.
type Chunk struct {
	Data      []byte
	Duration  time.Duration
	Extension string
}
