package walkgen

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/okian/stride/internal/domain/motion"
)

// Signal shape of a synthesized footfall.
const (
	spikeZ     = 15.0
	spikeNoise = 1.0
	restNoise  = 0.3
)

// Batch is one POST /samples body.
type Batch struct {
	BatchID string           `json:"batch_id"`
	Samples []motion.Reading `json:"samples"`
}

// Generate synthesizes steps footfalls at cadence steps per second. Each
// footfall is a vertical spike followed by resting samples every 100ms,
// so a detector with the default threshold counts exactly steps.
func Generate(rng *rand.Rand, start time.Time, steps int, cadence float64) []motion.Reading {
	period := time.Duration(float64(time.Second) / cadence)
	out := make([]motion.Reading, 0, steps*int(period/sampleInterval+1))

	noise := func(amp float64) float64 { return (rng.Float64()*2 - 1) * amp }

	for i := 0; i < steps; i++ {
		at := start.Add(time.Duration(i) * period)
		out = append(out, motion.NewReading(noise(restNoise), noise(restNoise), spikeZ+noise(spikeNoise), at))
		for t := at.Add(sampleInterval); t.Before(at.Add(period)); t = t.Add(sampleInterval) {
			out = append(out, motion.NewReading(noise(restNoise), noise(restNoise), noise(restNoise), t))
		}
	}
	return out
}

// Split cuts readings into batches of at most size, each with a fresh ID.
func Split(readings []motion.Reading, size int) []Batch {
	batches := make([]Batch, 0, (len(readings)+size-1)/size)
	for start := 0; start < len(readings); start += size {
		end := min(start+size, len(readings))
		batches = append(batches, Batch{BatchID: uuid.NewString(), Samples: readings[start:end]})
	}
	return batches
}
