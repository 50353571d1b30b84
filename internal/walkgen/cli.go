package walkgen

import "os"

// ShowHelp prints usage information for the walk generator.
func ShowHelp() {
	os.Stdout.WriteString(`Stride Walk Generator
=====================

Synthesizes accelerometer readings for a walk, posts them to a running
tracker and verifies the step count it reports.

Usage:
  go run ./cmd/walkgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -steps int
        Footfalls to synthesize (default 1000)
  -cadence float
        Steps per second, at most 3.5 (default 2)
  -batch int
        Readings per request (default 500)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed int
        Noise seed, 0 for random (default 0)
  -reset
        Reset the session before walking (default true)
  -output string
        Write the generated trace to this JSON file
  -help
        Show this help message

Examples:
  # Walk to the first milestone
  go run ./cmd/walkgen -steps 1000

  # Slow walk against another instance
  go run ./cmd/walkgen -steps 250 -cadence 1.5 -url http://localhost:8080
`)
}
