package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/stride/internal/walkgen"
	"github.com/okian/stride/pkg/logger"
)

// Default configuration constants.
const (
	defaultSteps    = 1000
	defaultCadence  = 2.0
	defaultBatch    = 500
	defaultTimeout  = 10 * time.Second
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9080", "Base URL of the service")
		steps   = flag.Int("steps", defaultSteps, "Footfalls to synthesize")
		cadence = flag.Float64("cadence", defaultCadence, "Steps per second")
		batch   = flag.Int("batch", defaultBatch, "Readings per request")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed    = flag.Int64("seed", 0, "Noise seed, 0 for random")
		reset   = flag.Bool("reset", true, "Reset the session before walking")
		output  = flag.String("output", "", "Write the generated trace to this JSON file")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		walkgen.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	_, err := walkgen.Run(ctx, &walkgen.Config{
		BaseURL:   *baseURL,
		Steps:     *steps,
		Cadence:   *cadence,
		BatchSize: *batch,
		Timeout:   *timeout,
		Seed:      *seed,
		Reset:     *reset,
		Output:    *output,
	})
	if err != nil {
		logger.Get().Error(ctx, "walk failed", logger.Error(err))
		cancel()
		stop()
		os.Exit(1)
	}
}
