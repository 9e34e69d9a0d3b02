// Command replay runs one fix acquisition cycle over a recorded NMEA log and
// prints what the location screen would show when the cycle ends.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -log testdata/drive.nmea \
//	  -accuracy 10 \
//	  -interval 1s
//
// Set MAPBOX_TOKEN (or put it in .env) to resolve the address.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/location-fix-service/internal/acquisition"
	httpadapter "github.com/couchcryptid/location-fix-service/internal/adapter/http"
	"github.com/couchcryptid/location-fix-service/internal/adapter/mapbox"
	"github.com/couchcryptid/location-fix-service/internal/adapter/nmea"
	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logPath := flag.String("log", "", "NMEA log file to replay (required)")
	accuracy := flag.Float64("accuracy", 10, "desired horizontal accuracy in meters")
	timeout := flag.Duration("timeout", 10*time.Second, "acquisition deadline")
	interval := flag.Duration("interval", 0, "delay between replayed epochs")
	uere := flag.Float64("uere", nmea.DefaultUERE, "meters of error per unit of HDOP")
	asJSON := flag.Bool("json", false, "print the full snapshot as JSON")
	verbose := flag.Bool("v", false, "log acquisition events to stderr")
	flag.Parse()

	if *logPath == "" {
		flag.Usage()
		return fmt.Errorf("-log is required")
	}
	_ = godotenv.Load()

	f, err := os.Open(*logPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	level := "error"
	if *verbose {
		level = "debug"
	}
	logger := observability.NewLogger(level, "text")
	metrics := observability.NewMetricsForTesting()

	var resolver domain.AddressResolver
	if token := os.Getenv("MAPBOX_TOKEN"); token != "" {
		resolver = mapbox.NewClient(token, 5*time.Second, 0, metrics, logger)
	}

	provider := nmea.NewReplay(filepath.Base(*logPath), f, *uere, *interval, nil, logger)
	settings := acquisition.DefaultSettings()
	settings.DesiredAccuracy = *accuracy
	settings.Timeout = *timeout
	machine := acquisition.New(provider, resolver, settings, logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+settings.ResolveTimeout)
	defer cancel()
	go func() { _ = machine.Run(ctx) }()

	updates, unsubscribe := machine.Subscribe()
	defer unsubscribe()
	machine.Start()

	final, err := awaitOutcome(ctx, updates)
	if err != nil {
		return err
	}

	view := httpadapter.NewView(final, domain.NewFormatter(time.Local))
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printView(view)
	return nil
}

// awaitOutcome waits for the cycle to end and any address lookup to settle.
func awaitOutcome(ctx context.Context, updates <-chan domain.AcquisitionState) (domain.AcquisitionState, error) {
	for {
		select {
		case <-ctx.Done():
			return domain.AcquisitionState{}, fmt.Errorf("acquisition did not finish: %w", ctx.Err())
		case s := <-updates:
			ended := s.Phase == domain.PhaseStopped || s.LastLocationError != nil
			if ended && !s.IsActive && !s.IsResolvingAddress {
				return s, nil
			}
		}
	}
}

func printView(v httpadapter.View) {
	st := v.Status
	if st.Message != "" {
		fmt.Println(st.Message)
	}
	if st.Latitude != "" {
		fmt.Printf("Latitude:  %s\n", st.Latitude)
		fmt.Printf("Longitude: %s\n", st.Longitude)
		fmt.Printf("Accuracy:  %.1f m\n", v.State.BestReading.HorizontalAccuracy)
		fmt.Printf("Address:   %s\n", st.Address)
		fmt.Printf("Date:      %s\n", v.FixDate)
	}
	fmt.Printf("Stopped:   %s\n", v.State.StopReason)
}
