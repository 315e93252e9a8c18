package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
)

// GPSReader streams fixes from an NMEA receiver.
type GPSReader struct {
	dev    Device
	logger *slog.Logger
}

// NewGPSReader reads NMEA sentences from dev.
func NewGPSReader(dev Device, logger *slog.Logger) *GPSReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &GPSReader{dev: dev, logger: logger}
}

// Run calls fn for every sentence carrying a fix until ctx is done or the device ends.
func (g *GPSReader) Run(ctx context.Context, fn func(model.GPSFix)) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := g.dev.ReadLine(pollInterval)
		switch {
		case errors.Is(err, ErrReadTimeout):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		fix, err := parser.ParseNMEASentence(line)
		if err != nil {
			if !errors.Is(err, parser.ErrNoFix) {
				g.logger.Debug("skipping nmea line", "error", err)
			}
			continue
		}
		fn(fix)
	}
}

// SimulateNMEA writes GGA sentences wandering around (lat, lon) every interval
// until ctx is done. Useful to feed a pseudo terminal when no receiver is attached.
func SimulateNMEA(ctx context.Context, dev Device, lat, lon float64, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			la := lat + (rand.Float64()-0.5)*0.001
			lo := lon + (rand.Float64()-0.5)*0.001
			latStr, latDir := parser.ToNMEACoord(la, true)
			lonStr, lonDir := parser.ToNMEACoord(lo, false)
			sentence := fmt.Sprintf("$GPGGA,%s,%s,%s,%s,%s,1,08,0.9,10.0,M,0.0,M,,*47",
				now.UTC().Format("150405.00"), latStr, latDir, lonStr, lonDir)
			if err := dev.WriteLine(sentence); err != nil {
				return fmt.Errorf("write nmea: %w", err)
			}
		}
	}
}
