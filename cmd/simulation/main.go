// Rover controller simulator: serves the dashboard websocket protocol with generated
// video frames and sensor readings. Use this for local testing without the rover.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Crys266/IoT-Project/internal/device"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
	"github.com/Crys266/IoT-Project/internal/simulator"
	"github.com/Crys266/IoT-Project/internal/util"
)

func main() {
	util.SetupLogger()

	addr := flag.String("addr", ":8765", "listen address")
	format := flag.String("format", "json", "wire format: json or msgpack")
	frameMs := flag.Int("frame-interval", 100, "ms between video frames (0 disables)")
	sensorMs := flag.Int("sensor-interval", 2000, "ms between sensor updates (0 disables)")
	width := flag.Int("width", 320, "generated frame width")
	height := flag.Int("height", 240, "generated frame height")
	gpsDev := flag.String("gps", "", "optional NMEA serial device feeding the simulated position")
	nmeaOut := flag.String("nmea-out", "", "optional serial device to write simulated NMEA sentences into")
	baud := flag.Int("baud", 9600, "GPS baud rate")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	lvl, err := util.ParseLevel(*level)
	if err != nil {
		log.Fatalf("[Sim] %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	codec, err := parser.ForFormat(*format)
	if err != nil {
		log.Fatalf("[Sim] %v", err)
	}

	sim := simulator.New(simulator.Options{
		Addr:           *addr,
		Codec:          codec,
		FrameInterval:  time.Duration(*frameMs) * time.Millisecond,
		SensorInterval: time.Duration(*sensorMs) * time.Millisecond,
		FrameWidth:     *width,
		FrameHeight:    *height,
		Logger:         logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *gpsDev != "" {
		dev, err := device.NewSerialDevice(*gpsDev, *baud)
		if err != nil {
			log.Fatalf("[Sim] open gps: %v", err)
		}
		defer dev.Close()
		go func() {
			err := device.NewGPSReader(dev, logger.With("component", "gps")).Run(ctx, func(fix model.GPSFix) {
				sim.SetGPS(fix)
			})
			if err != nil {
				logger.Error("gps reader stopped", "error", err)
			}
		}()
	}

	if *nmeaOut != "" {
		out, err := device.NewSerialDevice(*nmeaOut, *baud)
		if err != nil {
			log.Fatalf("[Sim] open nmea output: %v", err)
		}
		defer out.Close()
		go func() {
			if err := device.SimulateNMEA(ctx, out, 45.4642, 9.19, time.Second); err != nil {
				logger.Error("nmea writer stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := sim.Start(); err != nil {
			logger.Error("simulator server", "error", err)
			cancel()
		}
	}()
	log.Printf("[Sim] controller simulator on %s (%s)", *addr, codec.Name())

	sim.Run(ctx)
	sim.Stop()
	log.Println("[Sim] stopped")
}
