// Package main runs a dashboard session without a terminal UI: the serial gamepad
// drives the rover, the preview server shows the feed and status goes to the log.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Crys266/IoT-Project/internal/core"
	"github.com/Crys266/IoT-Project/internal/device"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/preview"
	"github.com/Crys266/IoT-Project/internal/util"
)

func main() {
	util.SetupLogger()

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	addr := flag.String("preview", "", "preview listen address (overrides preview.addr)")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("[Main] load config: %v", err)
	}
	if *addr != "" {
		cfg.Preview.Addr = *addr
	}
	if cfg.Preview.Addr == "" {
		cfg.Preview.Addr = ":8080"
	}
	util.Info("using config %s, controller %s", *cfgPath, cfg.Connection.Endpoint)

	logs := util.NewLogManager()
	if err := logs.Configure(cfg.Logging, os.Stderr); err != nil {
		log.Fatalf("[Main] configure logging: %v", err)
	}
	defer logs.Close()

	sess, err := core.NewSession(cfg, core.SessionOptions{Logs: logs})
	if err != nil {
		log.Fatalf("[Main] build session: %v", err)
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := preview.New(preview.Sources{
		Frames:    sess.Frames,
		Telemetry: sess.Telemetry,
		Status:    sess.Status,
		Channel:   sess.Conn,
	}, logs.Logger("preview"))
	go func() {
		if err := srv.Start(cfg.Preview.Addr); err != nil {
			util.Error("preview: %v", err)
			cancel()
		}
	}()

	events := make(chan model.InputEvent, 64)
	if cfg.Gamepad.Device != "" {
		dev, err := device.NewSerialDevice(cfg.Gamepad.Device, cfg.Gamepad.Baud)
		if err != nil {
			log.Fatalf("[Main] open gamepad: %v", err)
		}
		defer dev.Close()
		go func() {
			if err := device.NewGamepad(dev, "gamepad", logs.Logger("gamepad")).Run(ctx, events); err != nil {
				util.Error("gamepad: %v", err)
			}
		}()
	} else {
		util.Info("no gamepad configured, preview only")
	}

	if err := sess.Run(ctx, events); err != nil {
		log.Fatalf("[Main] session: %v", err)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	util.Info("session stopped cleanly")
}
