// Package main is the terminal rover dashboard.
// It loads the configuration, builds the session and runs the terminal UI on top
// of it, with the optional browser preview and serial gamepad alongside.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Crys266/IoT-Project/internal/core"
	"github.com/Crys266/IoT-Project/internal/device"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/preview"
	"github.com/Crys266/IoT-Project/internal/tui"
	"github.com/Crys266/IoT-Project/internal/util"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	util.SetupLogger()

	cfgPath := flag.String("c", "configs/config.yml", "path to configuration file")
	endpoint := flag.String("endpoint", "", "override connection.endpoint")
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("[Main] load config: %v", err)
	}
	if *endpoint != "" {
		cfg.Connection.Endpoint = *endpoint
	}

	// The UI owns the terminal; logs go to the configured file only.
	logs := util.NewLogManager()
	if err := logs.Configure(cfg.Logging, nil); err != nil {
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

	events := make(chan model.InputEvent, 64)
	sub := sess.Bus.Subscribe(tui.Topics()...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx, events); err != nil {
			logs.Logger("main").Error("session stopped", "error", err)
		}
	}()

	var srv *preview.Server
	if cfg.Preview.Addr != "" {
		srv = startPreview(sess, cfg.Preview.Addr, logs)
	}
	if cfg.Gamepad.Device != "" {
		startGamepad(ctx, &wg, cfg.Gamepad, events, logs)
	}

	opts := tui.Options{
		Events:     events,
		Telemetry:  sess.Telemetry,
		Frames:     sess.Frames,
		Endpoint:   cfg.Connection.Endpoint,
		Speed:      cfg.Control.SpeedInitial,
		SpeedStep:  cfg.Control.SpeedStep,
		KeyRelease: cfg.Control.KeyRelease(),
		Context:    ctx,
		Logger:     logs.Logger("tui"),
	}
	if sess.Gallery != nil {
		opts.Gallery = sess.Gallery
	}
	p := tea.NewProgram(tui.New(sub, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logs.Logger("main").Error("terminal ui", "error", err)
	}

	// Keep draining until the unsubscribe lands so publishers never block.
	go func() {
		for range sub {
		}
	}()
	sess.Bus.Unsubscribe(sub)

	cancel()
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}
	wg.Wait()
}

func startPreview(sess *core.Session, addr string, logs *util.LogManager) *preview.Server {
	srv := preview.New(preview.Sources{
		Frames:    sess.Frames,
		Telemetry: sess.Telemetry,
		Status:    sess.Status,
		Channel:   sess.Conn,
	}, logs.Logger("preview"))
	go func() {
		if err := srv.Start(addr); err != nil {
			logs.Logger("preview").Error("preview stopped", "error", err)
		}
	}()
	return srv
}

func startGamepad(ctx context.Context, wg *sync.WaitGroup, cfg model.GamepadConfig, events chan<- model.InputEvent, logs *util.LogManager) {
	logger := logs.Logger("gamepad")
	dev, err := device.NewSerialDevice(cfg.Device, cfg.Baud)
	if err != nil {
		logger.Error("gamepad disabled", "device", cfg.Device, "error", err)
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer dev.Close()
		if err := device.NewGamepad(dev, "gamepad", logger).Run(ctx, events); err != nil {
			logger.Error("gamepad stopped", "error", err)
		}
	}()
}
