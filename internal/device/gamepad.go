package device

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
)

// pollInterval bounds how long a read blocks before ctx is checked again.
const pollInterval = 250 * time.Millisecond

// Gamepad turns the line protocol of a serial gamepad into input events.
type Gamepad struct {
	dev    Device
	source string
	logger *slog.Logger
}

// NewGamepad reads actions from dev. source tags the produced events.
func NewGamepad(dev Device, source string, logger *slog.Logger) *Gamepad {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gamepad{dev: dev, source: source, logger: logger}
}

// Run forwards parsed actions to out until ctx is done or the device ends.
// Malformed lines are logged and skipped. Run does not close out.
func (g *Gamepad) Run(ctx context.Context, out chan<- model.InputEvent) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := g.dev.ReadLine(pollInterval)
		switch {
		case errors.Is(err, ErrReadTimeout):
			continue
		case errors.Is(err, io.EOF):
			g.logger.Info("gamepad stream ended", "source", g.source)
			return nil
		case err != nil:
			return err
		}

		ev, err := parser.ParseInputLine(line)
		if errors.Is(err, parser.ErrEmptyLine) {
			continue
		}
		if err != nil {
			g.logger.Warn("bad gamepad line", "line", strings.TrimSpace(line), "error", err)
			continue
		}
		ev.Source = g.source
		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}
