// Package control turns operator input into the rover command stream.
//
// The controller is Idle or Active(d). While a direction is active it is resent
// on a fixed cadence as a heartbeat; releasing sends exactly one stop.
package control

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Crys266/IoT-Project/internal/clock"
	"github.com/Crys266/IoT-Project/internal/model"
	"github.com/Crys266/IoT-Project/internal/parser"
)

// ErrInvalidDirection is returned by OnDirectionStart for anything but the four movements.
var ErrInvalidDirection = errors.New("invalid direction")

// Sender delivers outbound envelopes. It reports false when the envelope was dropped.
type Sender interface {
	Send(env model.Outbound) bool
}

// Options configures a Controller.
type Options struct {
	RepeatInterval time.Duration
	SpeedMin       int
	SpeedMax       int
	Clock          clock.Clock
	Logger         *slog.Logger
}

// Controller is the command state machine. All methods are safe for concurrent use
// and return without waiting on the network.
type Controller struct {
	mu       sync.Mutex
	sender   Sender
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	min, max int

	active   model.Direction // "" when idle
	repeat   clock.Task
	gen      uint64 // bumped on every arm/cancel; stale ticks compare against it
	speed    int
	speedSet bool
}

// New returns an idle controller sending through s.
func New(s Sender, opts Options) *Controller {
	if opts.RepeatInterval <= 0 {
		opts.RepeatInterval = model.DefaultRepeatInterval * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SpeedMax < opts.SpeedMin {
		opts.SpeedMin, opts.SpeedMax = opts.SpeedMax, opts.SpeedMin
	}
	return &Controller{
		sender:   s,
		clock:    opts.Clock,
		logger:   opts.Logger,
		interval: opts.RepeatInterval,
		min:      opts.SpeedMin,
		max:      opts.SpeedMax,
		speed:    opts.SpeedMin,
	}
}

// State is a point-in-time view of the controller for observers.
type State struct {
	Direction model.Direction // "" when idle
	Speed     int
}

// Snapshot returns the current State.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Direction: c.active, Speed: c.speed}
}

// Active returns the active direction and whether one is active.
func (c *Controller) Active() (model.Direction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// Speed returns the current speed level.
func (c *Controller) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetInitialSpeed sets the level without sending anything. Command envelopes
// carry it from then on.
func (c *Controller) SetInitialSpeed(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = c.clamp(level)
	c.speedSet = true
}

// OnDirectionStart activates d. Starting the already active direction is a no-op;
// starting another one replaces the repeat task before sending.
func (c *Controller) OnDirectionStart(d model.Direction) error {
	if !d.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == d {
		return nil
	}
	c.cancelRepeatLocked()
	c.active = d
	c.sendLocked(d)
	c.armRepeatLocked(d)
	c.logger.Debug("direction start", "direction", d)
	return nil
}

// OnDirectionStop releases whatever is active and always sends one stop.
func (c *Controller) OnDirectionStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.active
	c.cancelRepeatLocked()
	c.active = ""
	c.sendLocked(model.Stop)
	c.logger.Debug("direction stop", "previous", prev)
}

// OnSpeedChange sets a new level, clamped to the configured range, and sends it
// immediately when it differs from the current one. The repeat task is untouched.
func (c *Controller) OnSpeedChange(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	level = c.clamp(level)
	if c.speedSet && level == c.speed {
		return
	}
	c.speed = level
	c.speedSet = true
	dir := c.active
	if dir == "" {
		dir = model.Stop
	}
	c.sender.Send(model.NewControlCommand(parser.FormatSpeedCommand(dir, level)))
}

// StepSpeed changes the level by delta.
func (c *Controller) StepSpeed(delta int) {
	c.mu.Lock()
	next := c.speed + delta
	c.mu.Unlock()
	c.OnSpeedChange(next)
}

// Close cancels the repeat task without sending anything.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelRepeatLocked()
	c.active = ""
}

func (c *Controller) sendLocked(d model.Direction) {
	var speed *int
	if c.speedSet {
		s := c.speed
		speed = &s
	}
	c.sender.Send(model.NewCommand(d, speed, c.clock.Now()))
}

func (c *Controller) armRepeatLocked(d model.Direction) {
	c.gen++
	gen := c.gen
	c.repeat = c.clock.Every(c.interval, func() { c.tick(gen, d) })
}

func (c *Controller) cancelRepeatLocked() {
	c.gen++
	if c.repeat != nil {
		c.repeat.Stop()
		c.repeat = nil
	}
}

func (c *Controller) tick(gen uint64, d model.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.active != d {
		return
	}
	c.sendLocked(d)
}

func (c *Controller) clamp(level int) int {
	if level < c.min {
		return c.min
	}
	if level > c.max {
		return c.max
	}
	return level
}
