// Package render decodes the inbound live video feed and presents it on a
// fixed-size surface. Frames are never queued: the newest frame wins.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // frames are JPEG stills
	_ "image/png"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
)

// Stats are the renderer counters. Received counts every presented payload,
// including ones that later fail to decode or are overwritten before decoding.
type Stats struct {
	Received uint64 `json:"received"`
	Rendered uint64 `json:"rendered"`
	Failed   uint64 `json:"failed"`
	Skipped  uint64 `json:"skipped"`
}

// FrameInfo describes a frame that reached the surface.
type FrameInfo struct {
	Seq        uint64
	SourceSize image.Point
	At         time.Time
}

// Renderer owns the display surface.
type Renderer struct {
	width, height int
	logger        *slog.Logger

	inboxMu sync.Mutex
	inbox   string
	pending bool
	wake    chan struct{}

	received atomic.Uint64
	skipped  atomic.Uint64

	surfMu   sync.RWMutex
	surface  *image.RGBA
	info     FrameInfo
	rendered uint64
	failed   uint64
	onFrame  []func(FrameInfo)
}

// New returns a renderer for a width x height surface.
func New(width, height int, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		width:  width,
		height: height,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// OnFrame registers fn to be called after each successful render.
func (r *Renderer) OnFrame(fn func(FrameInfo)) {
	r.surfMu.Lock()
	defer r.surfMu.Unlock()
	r.onFrame = append(r.onFrame, fn)
}

// Present hands one encoded frame to the renderer. It never blocks; a frame
// still waiting to be decoded is replaced.
func (r *Renderer) Present(encoded string) {
	r.received.Add(1)
	r.inboxMu.Lock()
	if r.pending {
		r.skipped.Add(1)
	}
	r.inbox = encoded
	r.pending = true
	r.inboxMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run decodes presented frames until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
			r.renderPending()
		}
	}
}

// renderPending decodes the newest pending frame, if any, onto a fresh surface.
func (r *Renderer) renderPending() bool {
	r.inboxMu.Lock()
	if !r.pending {
		r.inboxMu.Unlock()
		return false
	}
	payload := r.inbox
	r.inbox, r.pending = "", false
	r.inboxMu.Unlock()

	src, err := decodeFrame(payload)
	if err != nil {
		r.surfMu.Lock()
		r.failed++
		r.surfMu.Unlock()
		r.logger.Debug("frame dropped", "error", err)
		return false
	}

	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	r.surfMu.Lock()
	r.surface = dst
	r.rendered++
	r.info = FrameInfo{Seq: r.rendered, SourceSize: src.Bounds().Size(), At: time.Now()}
	info := r.info
	observers := slices.Clone(r.onFrame)
	r.surfMu.Unlock()

	for _, fn := range observers {
		fn(info)
	}
	return true
}

// Snapshot returns the current surface, or nil before the first good frame.
// Each render allocates a new surface, so the returned image is never written again.
func (r *Renderer) Snapshot() (*image.RGBA, FrameInfo) {
	r.surfMu.RLock()
	defer r.surfMu.RUnlock()
	return r.surface, r.info
}

// Stats returns the counters.
func (r *Renderer) Stats() Stats {
	r.surfMu.RLock()
	defer r.surfMu.RUnlock()
	return Stats{
		Received: r.received.Load(),
		Rendered: r.rendered,
		Failed:   r.failed,
		Skipped:  r.skipped.Load(),
	}
}

// Size returns the surface dimensions.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

var errEmptyFrame = errors.New("empty frame")

func decodeFrame(payload string) (image.Image, error) {
	// tolerate data URLs ("data:image/jpeg;base64,...")
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	if payload == "" {
		return nil, errEmptyFrame
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	return img, nil
}
