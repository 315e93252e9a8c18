package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/Crys266/IoT-Project/internal/model"
)

func TestReadLineTimesOut(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	dev := NewStreamDevice("pipe", a)
	defer dev.Close()

	if _, err := dev.ReadLine(20 * time.Millisecond); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	go fmt.Fprint(b, "SAVE\n")
	line, err := dev.ReadLine(2 * time.Second)
	if err != nil || line != "SAVE\n" {
		t.Fatalf("line = %q, %v", line, err)
	}
}

func TestReadLineReportsEOF(t *testing.T) {
	a, b := net.Pipe()
	dev := NewStreamDevice("pipe", a)
	defer dev.Close()
	go func() {
		fmt.Fprint(b, "UP")
		b.Close()
	}()

	line, err := dev.ReadLine(2 * time.Second)
	if err != nil || line != "UP" {
		t.Fatalf("partial line = %q, %v", line, err)
	}
	if _, err := dev.ReadLine(2 * time.Second); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := dev.ReadLine(2 * time.Second); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after end, got %v", err)
	}
}

func TestGamepadForwardsParsedLines(t *testing.T) {
	a, b := net.Pipe()
	dev := NewStreamDevice("pipe", a)
	defer dev.Close()

	pad := NewGamepad(dev, "pad0", nil)
	out := make(chan model.InputEvent, 8)
	done := make(chan error, 1)
	go func() { done <- pad.Run(context.Background(), out) }()
	go func() {
		fmt.Fprint(b, "# calibration\nDOWN left\nWIGGLE\nSPEED 70\nTOGGLE detection\nUP\n")
		b.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("gamepad did not stop at end of stream")
	}
	close(out)

	var got []model.InputEvent
	for ev := range out {
		got = append(got, ev)
	}
	want := []model.InputKind{model.InputDirectionDown, model.InputSpeedSet, model.InputToggleEffect, model.InputDirectionUp}
	if len(got) != len(want) {
		t.Fatalf("events = %+v", got)
	}
	for i, ev := range got {
		if ev.Kind != want[i] || ev.Source != "pad0" {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
	if got[0].Direction != model.Left || got[1].Speed != 70 || got[2].Effect != model.EffectDetection {
		t.Fatalf("payloads = %+v", got)
	}
}

func TestGamepadStopsOnCancel(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	dev := NewStreamDevice("pipe", a)
	defer dev.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewGamepad(dev, "pad0", nil).Run(ctx, make(chan model.InputEvent)) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("gamepad ignored cancellation")
	}
}

func TestGPSReaderSkipsSentencesWithoutFix(t *testing.T) {
	a, b := net.Pipe()
	dev := NewStreamDevice("pipe", a)
	defer dev.Close()
	go func() {
		fmt.Fprint(b, "$GPGGA,123519,,,,,0,00,,,M,,M,,*66\r\n")
		fmt.Fprint(b, "garbage\r\n")
		fmt.Fprint(b, "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47\r\n")
		b.Close()
	}()

	var fixes []model.GPSFix
	if err := NewGPSReader(dev, nil).Run(context.Background(), func(f model.GPSFix) { fixes = append(fixes, f) }); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fixes) != 1 || !fixes[0].Available() {
		t.Fatalf("fixes = %+v", fixes)
	}
	if math.Abs(*fixes[0].Lat-48.1173) > 1e-4 || math.Abs(*fixes[0].Lon-11.516667) > 1e-4 {
		t.Fatalf("fix = %v, %v", *fixes[0].Lat, *fixes[0].Lon)
	}
}
