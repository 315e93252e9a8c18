// Package device implements SerialDevice using go.bug.st/serial,
// which provides real serial communication support for gamepads and GPS receivers.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

type lineResult struct {
	line string
	err  error
}

// SerialDevice implements Device over any byte stream. A single reader goroutine
// owns the stream, so a timed-out ReadLine never races the next one.
type SerialDevice struct {
	name  string
	rwc   io.ReadWriteCloser
	lines chan lineResult

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewSerialDevice creates and opens a serial device with the given path and baudrate.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return NewStreamDevice(dev, p), nil
}

// NewStreamDevice wraps an already open stream, e.g. a pseudo terminal or a pipe.
func NewStreamDevice(name string, rwc io.ReadWriteCloser) *SerialDevice {
	d := &SerialDevice{name: name, rwc: rwc, lines: make(chan lineResult, 16)}
	go d.readLoop()
	return d
}

// Name returns the device path.
func (d *SerialDevice) Name() string { return d.name }

func (d *SerialDevice) readLoop() {
	defer close(d.lines)
	r := bufio.NewReader(d.rwc)
	for {
		line, err := r.ReadString('\n')
		if err == nil {
			d.lines <- lineResult{line: line}
			continue
		}
		if line != "" && errors.Is(err, io.EOF) {
			d.lines <- lineResult{line: line}
		}
		d.lines <- lineResult{err: err}
		return
	}
}

// ReadLine reads a single line from the device, blocking until newline or timeout.
// After the stream ends it returns io.EOF.
func (d *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	var after <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		after = t.C
	}
	select {
	case res, ok := <-d.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	case <-after:
		return "", ErrReadTimeout
	}
}

// WriteLine writes a single line followed by '\n' to the device.
func (d *SerialDevice) WriteLine(line string) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	_, err := d.rwc.Write(append([]byte(line), '\n'))
	return err
}

// Close closes the underlying stream; the reader goroutine ends with it.
func (d *SerialDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.rwc.Close()
	})
	return d.closeErr
}
