// Package device reads operator and position input from line-oriented serial
// peripherals: the gamepad bridge and NMEA GPS receivers.
package device

import (
	"errors"
	"time"
)

// ErrReadTimeout is returned by ReadLine when no full line arrived in time.
var ErrReadTimeout = errors.New("read timeout")

// Device is a newline-framed byte stream.
type Device interface {
	// ReadLine returns the next line without its terminator. With timeout > 0 it
	// gives up with ErrReadTimeout; io.EOF means the stream is gone for good.
	ReadLine(timeout time.Duration) (string, error)

	// WriteLine sends s plus '\n'.
	WriteLine(s string) error

	Close() error
}
