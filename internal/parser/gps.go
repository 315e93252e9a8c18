package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Crys266/IoT-Project/internal/model"
)

// ErrNoFix is returned for NMEA sentences that carry no usable position.
var ErrNoFix = errors.New("nmea sentence has no fix")

// ParseNMEASentence extracts a fix from a $GPGGA/$GNGGA or $GPRMC/$GNRMC sentence.
func ParseNMEASentence(line string) (model.GPSFix, error) {
	line = strings.TrimSpace(line)
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 7 {
		return model.GPSFix{}, fmt.Errorf("expected at least 7 fields, got %d", len(parts))
	}
	var latIdx int
	switch {
	case strings.HasSuffix(parts[0], "GGA"):
		if parts[6] == "0" {
			return model.GPSFix{}, ErrNoFix
		}
		latIdx = 2
	case strings.HasSuffix(parts[0], "RMC"):
		if parts[2] != "A" {
			return model.GPSFix{}, ErrNoFix
		}
		latIdx = 3
	default:
		return model.GPSFix{}, fmt.Errorf("unsupported sentence %s", parts[0])
	}
	if parts[latIdx] == "" || parts[latIdx+2] == "" {
		return model.GPSFix{}, ErrNoFix
	}
	lat, err := ParseNMEACoord(parts[latIdx], parts[latIdx+1])
	if err != nil {
		return model.GPSFix{}, errors.New("invalid lat")
	}
	lon, err := ParseNMEACoord(parts[latIdx+2], parts[latIdx+3])
	if err != nil {
		return model.GPSFix{}, errors.New("invalid lon")
	}
	return model.GPSFix{Lat: model.Float(lat), Lon: model.Float(lon)}, nil
}

// ParseNMEACoord converts NMEA ddmm.mmmm (dddmm.mmmm for longitude) to decimal degrees.
func ParseNMEACoord(value string, dir string) (float64, error) {
	degDigits := 3
	if dir == "N" || dir == "S" {
		degDigits = 2
	}
	if len(value) < degDigits+2 {
		return 0, fmt.Errorf("invalid nmea coord %q", value)
	}
	deg, err := strconv.ParseFloat(value[:degDigits], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(value[degDigits:], 64)
	if err != nil {
		return 0, err
	}
	dec := deg + min/60.0
	if dir == "S" || dir == "W" {
		dec = -dec
	}
	return dec, nil
}

// ToNMEACoord converts decimal degrees to ddmm.mmm plus hemisphere.
func ToNMEACoord(dec float64, isLat bool) (string, string) {
	dir := "N"
	if !isLat {
		dir = "E"
	}
	if dec < 0 {
		dec = -dec
		if isLat {
			dir = "S"
		} else {
			dir = "W"
		}
	}
	deg := int(dec)
	min := (dec - float64(deg)) * 60
	if isLat {
		return fmt.Sprintf("%02d%06.3f", deg, min), dir
	}
	return fmt.Sprintf("%03d%06.3f", deg, min), dir
}
