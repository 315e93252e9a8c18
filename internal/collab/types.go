// Package collab talks to the gallery and notification REST service that sits next
// to the rover controller. Failures are reported, never retried.
package collab

import "time"

// Result is the {success, error} pair every mutating endpoint answers with.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Detection is the summary stored with a classified image.
type Detection struct {
	ObjectsCount int `json:"objects_count"`
}

// Image is one stored frame as listed by the gallery.
type Image struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`
	Size           int64      `json:"size"`
	Created        string     `json:"created"`
	GPS            string     `json:"gps"`
	GPSLat         *float64   `json:"gps_lat"`
	GPSLon         *float64   `json:"gps_lon"`
	Temperature    *float64   `json:"temperature"`
	Humidity       *float64   `json:"humidity"`
	Tags           []string   `json:"tags"`
	Description    string     `json:"description"`
	Category       string     `json:"category,omitempty"`
	Detection      *Detection `json:"detection_results"`
	NegativeEffect bool       `json:"negative_effect"`
}

// CreatedAt parses Created; the service sends ISO-8601 without a zone.
func (i Image) CreatedAt() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, i.Created); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Statistics is the server-side gallery summary.
type Statistics struct {
	TotalImages int     `json:"total_images"`
	TotalSizeMB float64 `json:"total_size_mb"`
}

// Gallery is the GET /api/images payload.
type Gallery struct {
	Images     []Image    `json:"images"`
	Statistics Statistics `json:"statistics"`
}

// Summary adds the counters the dashboard derives locally.
type Summary struct {
	Statistics
	WithDetections int
	CreatedToday   int
}

// Summarize derives the local counters relative to now.
func (g Gallery) Summarize(now time.Time) Summary {
	s := Summary{Statistics: g.Statistics}
	y, m, d := now.Date()
	for _, img := range g.Images {
		if img.Detection != nil && img.Detection.ObjectsCount > 0 {
			s.WithDetections++
		}
		if t, ok := img.CreatedAt(); ok {
			ty, tm, td := t.Date()
			if ty == y && tm == m && td == d {
				s.CreatedToday++
			}
		}
	}
	return s
}

// ImageUpdate is the PUT /api/images/{id} body. Nil numbers clear the field.
type ImageUpdate struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	GPSLat      *float64 `json:"gps_lat"`
	GPSLon      *float64 `json:"gps_lon"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// UpdateFrom prefills an update with the image's current metadata.
func UpdateFrom(img Image) ImageUpdate {
	return ImageUpdate{
		Description: img.Description,
		Tags:        append([]string(nil), img.Tags...),
		Category:    img.Category,
		GPSLat:      img.GPSLat,
		GPSLon:      img.GPSLon,
		Temperature: img.Temperature,
		Humidity:    img.Humidity,
	}
}
