package simulator

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
)

// generateFrame renders a gradient test card with a bar that moves with seq,
// encoded the way the camera sends frames: base64 JPEG.
func generateFrame(w, h, seq int, negative bool) (string, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bar := (seq * 4) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 96, A: 255}
			if x >= bar && x < bar+8 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			if negative {
				c.R, c.G, c.B = 255-c.R, 255-c.G, 255-c.B
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
