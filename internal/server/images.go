package server

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"
)

const (
	blankDrawingWidth  = 800
	blankDrawingHeight = 600
)

var (
	blankDrawingOnce sync.Once
	blankDrawing     string
)

// blankDrawingData is the placeholder artifact for a participant who never drew anything.
func blankDrawingData() string {
	blankDrawingOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, blankDrawingWidth, blankDrawingHeight))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return
		}
		blankDrawing = encodeImageData(buf.Bytes())
	})
	return blankDrawing
}

func encodeImageData(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)
}

func validateDrawingData(data string, maxBytes int) (string, error) {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return "", ValidationError("drawing data is required")
	}
	if maxBytes > 0 && len(trimmed) > maxBytes {
		return "", ValidationError("drawing is too large")
	}
	return trimmed, nil
}
