package classifier

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Model input geometry: one 160x160 RGB image per batch.
const (
	inputSize     = 160
	inputChannels = 3
)

// PrepareImage converts a base64 image string (optionally carrying a data-URL
// prefix) into the model's NHWC float32 input. The resize ignores aspect
// ratio and channel values stay in the raw 0-255 range.
func PrepareImage(data string) ([]float32, error) {
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	data = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, data)

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	resized := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	pixels := make([]float32, inputSize*inputSize*inputChannels)
	i := 0
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			pixels[i] = float32(r >> 8)
			pixels[i+1] = float32(g >> 8)
			pixels[i+2] = float32(b >> 8)
			i += inputChannels
		}
	}
	return pixels, nil
}
