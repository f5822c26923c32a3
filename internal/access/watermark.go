package access

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	watermarkStripeWidth   = 24
	watermarkStripePitch   = 160
	watermarkAlpha         = 72
	watermarkEncodeQuality = 85
)

// Watermark renders a watermarked webp derivative of the stored original.
// The derivative is computed per request and never written back to storage,
// so a tier change affects future downloads of historical outputs without
// touching stored assets.
func Watermark(original []byte) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(original))
	if err != nil {
		return nil, "", fmt.Errorf("access: decode original: %w", err)
	}

	bounds := src.Bounds()
	marked := image.NewRGBA(bounds)
	draw.Draw(marked, bounds, src, bounds.Min, draw.Src)

	overlay := color.RGBA{R: 255, G: 255, B: 255, A: watermarkAlpha}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Diagonal stripes across the full frame.
			if (x+y)%watermarkStripePitch < watermarkStripeWidth {
				marked.Set(x, y, blend(marked.RGBAAt(x, y), overlay))
			}
		}
	}

	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, watermarkEncodeQuality)
	if err != nil {
		return nil, "", fmt.Errorf("access: webp encoder options: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, marked, opts); err != nil {
		return nil, "", fmt.Errorf("access: encode webp: %w", err)
	}
	return buf.Bytes(), "image/webp", nil
}

func blend(base color.RGBA, over color.RGBA) color.RGBA {
	a := uint32(over.A)
	inv := 255 - a
	return color.RGBA{
		R: uint8((uint32(over.R)*a + uint32(base.R)*inv) / 255),
		G: uint8((uint32(over.G)*a + uint32(base.G)*inv) / 255),
		B: uint8((uint32(over.B)*a + uint32(base.B)*inv) / 255),
		A: base.A,
	}
}
