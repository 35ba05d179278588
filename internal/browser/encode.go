package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"multishot/internal/job"
)

var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Encode converts img to png or jpg. JPEG has no alpha channel, so the image
// is composited onto white first. quality 0 selects jpeg.DefaultQuality.
func Encode(img image.Image, format job.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case job.FormatPNG:
		if err := pngEncoder.Encode(&buf, img); err != nil {
			return nil, err
		}
	case job.FormatJPG:
		if quality == 0 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, flatten(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

func flatten(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}
