package slides

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Normalize decodes an encoded frame and renders it onto an RGBA surface of the
// image's intrinsic size. The encoded bytes are kept as the page image.
func Normalize(data []byte) (*entity.NormalizedFrame, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrRenderingUnavailable, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrRenderingUnavailable, b)
	}

	surface := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(surface, surface.Bounds(), img, b.Min, draw.Src)

	return &entity.NormalizedFrame{
		Canonical: entity.CanonicalFrame{
			Pix:    surface.Pix,
			Width:  b.Dx(),
			Height: b.Dy(),
		},
		Page: entity.PageImage{
			Data:   data,
			Format: format,
			Width:  b.Dx(),
			Height: b.Dy(),
		},
	}, nil
}
