package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/go-pdf/fpdf"
	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrCompositionFailed = errors.New("page composition failed")
	ErrEmptyDocument     = errors.New("document has no pages")
)

// Assembler lays out one page per frame. Units are points and each pixel maps to
// one point, so a page is exactly the size of its frame.
type Assembler struct {
	compress bool
	logger   *zap.Logger
}

var _ port.DocumentAssembler = (*Assembler)(nil)

func NewAssembler(compress bool, logger *zap.Logger) *Assembler {
	return &Assembler{compress: compress, logger: logger}
}

func (a *Assembler) Assemble(ctx context.Context, frames []entity.KeptFrame) (*entity.Document, error) {
	f := fpdf.New("P", "pt", "A4", "")
	f.SetCompression(a.compress)
	f.SetMargins(0, 0, 0)
	f.SetAutoPageBreak(false, 0)
	f.SetCreator("video2doc", true)

	doc := &entity.Document{}
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := a.addPage(f, frame)
		if err != nil {
			a.logger.Warn("skipping frame that could not be composed",
				zap.Int("ordinal", frame.Ordinal),
				zap.Error(err),
			)
			doc.Skipped = append(doc.Skipped, frame.Ordinal)
			continue
		}
		doc.Pages = append(doc.Pages, page)
	}

	if len(doc.Pages) == 0 {
		return nil, ErrEmptyDocument
	}

	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	doc.Blob = buf.Bytes()

	a.logger.Debug("document assembled",
		zap.Int("pages", len(doc.Pages)),
		zap.Int("skipped", len(doc.Skipped)),
		zap.Int("bytes", len(doc.Blob)),
	)
	return doc, nil
}

func (a *Assembler) addPage(f *fpdf.Fpdf, frame entity.KeptFrame) (entity.PageInfo, error) {
	img := frame.Page
	if img.Width <= 0 || img.Height <= 0 {
		return entity.PageInfo{}, fmt.Errorf("%w: invalid size %dx%d", ErrCompositionFailed, img.Width, img.Height)
	}

	name := fmt.Sprintf("frame_%04d", frame.Ordinal)
	imageType, err := a.register(f, name, img)
	if err != nil {
		return entity.PageInfo{}, err
	}

	w, h := float64(img.Width), float64(img.Height)
	orientation := entity.OrientationFor(img.Width, img.Height)
	// fpdf swaps Wd and Ht for landscape pages, so pass the short side first.
	size := fpdf.SizeType{Wd: min(w, h), Ht: max(w, h)}
	if orientation == entity.Landscape {
		f.AddPageFormat("L", size)
	} else {
		f.AddPageFormat("P", size)
	}
	f.ImageOptions(name, 0, 0, w, h, false, fpdf.ImageOptions{ImageType: imageType}, 0, "")
	if err := f.Error(); err != nil {
		return entity.PageInfo{}, fmt.Errorf("%w: %v", ErrCompositionFailed, err)
	}

	pw, ph := f.GetPageSize()
	return entity.PageInfo{
		Ordinal:     frame.Ordinal,
		Width:       pw,
		Height:      ph,
		Orientation: orientation,
	}, nil
}

// register embeds the frame's image. Formats fpdf cannot read, and images it
// rejects, are transcoded to 8-bit PNG once before giving up.
func (a *Assembler) register(f *fpdf.Fpdf, name string, img entity.PageImage) (string, error) {
	if imageType, ok := nativeType(img.Format); ok {
		f.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(img.Data))
		if f.Ok() {
			return imageType, nil
		}
		a.logger.Debug("native image rejected, transcoding", zap.String("image", name), zap.Error(f.Error()))
		f.ClearError()
		name += "_png"
	}

	data, err := transcodePNG(img.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompositionFailed, err)
	}
	f.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
	if !f.Ok() {
		err := f.Error()
		f.ClearError()
		return "", fmt.Errorf("%w: %v", ErrCompositionFailed, err)
	}
	return "PNG", nil
}

func nativeType(format string) (string, bool) {
	switch format {
	case "png":
		return "PNG", true
	case "jpeg":
		return "JPG", true
	case "gif":
		return "GIF", true
	}
	return "", false
}

func transcodePNG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
