package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
	"github.com/video2doc/video2doc-processing-service/internal/domain/port"
)

// ZipCreator bundles kept slide images, named by their sampling ordinal.
type ZipCreator struct{}

var _ port.Archiver = (*ZipCreator)(nil)

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

func (z *ZipCreator) CreateArchive(ctx context.Context, frames []entity.KeptFrame, w io.Writer) error {
	zipWriter := zip.NewWriter(w)

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			zipWriter.Close()
			return ctx.Err()
		default:
		}

		if err := addFrameToZip(zipWriter, frame); err != nil {
			zipWriter.Close()
			return fmt.Errorf("add slide %d to zip: %w", frame.Ordinal, err)
		}
	}

	return zipWriter.Close()
}

// EntryName returns the archive entry name for a kept frame.
func EntryName(frame entity.KeptFrame) string {
	ext := frame.Page.Format
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "" {
		ext = "img"
	}
	return fmt.Sprintf("slide_%04d.%s", frame.Ordinal, ext)
}

func addFrameToZip(zw *zip.Writer, frame entity.KeptFrame) error {
	header := &zip.FileHeader{
		Name:     EntryName(frame),
		Method:   zip.Deflate,
		Modified: time.Now().UTC(),
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = writer.Write(frame.Page.Data)
	return err
}
