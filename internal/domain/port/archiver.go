package port

import (
	"context"
	"io"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
)

type Archiver interface {
	CreateArchive(ctx context.Context, frames []entity.KeptFrame, w io.Writer) error
}
