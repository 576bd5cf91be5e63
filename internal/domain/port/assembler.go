package port

import (
	"context"

	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
)

type DocumentAssembler interface {
	Assemble(ctx context.Context, frames []entity.KeptFrame) (*entity.Document, error)
}
