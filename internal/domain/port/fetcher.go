package port

import (
	"context"
	"io"
)

type RemoteFetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
	ResolveHosted(ctx context.Context, pageURL string) (string, error)
}
