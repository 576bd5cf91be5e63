package port

import "context"

// DurationProber reads a media file's duration in seconds from its container
// metadata.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}
