package slides

import "errors"

var (
	ErrSourceUnreadable     = errors.New("source unreadable")
	ErrRenderingUnavailable = errors.New("rendering unavailable")
	ErrLengthMismatch       = errors.New("pixel arrays differ in length")
	ErrDurationUnknown      = errors.New("duration unknown")
)

// Error codes reported in status messages.
const (
	CodeSourceUnreadable     = "SOURCE_UNREADABLE"
	CodeRenderingUnavailable = "RENDERING_UNAVAILABLE"
	CodeLengthMismatch       = "LENGTH_MISMATCH"
	CodeDurationUnknown      = "DURATION_UNKNOWN"
	CodeInternal             = "INTERNAL_ERROR"
)

// Code maps an error from this package to its status code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDurationUnknown):
		return CodeDurationUnknown
	case errors.Is(err, ErrSourceUnreadable):
		return CodeSourceUnreadable
	case errors.Is(err, ErrRenderingUnavailable):
		return CodeRenderingUnavailable
	case errors.Is(err, ErrLengthMismatch):
		return CodeLengthMismatch
	}
	return CodeInternal
}
