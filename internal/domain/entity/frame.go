package entity

import "time"

// CanonicalFrame is a decoded frame as tightly packed RGBA bytes, row-major,
// top-to-bottom. Two frames are comparable only when len(Pix) matches.
type CanonicalFrame struct {
	Pix    []byte
	Width  int
	Height int
}

// PageImage is the encoded form of a frame, ready to embed in a document page
// without decoding it again.
type PageImage struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

type NormalizedFrame struct {
	Canonical CanonicalFrame
	Page      PageImage
}

type KeepReason string

const (
	KeepFirst           KeepReason = "first"
	KeepDimensionChange KeepReason = "dimension_change"
	KeepChanged         KeepReason = "changed"
)

// KeptFrame is a candidate that survived de-duplication.
type KeptFrame struct {
	Ordinal int
	Page    PageImage
	Score   float64
	Reason  KeepReason
}

type StopReason string

const (
	StopCompleted   StopReason = "completed"
	StopUnreadable  StopReason = "source_unreadable"
	StopRendering   StopReason = "rendering_unavailable"
	StopEmptySource StopReason = "empty_source"
)

// SamplingResult is the outcome of one sampling run.
type SamplingResult struct {
	Duration   float64
	Interval   time.Duration
	Expected   int
	Read       int
	Discarded  int
	Kept       []KeptFrame
	StopReason StopReason
	StopErr    error
}

// Complete reports whether every expected candidate was read.
func (r *SamplingResult) Complete() bool {
	return r.Read == r.Expected
}

type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

// OrientationFor picks landscape only when width is strictly larger.
func OrientationFor(width, height int) Orientation {
	if width > height {
		return Landscape
	}
	return Portrait
}

type PageInfo struct {
	Ordinal     int
	Width       float64
	Height      float64
	Orientation Orientation
}

// Document is an assembled multi-page output.
type Document struct {
	Blob    []byte
	Pages   []PageInfo
	Skipped []int
}
