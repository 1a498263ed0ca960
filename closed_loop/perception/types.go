// Package perception turns per-frame detector output into a single tracking
// measurement for the follow loop.
package perception

import (
	"context"
	"fmt"
)

// RawDetection is one detector output row. Box holds normalized
// (startX, startY, endX, endY) coordinates.
type RawDetection struct {
	ClassID    int        `json:"class"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

// Box is a bounding box in pixel coordinates.
type Box struct {
	StartX, StartY int
	EndX, EndY     int
}

// Measurement is the tracking measurement derived from the selected detection.
type Measurement struct {
	Class      string
	Confidence float64
	Box        Box
	CenterX    int
	CenterY    int
	Height     int

	// Frame dimensions the pixel coordinates refer to
	FrameWidth  int
	FrameHeight int
}

// Label is the annotation text drawn next to the selected box.
func (m Measurement) Label() string {
	return fmt.Sprintf("C:%d, H:%d", m.CenterX, m.Height)
}

// Outcome classifies one perception cycle.
type Outcome int

const (
	OutcomeFound Outcome = iota + 1
	OutcomeEmpty
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the outcome of one perception cycle. Measurement is only
// meaningful for OutcomeFound and Err only for OutcomeFailed.
type Result struct {
	Outcome     Outcome
	Measurement Measurement
	Err         error
}

func Found(m Measurement) Result { return Result{Outcome: OutcomeFound, Measurement: m} }
func Empty() Result              { return Result{Outcome: OutcomeEmpty} }
func Failed(err error) Result    { return Result{Outcome: OutcomeFailed, Err: err} }

// Frame is an image handed between the image source, detector and annotator.
type Frame interface {
	Width() int
	Height() int
}

// FramePair is what an image source yields per cycle: a frame to draw on and
// a frame to analyze. They may be the same frame.
type FramePair struct {
	Display  Frame
	Analysis Frame
}

// Release closes both frames if they hold native resources.
func (p FramePair) Release() {
	if c, ok := p.Display.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if sameFrame(p.Analysis, p.Display) {
		return
	}
	if c, ok := p.Analysis.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// ImageSource produces one frame pair per call, blocking until it is ready.
type ImageSource interface {
	Frame(ctx context.Context) (FramePair, error)
}

// Inferencer runs the detection network on an analysis frame. The returned
// detections are in backend order.
type Inferencer interface {
	Infer(ctx context.Context, frame Frame) ([]RawDetection, error)
}

// Annotator draws a labelled box on a display frame. Purely cosmetic.
type Annotator interface {
	Annotate(frame Frame, label string, box Box) error
}

// sameFrame reports whether a and b are the same frame value. Frames with
// non-comparable dynamic types are treated as distinct.
func sameFrame(a, b Frame) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
