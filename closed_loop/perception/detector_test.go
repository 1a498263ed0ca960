package perception

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFrame struct {
	w, h   int
	closed int
}

func (f *testFrame) Width() int   { return f.w }
func (f *testFrame) Height() int  { return f.h }
func (f *testFrame) Close() error { f.closed++; return nil }

type testSource struct {
	pair FramePair
	err  error
}

func (s *testSource) Frame(context.Context) (FramePair, error) {
	return s.pair, s.err
}

type testNet struct {
	dets  []RawDetection
	err   error
	panic bool
}

func (n *testNet) Infer(context.Context, Frame) ([]RawDetection, error) {
	if n.panic {
		panic("tensor shape mismatch")
	}
	return n.dets, n.err
}

type testAnnotator struct {
	labels []string
	boxes  []Box
	err    error
	panic  bool
}

func (a *testAnnotator) Annotate(_ Frame, label string, box Box) error {
	if a.panic {
		panic("draw failed")
	}
	a.labels = append(a.labels, label)
	a.boxes = append(a.boxes, box)
	return a.err
}

func personSelector() Selector {
	return Selector{TargetClass: "person", Threshold: 0.4}
}

func newTestDetector(t *testing.T, src ImageSource, net Inferencer, annot Annotator) *Detector {
	t.Helper()
	d, err := NewDetector(src, net, annot, personSelector(), nil)
	require.NoError(t, err)
	return d
}

func TestNewDetector_Validation(t *testing.T) {
	_, err := NewDetector(nil, &testNet{}, nil, personSelector(), nil)
	assert.Error(t, err)

	_, err = NewDetector(&testSource{}, &testNet{}, nil, Selector{TargetClass: "unicorn"}, nil)
	assert.ErrorContains(t, err, "unicorn")

	d, err := NewDetector(&testSource{}, &testNet{}, nil, personSelector(), nil)
	require.NoError(t, err)
	assert.Equal(t, VOCLabels, d.Selector().Labels, "defaults to VOC labels")
}

func TestPerceive_Found(t *testing.T) {
	display := &testFrame{w: 640, h: 480}
	analysis := &testFrame{w: 640, h: 480}
	net := &testNet{dets: []RawDetection{{ClassID: classPerson, Confidence: 0.9, Box: [4]float64{0.5, 0.25, 0.75, 0.75}}}}
	annot := &testAnnotator{}
	d := newTestDetector(t, &testSource{pair: FramePair{Display: display, Analysis: analysis}}, net, annot)

	res, err := d.Perceive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, res.Outcome)
	assert.Equal(t, 400, res.Measurement.CenterX)
	assert.Equal(t, 240, res.Measurement.Height)

	assert.Equal(t, []string{"C:400, H:240"}, annot.labels)
	assert.Equal(t, []Box{{StartX: 320, StartY: 120, EndX: 480, EndY: 360}}, annot.boxes)

	assert.Equal(t, 1, display.closed)
	assert.Equal(t, 1, analysis.closed)
}

func TestPerceive_SharedFrameReleasedOnce(t *testing.T) {
	f := &testFrame{w: 320, h: 240}
	d := newTestDetector(t, &testSource{pair: FramePair{Display: f, Analysis: f}}, &testNet{}, nil)

	res, err := d.Perceive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, res.Outcome)
	assert.Equal(t, 1, f.closed)
}

func TestPerceive_AnnotationFailureDoesNotAffectMeasurement(t *testing.T) {
	net := &testNet{dets: []RawDetection{{ClassID: classPerson, Confidence: 0.9, Box: [4]float64{0.5, 0.25, 0.75, 0.75}}}}
	f := &testFrame{w: 640, h: 480}

	for _, annot := range []*testAnnotator{{err: errors.New("no font")}, {panic: true}} {
		d := newTestDetector(t, &testSource{pair: FramePair{Display: f, Analysis: f}}, net, annot)
		res, err := d.Perceive(context.Background())
		require.NoError(t, err)
		assert.Equal(t, OutcomeFound, res.Outcome)
		assert.Equal(t, 400, res.Measurement.CenterX)
	}
}

func TestPerceive_InferenceFailure(t *testing.T) {
	f := &testFrame{w: 640, h: 480}
	pair := FramePair{Display: f, Analysis: f}

	d := newTestDetector(t, &testSource{pair: pair}, &testNet{err: errors.New("backend busy")}, nil)
	res, err := d.Perceive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "backend busy")

	d = newTestDetector(t, &testSource{pair: pair}, &testNet{panic: true}, nil)
	res, err = d.Perceive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorContains(t, res.Err, "tensor shape mismatch")
}

func TestPerceive_SourceFailure(t *testing.T) {
	srcErr := errors.New("camera unplugged")
	d := newTestDetector(t, &testSource{err: srcErr}, &testNet{}, nil)

	_, err := d.Perceive(context.Background())
	assert.ErrorIs(t, err, srcErr)

	d = newTestDetector(t, &testSource{pair: FramePair{}}, &testNet{}, nil)
	_, err = d.Perceive(context.Background())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "found", OutcomeFound.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
