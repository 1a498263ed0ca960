package perception

import (
	"context"
	"errors"
	"fmt"

	"follow-core/utils"
)

// ErrNoFrame is returned when an image source yields an incomplete pair.
var ErrNoFrame = errors.New("image source returned no analysis frame")

// Detector composes an image source, an inference backend and an optional
// annotator into one perception step per control cycle.
type Detector struct {
	source   ImageSource
	net      Inferencer
	annot    Annotator
	selector Selector
	log      *utils.Logger
}

// NewDetector wires the collaborators. annot and log may be nil.
func NewDetector(source ImageSource, net Inferencer, annot Annotator, selector Selector, log *utils.Logger) (*Detector, error) {
	if source == nil || net == nil {
		return nil, errors.New("detector requires an image source and an inferencer")
	}
	if len(selector.Labels) == 0 {
		selector.Labels = VOCLabels
	}
	if !selector.Labels.Contains(selector.TargetClass) {
		return nil, fmt.Errorf("unknown target class %q", selector.TargetClass)
	}
	if log == nil {
		log = utils.Discard()
	}
	return &Detector{source: source, net: net, annot: annot, selector: selector, log: log}, nil
}

// Selector returns the target selection policy in use.
func (d *Detector) Selector() Selector { return d.selector }

// Perceive pulls one frame pair and reduces it to a Result. A non-nil error
// means the image source failed and the cycle has no frame at all; every
// other problem is reported through the Result.
func (d *Detector) Perceive(ctx context.Context) (Result, error) {
	pair, err := d.source.Frame(ctx)
	if err != nil {
		return Result{}, err
	}
	defer pair.Release()

	if pair.Analysis == nil {
		return Result{}, ErrNoFrame
	}

	res := d.detect(ctx, pair.Analysis)
	if res.Outcome == OutcomeFound && d.annot != nil && pair.Display != nil {
		d.annotate(pair.Display, res.Measurement)
	}
	return res, nil
}

// detect runs inference and selection, converting errors and panics from
// the backend into OutcomeFailed.
func (d *Detector) detect(ctx context.Context, frame Frame) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("detection panicked: %v", r))
		}
	}()

	dets, err := d.net.Infer(ctx, frame)
	if err != nil {
		return Failed(fmt.Errorf("inference: %w", err))
	}
	m, ok := d.selector.Select(dets, frame.Width(), frame.Height())
	if !ok {
		return Empty()
	}
	return Found(m)
}

func (d *Detector) annotate(frame Frame, m Measurement) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("annotation panicked: %v", r)
		}
	}()
	if err := d.annot.Annotate(frame, m.Label(), m.Box); err != nil {
		d.log.Debug("annotation failed: %v", err)
	}
}
