package perception

// Labels maps detector class indices to class names.
type Labels []string

// VOCLabels are the Pascal VOC classes of the MobileNet-SSD Caffe model.
var VOCLabels = Labels{
	"background", "aeroplane", "bicycle", "bird", "boat", "bottle", "bus", "car",
	"cat", "chair", "cow", "diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

// Name returns the class name for id. Unknown ids yield "".
func (l Labels) Name(id int) string {
	if id < 0 || id >= len(l) {
		return ""
	}
	return l[id]
}

// Contains reports whether name is one of the labels.
func (l Labels) Contains(name string) bool {
	for _, n := range l {
		if n == name {
			return true
		}
	}
	return false
}

// Selector picks the tracking target out of one frame's detections.
type Selector struct {
	Labels      Labels
	TargetClass string
	Threshold   float64
}

// Select applies the selector to one frame's detections.
func (s Selector) Select(dets []RawDetection, width, height int) (Measurement, bool) {
	return Select(dets, s.Labels, s.TargetClass, s.Threshold, width, height)
}

// Select returns the measurement for the last detection, in iteration order,
// whose confidence strictly exceeds threshold and whose class is targetClass.
// Later qualifying detections overwrite earlier ones regardless of confidence
// or size. ok is false when nothing qualifies.
func Select(dets []RawDetection, labels Labels, targetClass string, threshold float64, width, height int) (m Measurement, ok bool) {
	for _, d := range dets {
		if !(d.Confidence > threshold) {
			continue
		}
		name := labels.Name(d.ClassID)
		if name == "" || name != targetClass {
			continue
		}
		m = measure(d, name, width, height)
		ok = true
	}
	return m, ok
}

func measure(d RawDetection, class string, width, height int) Measurement {
	box := Box{
		StartX: int(d.Box[0] * float64(width)),
		StartY: int(d.Box[1] * float64(height)),
		EndX:   int(d.Box[2] * float64(width)),
		EndY:   int(d.Box[3] * float64(height)),
	}
	return Measurement{
		Class:       class,
		Confidence:  d.Confidence,
		Box:         box,
		CenterX:     floorDiv(box.StartX+box.EndX, 2),
		CenterY:     floorDiv(box.StartY+box.EndY, 2),
		Height:      box.EndY - box.StartY,
		FrameWidth:  width,
		FrameHeight: height,
	}
}

// floorDiv rounds toward negative infinity; boxes may extend past the frame.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
