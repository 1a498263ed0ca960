//go:build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"gocv.io/x/gocv"

	"follow-core/closed_loop/perception"
)

// MobileNet-SSD input geometry and normalization.
const (
	ssdInputSize = 300
	ssdScale     = 0.007843
	ssdMean      = 127.5
	ssdRowWidth  = 7
)

var annotationColor = color.RGBA{0, 255, 0, 0}

// MatFrame adapts a gocv.Mat to perception.Frame.
type MatFrame struct {
	Mat gocv.Mat
}

func (f *MatFrame) Width() int   { return f.Mat.Cols() }
func (f *MatFrame) Height() int  { return f.Mat.Rows() }
func (f *MatFrame) Close() error { return f.Mat.Close() }

// Camera reads BGR frames from a capture device and pairs each with an RGB
// copy for inference.
type Camera struct {
	capture *gocv.VideoCapture
	device  string
}

// OpenCamera opens device and requests the given resolution when non-zero.
func OpenCamera(device string, width, height int) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", device, err)
	}
	if width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &Camera{capture: capture, device: device}, nil
}

func (c *Camera) Frame(ctx context.Context) (perception.FramePair, error) {
	if err := ctx.Err(); err != nil {
		return perception.FramePair{}, err
	}

	display := gocv.NewMat()
	if ok := c.capture.Read(&display); !ok || display.Empty() {
		display.Close()
		return perception.FramePair{}, fmt.Errorf("camera %q: read failed", c.device)
	}

	analysis := gocv.NewMat()
	gocv.CvtColor(display, &analysis, gocv.ColorBGRToRGB)

	return perception.FramePair{
		Display:  &MatFrame{Mat: display},
		Analysis: &MatFrame{Mat: analysis},
	}, nil
}

func (c *Camera) Close() error {
	return c.capture.Close()
}

// MobileNetSSD runs the Caffe MobileNet-SSD detector.
type MobileNetSSD struct {
	net gocv.Net
}

// LoadMobileNetSSD reads the network from its prototxt and weights.
func LoadMobileNetSSD(prototxt, model string) (*MobileNetSSD, error) {
	net := gocv.ReadNetFromCaffe(prototxt, model)
	if net.Empty() {
		return nil, fmt.Errorf("load caffe model %q (%q): empty network", model, prototxt)
	}
	return &MobileNetSSD{net: net}, nil
}

// Infer returns one detection per output row, in network order.
func (m *MobileNetSSD) Infer(ctx context.Context, frame perception.Frame) ([]perception.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := frame.(*MatFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	size := image.Pt(ssdInputSize, ssdInputSize)
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(f.Mat, &resized, size, 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, ssdScale, size, gocv.NewScalar(ssdMean, ssdMean, ssdMean, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	prob := m.net.Forward("")
	defer prob.Close()
	if prob.Empty() {
		return nil, errors.New("network produced no output")
	}

	// Output is 1x1xNx7: [image_id, class, confidence, x1, y1, x2, y2].
	total := prob.Total()
	dets := make([]perception.RawDetection, 0, total/ssdRowWidth)
	for i := 0; i+ssdRowWidth <= total; i += ssdRowWidth {
		dets = append(dets, perception.RawDetection{
			ClassID:    int(prob.GetFloatAt(0, i+1)),
			Confidence: float64(prob.GetFloatAt(0, i+2)),
			Box: [4]float64{
				float64(prob.GetFloatAt(0, i+3)),
				float64(prob.GetFloatAt(0, i+4)),
				float64(prob.GetFloatAt(0, i+5)),
				float64(prob.GetFloatAt(0, i+6)),
			},
		})
	}
	return dets, nil
}

func (m *MobileNetSSD) Close() error {
	return m.net.Close()
}

// MatAnnotator draws a green box and label on the display frame.
type MatAnnotator struct{}

func (MatAnnotator) Annotate(frame perception.Frame, label string, box perception.Box) error {
	f, ok := frame.(*MatFrame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", frame)
	}

	gocv.Rectangle(&f.Mat, image.Rect(box.StartX, box.StartY, box.EndX, box.EndY), annotationColor, 2)

	// Label sits above the box unless that would leave the frame.
	y := box.StartY - 15
	if y <= 15 {
		y = box.StartY + 15
	}
	gocv.PutText(&f.Mat, label, image.Pt(box.StartX, y), gocv.FontHersheySimplex, 0.5, annotationColor, 2)
	return nil
}

// OpenGoCV opens the camera and loads the detector.
func OpenGoCV(cfg GoCVConfig) (*Pipeline, error) {
	cam, err := OpenCamera(cfg.Device, cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}
	net, err := LoadMobileNetSSD(cfg.Prototxt, cfg.Model)
	if err != nil {
		return nil, errors.Join(err, cam.Close())
	}
	return &Pipeline{
		Source:    cam,
		Net:       net,
		Annotator: MatAnnotator{},
		closers:   []io.Closer{cam, net},
	}, nil
}
