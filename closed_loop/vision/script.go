package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"follow-core/closed_loop/perception"
)

// Default frame size for script records that omit one.
const (
	DefaultScriptWidth  = 640
	DefaultScriptHeight = 480
)

// scriptRecord is one frame of a replay script.
type scriptRecord struct {
	Width      int                       `json:"width"`
	Height     int                       `json:"height"`
	Detections []perception.RawDetection `json:"detections"`
	Fail       string                    `json:"fail"`
	DelayMS    int                       `json:"delay_ms"`
}

type scriptFrame struct {
	index int
	rec   scriptRecord
}

func (f *scriptFrame) Width() int  { return f.rec.Width }
func (f *scriptFrame) Height() int { return f.rec.Height }

// Script replays recorded detector output from a stream of JSON objects,
// one per frame. It serves as image source, inferencer and annotator at
// once, so a full perception cycle runs without a camera or a network.
type Script struct {
	mu     sync.Mutex
	dec    *json.Decoder
	closer io.Closer
	frames int
	labels []string
}

// NewScript reads frames from r.
func NewScript(r io.Reader) *Script {
	s := &Script{dec: json.NewDecoder(r)}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenScript opens a replay file.
func OpenScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	return NewScript(f), nil
}

// Frame decodes the next record. io.EOF marks the end of the script.
func (s *Script) Frame(ctx context.Context) (perception.FramePair, error) {
	if err := ctx.Err(); err != nil {
		return perception.FramePair{}, err
	}

	s.mu.Lock()
	var rec scriptRecord
	err := s.dec.Decode(&rec)
	index := s.frames
	if err == nil {
		s.frames++
	}
	s.mu.Unlock()

	if errors.Is(err, io.EOF) {
		return perception.FramePair{}, io.EOF
	}
	if err != nil {
		return perception.FramePair{}, fmt.Errorf("script frame %d: %w", index, err)
	}

	if rec.Width == 0 {
		rec.Width = DefaultScriptWidth
	}
	if rec.Height == 0 {
		rec.Height = DefaultScriptHeight
	}
	if rec.Width < 0 || rec.Height < 0 {
		return perception.FramePair{}, fmt.Errorf("script frame %d: invalid size %dx%d", index, rec.Width, rec.Height)
	}

	if rec.DelayMS > 0 {
		t := time.NewTimer(time.Duration(rec.DelayMS) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return perception.FramePair{}, ctx.Err()
		case <-t.C:
		}
	}

	f := &scriptFrame{index: index, rec: rec}
	return perception.FramePair{Display: f, Analysis: f}, nil
}

// Infer returns the detections recorded for the frame, or the recorded
// failure.
func (s *Script) Infer(_ context.Context, frame perception.Frame) ([]perception.RawDetection, error) {
	f, ok := frame.(*scriptFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if f.rec.Fail != "" {
		return nil, fmt.Errorf("script frame %d: %s", f.index, f.rec.Fail)
	}
	return f.rec.Detections, nil
}

// Annotate records the label instead of drawing it.
func (s *Script) Annotate(_ perception.Frame, label string, _ perception.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, label)
	return nil
}

// Labels returns every annotation label recorded so far.
func (s *Script) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

// Frames returns how many frames have been decoded.
func (s *Script) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Script) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Pipeline exposes the script as a detector pipeline.
func (s *Script) Pipeline() *Pipeline {
	return &Pipeline{Source: s, Net: s, Annotator: s, closers: []io.Closer{s}}
}
