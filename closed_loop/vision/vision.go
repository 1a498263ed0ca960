// Package vision provides the image source, inference and annotation
// backends consumed by perception.Detector.
package vision

import (
	"errors"
	"io"

	"follow-core/closed_loop/perception"
)

// ErrGoCVUnavailable is returned by OpenGoCV in binaries built without the
// gocv build tag.
var ErrGoCVUnavailable = errors.New("camera backend unavailable: rebuild with -tags gocv")

// GoCVConfig selects the camera and the MobileNet-SSD model files.
type GoCVConfig struct {
	// Device is a camera index ("0") or a video file or stream URL.
	Device   string `json:"device"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Prototxt string `json:"prototxt"`
	Model    string `json:"model"`
}

// Pipeline groups the three collaborators a detector needs together with
// the resources that back them.
type Pipeline struct {
	Source    perception.ImageSource
	Net       perception.Inferencer
	Annotator perception.Annotator

	closers []io.Closer
}

// Close releases every backing resource.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
