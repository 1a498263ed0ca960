//go:build !gocv

package vision

// OpenGoCV is unavailable without the gocv build tag.
func OpenGoCV(GoCVConfig) (*Pipeline, error) {
	return nil, ErrGoCVUnavailable
}
