package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"follow-core/utils"
)

type fakeStarter struct {
	mu      sync.Mutex
	calls   [][]string
	release chan struct{}
	err     error
}

func (f *fakeStarter) start(_ context.Context, name string, args ...string) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, append([]string{name}, args...))
	return func() error {
		<-f.release
		return nil
	}, nil
}

func (f *fakeStarter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestCommandNotifier_SpeaksOnePhraseAtATime(t *testing.T) {
	fs := &fakeStarter{release: make(chan struct{})}
	n := &CommandNotifier{Binary: "espeak", Rate: 180, Log: utils.Discard(), start: fs.start}
	ctx := context.Background()

	require.NoError(t, n.Say(ctx, "target acquired"))
	require.NoError(t, n.Say(ctx, "target lost"))
	assert.Equal(t, 1, fs.callCount(), "second phrase dropped while busy")
	assert.Equal(t, []string{"espeak", "-s", "180", "target acquired"}, fs.calls[0])

	close(fs.release)
	require.Eventually(t, func() bool {
		return n.Say(ctx, "again") == nil && fs.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestCommandNotifier_EmptyAndErrors(t *testing.T) {
	fs := &fakeStarter{err: errors.New("no audio device")}
	n := &CommandNotifier{Binary: "espeak", Rate: 180, Log: utils.Discard(), start: fs.start}

	assert.NoError(t, n.Say(context.Background(), "   "))
	assert.ErrorContains(t, n.Say(context.Background(), "hello"), "no audio device")

	// A failed start must not leave the notifier stuck busy.
	fs.mu.Lock()
	fs.err = nil
	fs.release = make(chan struct{})
	fs.mu.Unlock()
	assert.NoError(t, n.Say(context.Background(), "hello"))
	assert.Equal(t, 1, fs.callCount())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := LogNotifier{Log: utils.NewLogger(&buf, utils.INFO)}

	require.NoError(t, n.Say(context.Background(), ""))
	assert.Empty(t, buf.String())

	require.NoError(t, n.Say(context.Background(), "target lost"))
	assert.Contains(t, buf.String(), "say: target lost")

	assert.NoError(t, Nop{}.Say(context.Background(), "ignored"))
}
