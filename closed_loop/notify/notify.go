// Package notify speaks short status phrases outside the control path.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"follow-core/utils"
)

// Notifier announces text. Empty text is a no-op.
type Notifier interface {
	Say(ctx context.Context, text string) error
}

// Nop discards every phrase.
type Nop struct{}

func (Nop) Say(context.Context, string) error { return nil }

// LogNotifier writes phrases to the log instead of speaking them.
type LogNotifier struct {
	Log *utils.Logger
}

func (n LogNotifier) Say(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" || n.Log == nil {
		return nil
	}
	n.Log.Info("say: %s", text)
	return nil
}

// DefaultRate is the speech rate in words per minute.
const DefaultRate = 180

// CommandNotifier speaks through an external TTS binary such as espeak.
// Each phrase starts one process; a phrase arriving while the previous one
// is still playing is dropped so speech never queues up behind the loop.
type CommandNotifier struct {
	Binary string
	Rate   int
	Log    *utils.Logger

	mu      sync.Mutex
	running bool

	// start launches the process; replaced in tests.
	start func(ctx context.Context, name string, args ...string) (wait func() error, err error)
}

// NewCommandNotifier looks up binary on PATH.
func NewCommandNotifier(binary string, rate int, log *utils.Logger) (*CommandNotifier, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("tts binary %q: %w", binary, err)
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	if log == nil {
		log = utils.Discard()
	}
	return &CommandNotifier{Binary: path, Rate: rate, Log: log, start: startProcess}, nil
}

func startProcess(ctx context.Context, name string, args ...string) (func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

// Say starts speaking text and returns without waiting for playback.
func (n *CommandNotifier) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		n.Log.Debug("tts busy, dropping %q", text)
		return nil
	}
	n.running = true
	n.mu.Unlock()

	wait, err := n.start(context.WithoutCancel(ctx), n.Binary, "-s", strconv.Itoa(n.Rate), text)
	if err != nil {
		n.setIdle()
		return fmt.Errorf("start %s: %w", n.Binary, err)
	}

	go func() {
		defer n.setIdle()
		if err := wait(); err != nil {
			n.Log.Warn("tts %s exited: %v", n.Binary, err)
		}
	}()
	return nil
}

func (n *CommandNotifier) setIdle() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()
}
