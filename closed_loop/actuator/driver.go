// Package actuator carries drive commands from the follow loop to the motor
// controller.
package actuator

import (
	"context"
	"sync"
)

// Driver accepts signed left/right drive magnitudes. (0, 0) stops the robot.
type Driver interface {
	Drive(ctx context.Context, left, right int) error
	Close() error
}

// GimbalMover is implemented by drivers that can point the camera gimbal.
type GimbalMover interface {
	MoveGimbal(ctx context.Context, g Gimbal) error
}

// Gimbal is a single camera position command.
type Gimbal struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Speed int `json:"speed"`
	Acc   int `json:"acc"`
}

// Command is one drive command as seen by a Recorder.
type Command struct {
	Left, Right int
}

// Recorder is an in-memory Driver for dry runs and tests.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	gimbals  []Gimbal
	closed   bool

	// DriveErr, when set, is returned by every Drive call after recording.
	DriveErr error
}

func (r *Recorder) Drive(_ context.Context, left, right int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Left: left, Right: right})
	return r.DriveErr
}

func (r *Recorder) MoveGimbal(_ context.Context, g Gimbal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gimbals = append(r.gimbals, g)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Commands returns a copy of every drive command received.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Last returns the most recent drive command.
func (r *Recorder) Last() (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return Command{}, false
	}
	return r.commands[len(r.commands)-1], true
}

// Gimbals returns a copy of every gimbal command received.
func (r *Recorder) Gimbals() []Gimbal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Gimbal, len(r.gimbals))
	copy(out, r.gimbals)
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
