// Package follow runs the closed loop that steers the robot toward a tracked
// target: one PID controller for steering, one for forward speed.
package follow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"follow-core/closed_loop/actuator"
	"follow-core/closed_loop/control"
	"follow-core/closed_loop/notify"
	"follow-core/closed_loop/perception"
	"follow-core/utils"
)

var (
	// ErrSourceFailure wraps image source errors; they end the loop.
	ErrSourceFailure = errors.New("image source failure")
	// ErrActuatorFailure wraps drive command errors; they end the loop.
	ErrActuatorFailure = errors.New("actuator failure")
)

// State is the loop's tracking state.
type State int

const (
	StateLost State = iota
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateLost:
		return "LOST"
	case StateTracking:
		return "TRACKING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ActuatorCommand is a bounded left/right drive pair.
type ActuatorCommand struct {
	Left, Right int
}

// Neutral is the stop command.
var Neutral = ActuatorCommand{}

// Perceiver yields one perception result per call. A returned error means
// no frame could be produced.
type Perceiver interface {
	Perceive(ctx context.Context) (perception.Result, error)
}

// Loop is the follow control loop. It is driven from a single goroutine.
type Loop struct {
	cfg       Config
	perceiver Perceiver
	driver    actuator.Driver
	steering  *control.PIDController
	speed     *control.PIDController

	clock    utils.Clock
	log      *utils.Logger
	notifier notify.Notifier

	state      State
	failures   int
	lastUpdate time.Time
	last       ActuatorCommand
	cycles     uint64
}

// Option customizes a Loop.
type Option func(*Loop)

func WithClock(c utils.Clock) Option { return func(l *Loop) { l.clock = c } }

func WithLogger(log *utils.Logger) Option { return func(l *Loop) { l.log = log } }

func WithNotifier(n notify.Notifier) Option { return func(l *Loop) { l.notifier = n } }

// New builds a loop in the LOST state.
func New(cfg Config, perceiver Perceiver, driver actuator.Driver, opts ...Option) (*Loop, error) {
	if perceiver == nil || driver == nil {
		return nil, errors.New("follow loop requires a perceiver and a driver")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:       cfg,
		perceiver: perceiver,
		driver:    driver,
		steering:  control.NewPIDController(cfg.Steering),
		speed:     control.NewPIDController(cfg.Speed),
		clock:     utils.RealClock{},
		log:       utils.Discard(),
		notifier:  notify.Nop{},
		state:     StateLost,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes cycles until ctx is done or a source or actuator failure
// occurs. Whatever the exit path, a final neutral command is attempted
// before Run returns.
func (l *Loop) Run(ctx context.Context) (err error) {
	session := uuid.NewString()
	l.log.Info("Follow loop %s started: desired_height=%.0f max_drive=%d", session, l.cfg.DesiredHeight, l.cfg.MaxDrive)

	defer func() {
		if stopErr := l.Stop(ctx); stopErr != nil {
			l.log.Critical("Neutral command on exit failed: %v", stopErr)
			err = errors.Join(err, stopErr)
		}
		l.log.Info("Follow loop %s stopped after %d cycles", session, l.cycles)
	}()

	for {
		if err := ctx.Err(); err != nil {
			l.log.Warn("Context canceled; stopping follow loop")
			return err
		}
		if _, err := l.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// Step runs one perceive/compute/emit cycle and returns the emitted command.
func (l *Loop) Step(ctx context.Context) (ActuatorCommand, error) {
	res, err := l.perceiver.Perceive(ctx)
	if err != nil {
		return Neutral, fmt.Errorf("%w: %w", ErrSourceFailure, err)
	}
	l.cycles++

	cmd := l.update(ctx, res)
	if err := l.driver.Drive(ctx, cmd.Left, cmd.Right); err != nil {
		l.log.Critical("Drive (%d, %d) failed: %v", cmd.Left, cmd.Right, err)
		return cmd, fmt.Errorf("%w: %w", ErrActuatorFailure, err)
	}
	l.last = cmd

	if l.log.Enabled(utils.TRACE) {
		l.log.Trace("cycle=%d outcome=%s state=%s cmd=(%d, %d)", l.cycles, res.Outcome, l.state, cmd.Left, cmd.Right)
	}
	return cmd, nil
}

// Stop sends the neutral command on a context detached from ctx's
// cancellation and returns the loop to LOST.
func (l *Loop) Stop(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.cfg.stopTimeout())
	defer cancel()

	l.state = StateLost
	l.lastUpdate = time.Time{}
	l.failures = 0

	if err := l.driver.Drive(stopCtx, Neutral.Left, Neutral.Right); err != nil {
		return fmt.Errorf("%w: %w", ErrActuatorFailure, err)
	}
	l.last = Neutral
	return nil
}

func (l *Loop) update(ctx context.Context, res perception.Result) ActuatorCommand {
	switch res.Outcome {
	case perception.OutcomeFound:
		l.failures = 0
		if l.state == StateLost {
			l.steering.Reset()
			l.speed.Reset()
			l.transition(ctx, StateTracking)
		}
		return l.track(res.Measurement)

	case perception.OutcomeFailed:
		l.failures++
		l.log.Debug("Perception failed (%d consecutive): %v", l.failures, res.Err)
		if l.state == StateTracking && l.cfg.FailureTolerance >= 0 && l.failures > l.cfg.FailureTolerance {
			l.transition(ctx, StateLost)
		}
		return Neutral

	default:
		l.failures = 0
		if l.state == StateTracking {
			l.transition(ctx, StateLost)
		}
		return Neutral
	}
}

func (l *Loop) track(m perception.Measurement) ActuatorCommand {
	now := l.clock.Now()
	dt := 0.0
	if !l.lastUpdate.IsZero() {
		dt = now.Sub(l.lastUpdate).Seconds()
	}
	l.lastUpdate = now

	steerErr := float64(m.CenterX) - float64(m.FrameWidth)/2
	sizeErr := l.cfg.DesiredHeight - float64(m.Height)

	steer := l.steering.Compute(steerErr, dt)
	speed := l.speed.Compute(sizeErr, dt)
	return l.mix(steer, speed)
}

// mix converts steering and speed outputs into a differential drive pair.
// Positive steering turns right by driving the left side harder.
func (l *Loop) mix(steer, speed float64) ActuatorCommand {
	bound := l.cfg.MaxDrive
	return ActuatorCommand{
		Left:  control.ClampInt(int(math.Round(speed+steer)), -bound, bound),
		Right: control.ClampInt(int(math.Round(speed-steer)), -bound, bound),
	}
}

func (l *Loop) transition(ctx context.Context, next State) {
	prev := l.state
	l.state = next
	l.log.Info("Target %s -> %s after %d cycles", prev, next, l.cycles)

	phrase := l.cfg.AcquiredPhrase
	if next == StateLost {
		phrase = l.cfg.LostPhrase
		l.lastUpdate = time.Time{}
	}
	if err := l.notifier.Say(ctx, phrase); err != nil {
		l.log.Warn("Notify %q failed: %v", phrase, err)
	}
}

// Snapshot is a point-in-time view of the loop for monitoring.
type Snapshot struct {
	State               State
	Cycles              uint64
	Last                ActuatorCommand
	ConsecutiveFailures int
	Steering            control.PIDDiagnostics
	Speed               control.PIDDiagnostics
}

// Snapshot returns the current loop state.
func (l *Loop) Snapshot() Snapshot {
	return Snapshot{
		State:               l.state,
		Cycles:              l.cycles,
		Last:                l.last,
		ConsecutiveFailures: l.failures,
		Steering:            l.steering.Diagnostics(),
		Speed:               l.speed.Diagnostics(),
	}
}
