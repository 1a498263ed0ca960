package follow

import (
	"fmt"
	"time"

	"follow-core/closed_loop/control"
)

// Config holds the follow loop setpoints, limits and per-axis gains.
type Config struct {
	// DesiredHeight is the apparent target height in pixels at the wanted
	// following distance; the speed axis drives toward it.
	DesiredHeight float64 `json:"desired_height"`

	// MaxDrive bounds each emitted drive magnitude to [-MaxDrive, MaxDrive].
	MaxDrive int `json:"max_drive"`

	// FailureTolerance is how many consecutive failed perception cycles are
	// absorbed before a TRACKING loop is forced to LOST. Negative disables
	// the forced transition.
	FailureTolerance int `json:"failure_tolerance"`

	// StopTimeoutMS bounds the final neutral command sent on exit.
	StopTimeoutMS int `json:"stop_timeout_ms"`

	Steering control.PIDConfig `json:"steering"`
	Speed    control.PIDConfig `json:"speed"`

	// Phrases announced on state changes; empty stays silent.
	AcquiredPhrase string `json:"acquired_phrase"`
	LostPhrase     string `json:"lost_phrase"`
}

// DefaultConfig returns gains tuned for a 640x480 camera at 30 fps driving
// a skid-steer base with 8-bit PWM commands.
func DefaultConfig() Config {
	return Config{
		DesiredHeight:    300,
		MaxDrive:         100,
		FailureTolerance: 5,
		StopTimeoutMS:    500,
		Steering: control.PIDConfig{
			Kp:            0.25,
			Ki:            0.02,
			Kd:            0.01,
			IntegralLimit: 200,
			OutputLimit:   60,
			SampleRate:    30,
		},
		Speed: control.PIDConfig{
			Kp:            0.4,
			Ki:            0.05,
			Kd:            0.02,
			IntegralLimit: 200,
			OutputLimit:   80,
			SampleRate:    30,
		},
	}
}

// Validate checks the loop configuration.
func (c Config) Validate() error {
	if c.MaxDrive <= 0 {
		return fmt.Errorf("invalid max_drive: %d (must be > 0)", c.MaxDrive)
	}
	if c.DesiredHeight < 0 {
		return fmt.Errorf("invalid desired_height: %v (must be >= 0)", c.DesiredHeight)
	}
	if c.StopTimeoutMS <= 0 {
		return fmt.Errorf("invalid stop_timeout_ms: %d (must be > 0)", c.StopTimeoutMS)
	}
	if err := c.Steering.Validate(); err != nil {
		return fmt.Errorf("steering: %w", err)
	}
	if err := c.Speed.Validate(); err != nil {
		return fmt.Errorf("speed: %w", err)
	}
	return nil
}

func (c Config) stopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}
