package control

import (
	"fmt"
	"math"
)

// PIDConfig holds PID controller parameters
type PIDConfig struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	IntegralLimit float64 `json:"integral_limit"`
	OutputLimit   float64 `json:"output_limit"`
	SampleRate    float64 `json:"sample_rate"` // Hz, only used as the fallback time step
}

// SamplePeriod returns the nominal time step in seconds.
func (c PIDConfig) SamplePeriod() float64 {
	return 1.0 / c.SampleRate
}

// Validate checks limits and sample rate. Gains may take any finite value.
func (c PIDConfig) Validate() error {
	for name, v := range map[string]float64{"kp": c.Kp, "ki": c.Ki, "kd": c.Kd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	if c.IntegralLimit < 0 || math.IsNaN(c.IntegralLimit) {
		return fmt.Errorf("invalid integral_limit: %v (must be >= 0)", c.IntegralLimit)
	}
	if c.OutputLimit < 0 || math.IsNaN(c.OutputLimit) {
		return fmt.Errorf("invalid output_limit: %v (must be >= 0)", c.OutputLimit)
	}
	if !(c.SampleRate > 0) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("invalid sample_rate: %v (must be > 0)", c.SampleRate)
	}
	return nil
}
