package control

// PIDController implements a discrete PID controller for one control axis.
//
// The integral accumulator is clamped on every update (anti-windup) and the
// final output is clamped to the configured output limit. A controller is
// owned by a single axis and is not safe for concurrent use.
type PIDController struct {
	cfg PIDConfig

	// State
	integral    float64
	prevError   float64
	initialized bool

	// Last computed terms, kept for diagnostics only
	lastP, lastI, lastD float64
	lastOutput          float64
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state.
//
// Call it whenever the error signal is expected to jump (target reacquired
// after loss, axis reconfigured) so the next derivative is not computed
// against an unrelated previous error.
func (pid *PIDController) Reset() {
	pid.integral = 0.0
	pid.prevError = 0.0
	pid.initialized = false
	pid.lastP, pid.lastI, pid.lastD = 0, 0, 0
	pid.lastOutput = 0
}

// Compute returns the bounded control output for the given error and time
// delta in seconds. A non-positive dt is replaced by the nominal sample
// period 1/SampleRate.
func (pid *PIDController) Compute(error float64, dt float64) float64 {
	if dt <= 0 {
		dt = pid.cfg.SamplePeriod()
	}

	// Integral term with anti-windup on the accumulator itself
	pid.integral = Clamp(pid.integral+error*dt, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)

	// Derivative term, zero until a previous error exists
	derivative := 0.0
	if pid.initialized {
		derivative = (error - pid.prevError) / dt
	}
	pid.prevError = error
	pid.initialized = true

	pid.lastP = pid.cfg.Kp * error
	pid.lastI = pid.cfg.Ki * pid.integral
	pid.lastD = pid.cfg.Kd * derivative

	pid.lastOutput = Clamp(pid.lastP+pid.lastI+pid.lastD, -pid.cfg.OutputLimit, pid.cfg.OutputLimit)
	return pid.lastOutput
}

// Diagnostics returns current PID state for logging/debugging
func (pid *PIDController) Diagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:       pid.prevError,
		Integral:    pid.integral,
		P:           pid.lastP,
		I:           pid.lastI,
		D:           pid.lastD,
		Output:      pid.lastOutput,
		Initialized: pid.initialized,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error       float64
	Integral    float64
	P           float64
	I           float64
	D           float64
	Output      float64
	Initialized bool
}

// Config returns the controller configuration.
func (pid *PIDController) Config() PIDConfig {
	return pid.cfg
}

// Integral returns the current integral accumulator value
func (pid *PIDController) Integral() float64 {
	return pid.integral
}
