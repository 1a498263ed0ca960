package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"follow-core/closed_loop/actuator"
	"follow-core/closed_loop/follow"
	"follow-core/closed_loop/notify"
	"follow-core/closed_loop/perception"
	"follow-core/closed_loop/vision"
	"follow-core/utils"
)

type Runner struct {
	cfg      AppConfig
	log      *utils.Logger
	driver   actuator.Driver
	pipeline *vision.Pipeline
	detector *perception.Detector
	loop     *follow.Loop
}

func NewRunner(ctx context.Context, cfg AppConfig, log *utils.Logger) (*Runner, error) {
	driver, err := openDriver(ctx, cfg.Actuator)
	if err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}

	pipeline, err := openVision(cfg.Vision)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("vision: %w", err)
	}

	r := &Runner{cfg: cfg, log: log, driver: driver, pipeline: pipeline}

	r.detector, err = perception.NewDetector(pipeline.Source, pipeline.Net, pipeline.Annotator, cfg.Selector(), log)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("detector: %w", err)
	}

	notifier, err := openNotifier(cfg.Notify, log)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("notify: %w", err)
	}

	r.loop, err = follow.New(cfg.FollowConfig(), r.detector, driver,
		follow.WithLogger(log),
		follow.WithNotifier(notifier))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("loop: %w", err)
	}

	log.Info("Follow runner ready: target=%s threshold=%.2f vision=%s actuator=%s notify=%s",
		cfg.Loop.TargetClass, cfg.Loop.ConfidenceThreshold, cfg.Vision.Backend, cfg.Actuator.Kind, cfg.Notify.Kind)
	log.Debug("Steering PID: Kp=%.3f Ki=%.3f Kd=%.3f limit=%.1f", cfg.Steering.Kp, cfg.Steering.Ki, cfg.Steering.Kd, cfg.Steering.OutputLimit)
	log.Debug("Speed PID: Kp=%.3f Ki=%.3f Kd=%.3f limit=%.1f", cfg.Speed.Kp, cfg.Speed.Ki, cfg.Speed.Kd, cfg.Speed.OutputLimit)

	return r, nil
}

func (r *Runner) Close() error {
	var errs []error
	if r.pipeline != nil {
		errs = append(errs, r.pipeline.Close())
	}
	if r.driver != nil {
		errs = append(errs, r.driver.Close())
	}
	return errors.Join(errs...)
}

// Run points the gimbal, then runs the follow loop until ctx is done, the
// loop fails, or a replay script ends.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.Gimbal != nil {
		r.positionGimbal(ctx, *r.cfg.Gimbal)
	}

	err := r.loop.Run(ctx)

	snap := r.loop.Snapshot()
	r.log.Info("Completed follow run. cycles=%d state=%s last=(%d, %d)",
		snap.Cycles, snap.State, snap.Last.Left, snap.Last.Right)
	r.log.Debug("Steering PID: err=%.1f I=%.2f out=%.2f; Speed PID: err=%.1f I=%.2f out=%.2f",
		snap.Steering.Error, snap.Steering.Integral, snap.Steering.Output,
		snap.Speed.Error, snap.Speed.Integral, snap.Speed.Output)

	// A replay script running out is a normal end of run.
	if errors.Is(err, follow.ErrSourceFailure) && errors.Is(err, io.EOF) && !errors.Is(err, follow.ErrActuatorFailure) {
		r.log.Info("Image source exhausted")
		return nil
	}
	return err
}

func (r *Runner) positionGimbal(ctx context.Context, g actuator.Gimbal) {
	mover, ok := r.driver.(actuator.GimbalMover)
	if !ok {
		r.log.Warn("Actuator %s cannot move the gimbal; skipping", r.cfg.Actuator.Kind)
		return
	}
	if err := mover.MoveGimbal(ctx, g); err != nil {
		r.log.Error("Gimbal move to (%d, %d) failed: %v", g.X, g.Y, err)
		return
	}
	r.log.Info("Gimbal positioned: x=%d y=%d speed=%d acc=%d", g.X, g.Y, g.Speed, g.Acc)
}

func openDriver(ctx context.Context, cfg ActuatorConfig) (actuator.Driver, error) {
	switch cfg.Kind {
	case "serial":
		return actuator.OpenSerialDriver(cfg.Device, cfg.Serial)
	case "can":
		return actuator.OpenCANDriver(ctx, cfg.CAN.Interface, cfg.CAN.MapPath, cfg.CAN.DriveFrame, cfg.CAN.GimbalFrame)
	case "dry":
		return &actuator.Recorder{}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}

func openVision(cfg VisionConfig) (*vision.Pipeline, error) {
	switch cfg.Backend {
	case "gocv":
		return vision.OpenGoCV(cfg.GoCV)
	case "script":
		s, err := vision.OpenScript(cfg.Script)
		if err != nil {
			return nil, err
		}
		return s.Pipeline(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func openNotifier(cfg NotifyConfig, log *utils.Logger) (notify.Notifier, error) {
	switch cfg.Kind {
	case "", "none":
		return notify.Nop{}, nil
	case "log":
		return notify.LogNotifier{Log: log}, nil
	case "command":
		return notify.NewCommandNotifier(cfg.Binary, cfg.Rate, log)
	default:
		return nil, fmt.Errorf("unknown kind %q", cfg.Kind)
	}
}
