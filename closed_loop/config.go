package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"follow-core/closed_loop/actuator"
	"follow-core/closed_loop/control"
	"follow-core/closed_loop/follow"
	"follow-core/closed_loop/notify"
	"follow-core/closed_loop/perception"
	"follow-core/closed_loop/vision"
)

// AppConfig is the complete on-disk configuration of the follow robot.
type AppConfig struct {
	Loop     LoopConfig        `json:"loop"`
	Steering control.PIDConfig `json:"steering"`
	Speed    control.PIDConfig `json:"speed"`
	Vision   VisionConfig      `json:"vision"`
	Actuator ActuatorConfig    `json:"actuator"`
	Gimbal   *actuator.Gimbal  `json:"gimbal,omitempty"` // Optional startup camera position
	Notify   NotifyConfig      `json:"notify"`
	Log      LogConfig         `json:"log"`
}

// LoopConfig holds target selection and loop behaviour
type LoopConfig struct {
	TargetClass         string  `json:"target_class"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	DesiredHeight       float64 `json:"desired_height"`
	MaxDrive            int     `json:"max_drive"`
	FailureTolerance    int     `json:"failure_tolerance"`
	StopTimeoutMS       int     `json:"stop_timeout_ms"`
	AcquiredPhrase      string  `json:"acquired_phrase"`
	LostPhrase          string  `json:"lost_phrase"`
}

// VisionConfig selects the perception backend: "gocv" or "script"
type VisionConfig struct {
	Backend string            `json:"backend"`
	Script  string            `json:"script,omitempty"`
	GoCV    vision.GoCVConfig `json:"gocv"`
}

// ActuatorConfig selects the motor controller link: "serial", "can" or "dry"
type ActuatorConfig struct {
	Kind   string               `json:"kind"`
	Device string               `json:"device,omitempty"`
	Serial actuator.PortOptions `json:"serial"`
	CAN    CANConfig            `json:"can"`
}

type CANConfig struct {
	Interface   string `json:"interface"`
	MapPath     string `json:"map"`
	DriveFrame  string `json:"drive_frame"`
	GimbalFrame string `json:"gimbal_frame,omitempty"`
}

// NotifyConfig selects how state changes are announced: "none", "log" or "command"
type NotifyConfig struct {
	Kind   string `json:"kind"`
	Binary string `json:"binary,omitempty"`
	Rate   int    `json:"rate,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level"`
	File   string `json:"file"`
	Stdout bool   `json:"stdout"`
}

// DefaultAppConfig returns the configuration used for any field the file
// leaves out.
func DefaultAppConfig() AppConfig {
	loop := follow.DefaultConfig()
	return AppConfig{
		Loop: LoopConfig{
			TargetClass:         "person",
			ConfidenceThreshold: 0.4,
			DesiredHeight:       loop.DesiredHeight,
			MaxDrive:            loop.MaxDrive,
			FailureTolerance:    loop.FailureTolerance,
			StopTimeoutMS:       loop.StopTimeoutMS,
		},
		Steering: loop.Steering,
		Speed:    loop.Speed,
		Vision: VisionConfig{
			Backend: "gocv",
			GoCV: vision.GoCVConfig{
				Device:   "0",
				Width:    640,
				Height:   480,
				Prototxt: "models/deploy.prototxt",
				Model:    "models/mobilenet_iter_73000.caffemodel",
			},
		},
		Actuator: ActuatorConfig{
			Kind:   "serial",
			Device: "/dev/ttyAMA0",
			CAN: CANConfig{
				Interface:   "can0",
				MapPath:     "config/can/drive_map.csv",
				DriveFrame:  "DRIVE_CMD_1",
				GimbalFrame: "GIMBAL_CMD_1",
			},
		},
		Notify: NotifyConfig{Kind: "none", Binary: "espeak", Rate: notify.DefaultRate},
		Log:    LogConfig{Level: "info", File: "follow.log", Stdout: true},
	}
}

// LoadConfig reads a JSON config file over the defaults and validates it.
func LoadConfig(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes data over the defaults and validates the result.
// Unknown fields are rejected.
func ParseConfig(data []byte) (AppConfig, error) {
	cfg := DefaultAppConfig()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c AppConfig) Validate() error {
	if !perception.VOCLabels.Contains(c.Loop.TargetClass) {
		return fmt.Errorf("unknown target_class %q", c.Loop.TargetClass)
	}
	if c.Loop.ConfidenceThreshold < 0 || c.Loop.ConfidenceThreshold >= 1 {
		return fmt.Errorf("invalid confidence_threshold: %v (must be in [0, 1))", c.Loop.ConfidenceThreshold)
	}
	if err := c.FollowConfig().Validate(); err != nil {
		return fmt.Errorf("loop: %w", err)
	}

	switch c.Vision.Backend {
	case "gocv":
		if c.Vision.GoCV.Prototxt == "" || c.Vision.GoCV.Model == "" {
			return fmt.Errorf("vision: gocv backend requires prototxt and model")
		}
	case "script":
		if c.Vision.Script == "" {
			return fmt.Errorf("vision: script backend requires a script path")
		}
	default:
		return fmt.Errorf("vision: unknown backend %q", c.Vision.Backend)
	}

	switch c.Actuator.Kind {
	case "serial":
		if c.Actuator.Device == "" {
			return fmt.Errorf("actuator: serial requires a device")
		}
		if _, err := c.Actuator.Serial.Normalize(); err != nil {
			return fmt.Errorf("actuator: %w", err)
		}
	case "can":
		if c.Actuator.CAN.Interface == "" || c.Actuator.CAN.MapPath == "" || c.Actuator.CAN.DriveFrame == "" {
			return fmt.Errorf("actuator: can requires interface, map and drive_frame")
		}
	case "dry":
	default:
		return fmt.Errorf("actuator: unknown kind %q", c.Actuator.Kind)
	}

	switch c.Notify.Kind {
	case "none", "log":
	case "command":
		if strings.TrimSpace(c.Notify.Binary) == "" {
			return fmt.Errorf("notify: command requires a binary")
		}
	default:
		return fmt.Errorf("notify: unknown kind %q", c.Notify.Kind)
	}

	return nil
}

// FollowConfig assembles the loop section and both PID axes.
func (c AppConfig) FollowConfig() follow.Config {
	return follow.Config{
		DesiredHeight:    c.Loop.DesiredHeight,
		MaxDrive:         c.Loop.MaxDrive,
		FailureTolerance: c.Loop.FailureTolerance,
		StopTimeoutMS:    c.Loop.StopTimeoutMS,
		Steering:         c.Steering,
		Speed:            c.Speed,
		AcquiredPhrase:   c.Loop.AcquiredPhrase,
		LostPhrase:       c.Loop.LostPhrase,
	}
}

// Selector builds the perception target selector.
func (c AppConfig) Selector() perception.Selector {
	return perception.Selector{
		Labels:      perception.VOCLabels,
		TargetClass: c.Loop.TargetClass,
		Threshold:   c.Loop.ConfidenceThreshold,
	}
}
