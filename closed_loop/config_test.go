package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"follow-core/closed_loop/actuator"
)

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"loop": {"target_class": "dog", "max_drive": 60},
		"speed": {"kp": 1.5, "output_limit": 50, "sample_rate": 15},
		"actuator": {"kind": "dry"},
		"gimbal": {"x": 10, "y": -5}
	}`))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, "dog", cfg.Loop.TargetClass)
	assert.Equal(t, 60, cfg.Loop.MaxDrive)
	assert.Equal(t, def.Loop.ConfidenceThreshold, cfg.Loop.ConfidenceThreshold)
	assert.Equal(t, def.Steering, cfg.Steering)

	// Fields missing from a present section keep their defaults.
	assert.Equal(t, 1.5, cfg.Speed.Kp)
	assert.Equal(t, def.Speed.Ki, cfg.Speed.Ki)
	assert.Equal(t, def.Speed.IntegralLimit, cfg.Speed.IntegralLimit)

	require.NotNil(t, cfg.Gimbal)
	assert.Equal(t, actuator.Gimbal{X: 10, Y: -5}, *cfg.Gimbal)

	fc := cfg.FollowConfig()
	assert.Equal(t, 60, fc.MaxDrive)
	assert.Equal(t, cfg.Speed, fc.Speed)

	sel := cfg.Selector()
	assert.Equal(t, "dog", sel.TargetClass)
	assert.Equal(t, 0.4, sel.Threshold)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":      `{"loop": {"target": "person"}}`,
		"malformed":          `{"loop": `,
		"unknown class":      `{"loop": {"target_class": "unicorn"}}`,
		"threshold range":    `{"loop": {"confidence_threshold": 1.2}}`,
		"max drive":          `{"loop": {"max_drive": 0}}`,
		"pid sample rate":    `{"steering": {"sample_rate": 0}}`,
		"pid negative limit": `{"speed": {"integral_limit": -1}}`,
		"vision backend":     `{"vision": {"backend": "lidar"}}`,
		"script path":        `{"vision": {"backend": "script"}}`,
		"actuator kind":      `{"actuator": {"kind": "pwm"}}`,
		"serial device":      `{"actuator": {"kind": "serial", "device": ""}}`,
		"serial parity":      `{"actuator": {"kind": "serial", "serial": {"parity": "mark"}}}`,
		"can frame":          `{"actuator": {"kind": "can", "can": {"drive_frame": ""}}}`,
		"notify kind":        `{"notify": {"kind": "email"}}`,
		"notify binary":      `{"notify": {"kind": "command", "binary": " "}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_ShippedFiles(t *testing.T) {
	cfg, err := LoadConfig("../config/follow.json")
	require.NoError(t, err)
	assert.Equal(t, "serial", cfg.Actuator.Kind)
	assert.Equal(t, "command", cfg.Notify.Kind)

	// The shipped file spells out the defaults for loop and gains.
	def := DefaultAppConfig()
	if diff := cmp.Diff(def.FollowConfig().Steering, cfg.Steering); diff != "" {
		t.Errorf("steering gains differ from defaults (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(def.Speed, cfg.Speed); diff != "" {
		t.Errorf("speed gains differ from defaults (-want +got):\n%s", diff)
	}

	replay, err := LoadConfig("../config/follow_replay.json")
	require.NoError(t, err)
	assert.Equal(t, "script", replay.Vision.Backend)
	assert.Equal(t, "dry", replay.Actuator.Kind)

	_, err = LoadConfig("../config/missing.json")
	assert.Error(t, err)
}
