package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"follow-core/closed_loop/actuator"
	"follow-core/closed_loop/follow"
	"follow-core/utils"
)

const runnerReplay = `{"detections":[{"class":15,"confidence":0.9,"box":[0.4,0.2,0.6,0.6]}]}
{"detections":[{"class":15,"confidence":0.9,"box":[0.4,0.2,0.6,0.6]}]}
{"detections":[]}
{"fail":"inference timeout"}
{"detections":[{"class":15,"confidence":0.9,"box":[0.4,0.2,0.6,0.6]}]}
`

func replayConfig(t *testing.T) AppConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "replay.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(runnerReplay), 0o644))

	cfg := DefaultAppConfig()
	cfg.Vision.Backend = "script"
	cfg.Vision.Script = path
	cfg.Actuator.Kind = "dry"
	cfg.Notify.Kind = "log"
	cfg.Loop.AcquiredPhrase = "target acquired"
	cfg.Loop.LostPhrase = "target lost"
	cfg.Gimbal = &actuator.Gimbal{X: 0, Y: 15}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunner_DryReplay(t *testing.T) {
	var buf bytes.Buffer
	log := utils.NewLogger(&buf, utils.DEBUG)

	r, err := NewRunner(context.Background(), replayConfig(t), log)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()), "end of script is a clean exit")

	rec, ok := r.driver.(*actuator.Recorder)
	require.True(t, ok)

	cmds := rec.Commands()
	require.Len(t, cmds, 6, "one command per frame plus the final neutral")
	assert.NotEqual(t, actuator.Command{}, cmds[0])
	assert.Equal(t, actuator.Command{}, cmds[2], "loss emits neutral")
	assert.Equal(t, actuator.Command{}, cmds[3], "failure emits neutral")
	assert.NotEqual(t, actuator.Command{}, cmds[4])
	assert.Equal(t, actuator.Command{}, cmds[5])

	// The target is centered and too small, so both sides drive forward equally.
	assert.Equal(t, cmds[0].Left, cmds[0].Right)
	assert.Positive(t, cmds[0].Left)

	assert.Equal(t, []actuator.Gimbal{{X: 0, Y: 15}}, rec.Gimbals())
	assert.Equal(t, follow.StateLost, r.loop.Snapshot().State)

	out := buf.String()
	assert.Contains(t, out, "say: target acquired")
	assert.Contains(t, out, "say: target lost")
	assert.Contains(t, out, "Image source exhausted")

	require.NoError(t, r.Close())
	assert.True(t, rec.Closed())
}

func TestRunner_ActuatorFailure(t *testing.T) {
	r, err := NewRunner(context.Background(), replayConfig(t), utils.Discard())
	require.NoError(t, err)
	defer r.Close()

	rec := r.driver.(*actuator.Recorder)
	rec.DriveErr = assert.AnError

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, follow.ErrActuatorFailure)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewRunner_Errors(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Vision.Script = filepath.Join(t.TempDir(), "missing.jsonl")
	_, err := NewRunner(context.Background(), cfg, utils.Discard())
	assert.ErrorContains(t, err, "vision")

	cfg = replayConfig(t)
	cfg.Notify = NotifyConfig{Kind: "command", Binary: "definitely-not-a-tts-binary"}
	_, err = NewRunner(context.Background(), cfg, utils.Discard())
	assert.ErrorContains(t, err, "notify")

	cfg = replayConfig(t)
	cfg.Loop.TargetClass = "unicorn"
	_, err = NewRunner(context.Background(), cfg, utils.Discard())
	assert.ErrorContains(t, err, "detector")
}
