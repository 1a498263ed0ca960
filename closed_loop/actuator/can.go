package actuator

import (
	"context"
	"fmt"

	"follow-core/utils"
)

// Signal names the CAN drive frame must carry.
const (
	SignalLeft   = "left_cmd"
	SignalRight  = "right_cmd"
	SignalEnable = "drive_enable"
)

// Signal names of the optional gimbal frame.
const (
	SignalPan   = "pan_deg"
	SignalTilt  = "tilt_deg"
	SignalSpeed = "speed"
	SignalAccel = "accel"
)

// CANDriver encodes drive commands into a CAN frame described by a CAN map.
type CANDriver struct {
	writer utils.CANWriter
	drive  *utils.FrameDef
	gimbal *utils.FrameDef
}

// NewCANDriver validates that driveFrame carries the left/right signals.
// gimbalFrame may be empty, in which case MoveGimbal reports an error.
func NewCANDriver(writer utils.CANWriter, cmap *utils.CANMap, driveFrame, gimbalFrame string) (*CANDriver, error) {
	fd, err := cmap.FrameByName(driveFrame)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{SignalLeft, SignalRight} {
		if _, ok := fd.Signal(name); !ok {
			return nil, fmt.Errorf("frame %s has no %s signal", fd.Name, name)
		}
	}

	d := &CANDriver{writer: writer, drive: fd}
	if gimbalFrame != "" {
		if d.gimbal, err = cmap.FrameByName(gimbalFrame); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// OpenCANDriver loads the CAN map and dials SocketCAN on iface.
func OpenCANDriver(ctx context.Context, iface, mapPath, driveFrame, gimbalFrame string) (*CANDriver, error) {
	cmap, err := utils.LoadCANMap(mapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}
	writer, err := utils.NewSocketCANWriter(ctx, iface)
	if err != nil {
		return nil, err
	}
	d, err := NewCANDriver(writer, cmap, driveFrame, gimbalFrame)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}
	return d, nil
}

// Drive transmits one drive frame. drive_enable drops to 0 on the neutral
// command when the map defines it.
func (d *CANDriver) Drive(ctx context.Context, left, right int) error {
	enable := 1.0
	if left == 0 && right == 0 {
		enable = 0
	}
	frame, err := d.drive.EncodeFrame(map[string]float64{
		SignalLeft:   float64(left),
		SignalRight:  float64(right),
		SignalEnable: enable,
	})
	if err != nil {
		return err
	}
	return d.writer.WriteFrame(ctx, frame)
}

func (d *CANDriver) MoveGimbal(ctx context.Context, g Gimbal) error {
	if d.gimbal == nil {
		return fmt.Errorf("no gimbal frame configured")
	}
	frame, err := d.gimbal.EncodeFrame(map[string]float64{
		SignalPan:   float64(g.X),
		SignalTilt:  float64(g.Y),
		SignalSpeed: float64(g.Speed),
		SignalAccel: float64(g.Acc),
	})
	if err != nil {
		return err
	}
	return d.writer.WriteFrame(ctx, frame)
}

func (d *CANDriver) Close() error {
	return d.writer.Close()
}
