package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// Motor controller JSON command types.
const (
	cmdSpeedCtrl = 11
	cmdGimbalPos = 133
)

// ErrShortWrite is returned when the port accepts fewer bytes than sent.
var ErrShortWrite = errors.New("short write to serial port")

// Port is the minimal serial port surface the driver needs.
type Port interface {
	io.Writer
	io.Closer
}

type driveCommand struct {
	T int `json:"T"`
	L int `json:"L"`
	R int `json:"R"`
}

type gimbalCommand struct {
	T   int `json:"T"`
	X   int `json:"X"`
	Y   int `json:"Y"`
	SPD int `json:"SPD"`
	ACC int `json:"ACC"`
}

// SerialDriver sends newline-terminated JSON commands over a UART.
type SerialDriver struct {
	mu   sync.Mutex
	port Port
}

// NewSerialDriver wraps an already open port.
func NewSerialDriver(port Port) *SerialDriver {
	return &SerialDriver{port: port}
}

// OpenSerialDriver opens the serial device at path.
func OpenSerialDriver(path string, opts PortOptions) (*SerialDriver, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewSerialDriver(port), nil
}

// Drive sends {"T":11,"L":left,"R":right}.
func (d *SerialDriver) Drive(ctx context.Context, left, right int) error {
	return d.send(ctx, driveCommand{T: cmdSpeedCtrl, L: left, R: right})
}

// MoveGimbal sends {"T":133,"X":x,"Y":y,"SPD":speed,"ACC":acc}.
func (d *SerialDriver) MoveGimbal(ctx context.Context, g Gimbal) error {
	return d.send(ctx, gimbalCommand{T: cmdGimbalPos, X: g.X, Y: g.Y, SPD: g.Speed, ACC: g.Acc})
}

func (d *SerialDriver) send(ctx context.Context, cmd any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.port.Write(line)
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if n != len(line) {
		return ErrShortWrite
	}
	return nil
}

func (d *SerialDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}
