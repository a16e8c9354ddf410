package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// DefaultFrameID carries the command on the bus.
const DefaultFrameID = 0x120

// frameScale maps the normalised [-1, 1] range onto a signed 16-bit field.
const frameScale = math.MaxInt16

var ErrFrame = errors.New("actuator: malformed command frame")

// FrameTransmitter is satisfied by *socketcan.Transmitter.
type FrameTransmitter interface {
	TransmitFrame(ctx context.Context, f can.Frame) error
}

// EncodeFrame packs a normalised command into a 4-byte frame: steering in
// bits 0-15 and throttle in bits 16-31, both little-endian signed.
func EncodeFrame(id uint32, norm Command) can.Frame {
	f := can.Frame{ID: id, Length: 4}
	f.Data.SetSignedBitsLittleEndian(0, 16, int64(math.Round(norm.Steer*frameScale)))
	f.Data.SetSignedBitsLittleEndian(16, 16, int64(math.Round(norm.Accel*frameScale)))
	return f
}

func DecodeFrame(f can.Frame) (Command, error) {
	if f.Length != 4 || f.IsRemote {
		return Command{}, fmt.Errorf("id 0x%X length %d: %w", f.ID, f.Length, ErrFrame)
	}
	return Command{
		Steer: float64(f.Data.SignedBitsLittleEndian(0, 16)) / frameScale,
		Accel: float64(f.Data.SignedBitsLittleEndian(16, 16)) / frameScale,
	}, nil
}

type CANSink struct {
	tx   FrameTransmitter
	conn net.Conn
	id   uint32
	norm Normalizer
}

func NewCANSink(tx FrameTransmitter, id uint32, norm Normalizer) *CANSink {
	return &CANSink{tx: tx, id: id, norm: norm}
}

// DialCAN opens a SocketCAN interface such as "vcan0".
func DialCAN(ctx context.Context, iface string, id uint32, norm Normalizer) (*CANSink, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	s := NewCANSink(socketcan.NewTransmitter(conn), id, norm)
	s.conn = conn
	return s, nil
}

func (s *CANSink) Send(ctx context.Context, cmd Command) error {
	f := EncodeFrame(s.id, s.norm.Normalize(cmd))
	if err := f.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrFrame, err)
	}
	return s.tx.TransmitFrame(ctx, f)
}

func (s *CANSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
