package viiper

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Alia5/midikeys/keyboard"
)

// Stream is the device stream of one virtual keyboard: input states go out,
// LED bytes come back.
type Stream struct {
	conn  net.Conn
	BusID uint32
	DevID string

	closeOnce sync.Once
	closeErr  error
}

// OpenStream connects to the stream channel of an existing device.
func (c *Client) OpenStream(ctx context.Context, busID uint32, devID string) (*Stream, error) {
	conn, err := c.transport.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "bus/%d/%s\x00", busID, devID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	return &Stream{conn: conn, BusID: busID, DevID: devID}, nil
}

func (s *Stream) Write(b []byte) (int, error) {
	return s.conn.Write(b)
}

// ReadLEDs delivers LED state changes to f until the stream closes or ctx
// ends. It blocks; run it on its own goroutine.
func (s *Stream) ReadLEDs(ctx context.Context, f func(keyboard.LEDState)) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	var b [1]byte
	for {
		if _, err := io.ReadFull(s.conn, b[:]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		var st keyboard.LEDState
		if err := st.UnmarshalBinary(b[:]); err != nil {
			return err
		}
		f(st)
	}
}

func (s *Stream) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.conn.Close() })
	return s.closeErr
}
