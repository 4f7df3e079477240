package serial

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// TCPPrefix selects a TCP connection instead of a serial device, e.g.
// "tcp://localhost:5555" for the desktop simulator
const TCPPrefix = "tcp://"

// IsTCP reports whether device names a TCP endpoint
func IsTCP(device string) bool {
	return strings.HasPrefix(device, TCPPrefix)
}

// TCPPort is a Port over a TCP connection. Reads time out like a serial
// port: io.EOF with no data.
type TCPPort struct {
	conn        net.Conn
	readTimeout time.Duration
}

// OpenTCP dials the address after the tcp:// prefix
func OpenTCP(cfg *Config) (*TCPPort, error) {
	addr := strings.TrimPrefix(cfg.Device, TCPPrefix)
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &TCPPort{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

func (p *TCPPort) Read(b []byte) (int, error) {
	if p.readTimeout > 0 {
		p.conn.SetReadDeadline(time.Now().Add(p.readTimeout))
	}
	n, err := p.conn.Read(b)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, io.EOF
	}
	if errors.Is(err, net.ErrClosed) {
		return n, os.ErrClosed
	}
	if err == io.EOF {
		// The peer hung up; a serial EOF would mean a timeout instead
		return n, io.ErrClosedPipe
	}
	return n, err
}

func (p *TCPPort) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (p *TCPPort) Close() error {
	return p.conn.Close()
}

// Flush is a no-op; TCP has no stale input from an earlier session
func (p *TCPPort) Flush() error {
	return nil
}
