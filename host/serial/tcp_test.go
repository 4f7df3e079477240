package serial

import (
	"io"
	"net"
	"testing"
	"time"
)

func TestTCPPortTimeoutIsEOF(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("no loopback: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	cfg := DefaultConfig(TCPPrefix + ln.Addr().String())
	cfg.ReadTimeout = 20 * time.Millisecond
	if !IsTCP(cfg.Device) {
		t.Fatalf("%q should be a TCP device", cfg.Device)
	}
	port, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer port.Close()
	server := <-accepted
	defer server.Close()

	buf := make([]byte, 8)
	if n, err := port.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("Expected a timed out read to return 0, io.EOF; got %d, %v", n, err)
	}

	server.Write([]byte{0x7E})
	if n, err := port.Read(buf); n != 1 || err != nil || buf[0] != 0x7E {
		t.Errorf("Expected the sync byte, got %d, %v, %v", n, err, buf[:n])
	}
}
