//go:build !tinygo

package main

import (
	"bytes"
	"errors"
	"log"
	"net"
	"sync"
)

var errNoHost = errors.New("no host connected")

// tcpLink serves the telemetry link to one TCP client at a time, standing
// in for the USB CDC port
type tcpLink struct {
	mu   sync.Mutex
	conn net.Conn
	rx   bytes.Buffer
}

// serve accepts clients until the listener is closed. A new client
// replaces the current one.
func (l *tcpLink) serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		log.Printf("host connected from %s", conn.RemoteAddr())

		l.mu.Lock()
		if l.conn != nil {
			l.conn.Close()
		}
		l.conn = conn
		l.rx.Reset()
		l.mu.Unlock()

		go l.read(conn)
	}
}

func (l *tcpLink) read(conn net.Conn) {
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			l.mu.Lock()
			if l.conn == conn {
				l.rx.Write(buf[:n])
			}
			l.mu.Unlock()
		}
		if err != nil {
			l.mu.Lock()
			if l.conn == conn {
				l.conn = nil
				log.Printf("host disconnected: %v", err)
			}
			l.mu.Unlock()
			conn.Close()
			return
		}
	}
}

func (l *tcpLink) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.Len()
}

func (l *tcpLink) ReadByte() (byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.ReadByte()
}

func (l *tcpLink) Write(p []byte) (int, error) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return 0, errNoHost
	}
	return conn.Write(p)
}
