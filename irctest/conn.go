// Package irctest contains test doubles for exercising the gateway without
// real sockets or a real Slack workspace: a mock IRC client connection and
// scripted fakes for the two Slack client roles.
package irctest

import (
	"io"
	"strings"
	"sync"
	"time"
)

// NewConn creates a mock IRC client connection. The returned Conn is handed
// to the daemon as its io.ReadWriteCloser; the test drives the client side
// with Send and observes outbound protocol lines with Recv.
// Don't forget to close.
func NewConn() *Conn {
	c := &Conn{
		lines: make(chan string, 64),
	}
	c.inReader, c.inWriter = io.Pipe()
	return c
}

type Conn struct {
	inReader *io.PipeReader
	inWriter *io.PipeWriter

	mu      sync.Mutex
	partial string
	closed  bool

	lines chan string
}

// Read is how the gateway reads lines the client sent.
func (c *Conn) Read(p []byte) (int, error) {
	return c.inReader.Read(p)
}

// Write is how the gateway sends protocol lines to the client. Complete
// CR-LF-delimited lines are delivered to Recv with the line ending stripped.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.partial += string(p)
	for {
		i := strings.IndexByte(c.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(c.partial[:i], "\r")
		c.partial = c.partial[i+1:]
		select {
		case c.lines <- line:
		default:
			// an unread backlog this deep means the test lost track anyway
		}
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.inWriter.Close()
	_ = c.inReader.Close()
	return nil
}

// Send writes one line from the client to the gateway, appending CR-LF when
// missing. It blocks until the gateway's reader consumes the bytes.
func (c *Conn) Send(line string) {
	if !strings.HasSuffix(line, "\r\n") {
		line += "\r\n"
	}
	_, _ = c.inWriter.Write([]byte(line))
}

// Recv returns the next outbound protocol line, waiting up to timeout.
func (c *Conn) Recv(timeout time.Duration) (string, bool) {
	select {
	case line := <-c.lines:
		return line, true
	case <-time.After(timeout):
		return "", false
	}
}

// TryRecv returns an already-buffered outbound line without waiting.
func (c *Conn) TryRecv() (string, bool) {
	select {
	case line := <-c.lines:
		return line, true
	default:
		return "", false
	}
}
