package singleinstance

// Single-instance ownership and run-once delegation over a loopback TCP
// line protocol. The resident instance owns the first port of the
// configured range; later invocations find it by PING-scanning the range
// and hand their request over instead of starting a second copy.

import (
	"context"
)

// Kind says what a delegated request wants from the resident.
type Kind int

const (
	// KindCapture runs one interactive capture session.
	KindCapture Kind = iota
	// KindShow raises the resident's result window.
	KindShow
)

// Request is one parsed client request.
type Request struct {
	Kind           Kind
	OutputToStdout bool
}

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start binds the first port of the configured range and begins
	// accepting clients. A bind failure means another resident already
	// owns single-instance duty.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success. For stdout mode, send the recognized
	// text; for clipboard mode and SHOW, send empty text.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Client attempts to delegate an invocation to a resident server.
type Client interface {
	// TryRunOnce scans the TCP range, performs the PING handshake, and
	// delegates one capture session to the resident. If no resident is
	// found, returns delegated=false, err=nil.
	TryRunOnce(ctx context.Context, outputToStdout bool) (delegated bool, text string, err error)
	// TryShow asks a resident to raise its result window. If no resident
	// is found, returns delegated=false, err=nil.
	TryShow(ctx context.Context) (delegated bool, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }
