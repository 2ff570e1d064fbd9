package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

// Wire protocol: one verb line from the client, then a status line and
// optional body from the resident.
const (
	residentHost = "127.0.0.1"

	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	verbShow      = "SHOW\n"
	verbStdout    = "STDOUT\n"
	verbClipboard = "CLIPBOARD\n"

	successLine = "SUCCESS\n"
	errorLine   = "ERROR\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	lis      net.Listener
	incoming chan *tcpConn
	port     int
}

func newTcpServer() Server { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

// Start binds ONLY the start port of the configured range. If occupied,
// another resident already owns single-instance duty and Start fails.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = start
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)

		var req Request
		switch line {
		case pingRequest:
			log.Printf("singleinstance: PING from %s -> PONG", remote)
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		case verbShow:
			req = Request{Kind: KindShow}
		case verbStdout:
			req = Request{Kind: KindCapture, OutputToStdout: true}
		case verbClipboard:
			req = Request{Kind: KindCapture}
		default:
			log.Printf("singleinstance: unknown verb from %s: %q", remote, strings.TrimSpace(line))
			_, _ = bw.WriteString(errorLine + "unknown verb")
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		// The capture session runs at the user's pace, so the request
		// deadline comes off once the verb is parsed.
		_ = c.SetDeadline(time.Time{})
		log.Printf("singleinstance: %s request from %s", requestName(req), remote)
		select {
		case s.incoming <- &tcpConn{c: c, r: req, w: bw, br: br}:
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func requestName(r Request) string {
	switch {
	case r.Kind == KindShow:
		return "SHOW"
	case r.OutputToStdout:
		return "STDOUT"
	default:
		return "CLIPBOARD"
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	return nil
}

type tcpConn struct {
	c  net.Conn
	r  Request
	w  *bufio.Writer
	br *bufio.Reader
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(successLine); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := tc.w.WriteString(text); err != nil {
			return err
		}
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorLine + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
