package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryRunOnce(ctx context.Context, outputToStdout bool) (bool, string, error) {
	verb := verbClipboard
	if outputToStdout {
		verb = verbStdout
	}
	return c.delegate(ctx, verb)
}

func (c *tcpClient) TryShow(ctx context.Context) (bool, error) {
	delegated, _, err := c.delegate(ctx, verbShow)
	return delegated, err
}

// delegate scans the configured range for a resident and hands it one
// verb line, returning the response body.
func (c *tcpClient) delegate(ctx context.Context, verb string) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, deadline) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		w := bufio.NewWriter(conn)
		if _, err := w.WriteString(verb); err != nil {
			conn.Close()
			return true, "", err
		}
		if err := w.Flush(); err != nil {
			conn.Close()
			return true, "", err
		}
		br := bufio.NewReader(conn)
		status, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return true, "", err
		}
		switch status {
		case successLine:
			b, _ := io.ReadAll(br)
			conn.Close()
			return true, string(b), nil
		case errorLine:
			msg, _ := io.ReadAll(br)
			conn.Close()
			return true, "", errors.New(string(msg))
		}
		conn.Close()
		return true, "", fmt.Errorf("unexpected response %q", strings.TrimSpace(status))
	}
	return false, "", nil
}
