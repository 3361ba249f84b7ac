package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/pokebattle/internal/frontend/telnet"
)

// TelnetClient is a simple Telnet test client for integration testing.
// Output it returns has IAC sequences and ANSI styling removed.
type TelnetClient struct {
	conn   net.Conn
	reader *bufio.Reader
	t      *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}
	t.Cleanup(func() { conn.Close() })

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return &TelnetClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// ReadUntil reads until the cleaned output contains substr or timeout elapses.
// It returns everything read so far, cleaned.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns output containing substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	var raw []byte
	tmp := make([]byte, 1024)
	for {
		n, err := c.reader.Read(tmp)
		if n > 0 {
			raw = append(raw, tmp[:n]...)
			if out := clean(raw); strings.Contains(out, substr) {
				return out
			}
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, clean(raw), err)
		}
	}
}

// Command sends line and reads until the output contains want.
func (c *TelnetClient) Command(line, want string) string {
	c.t.Helper()
	c.Send(line)
	return c.ReadUntil(want, 5*time.Second)
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
// Postcondition: text + \r\n is written to the connection.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}

func clean(raw []byte) string {
	return telnet.StripANSI(string(telnet.FilterIAC(raw)))
}
