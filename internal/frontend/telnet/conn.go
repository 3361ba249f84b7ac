package telnet

import (
	"bufio"
	"bytes"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

// Telnet IAC (Interpret As Command) constants per RFC 854.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Sub-negotiation Begin
	SE   byte = 240 // Sub-negotiation End
	NOP  byte = 241
	GA   byte = 249 // Go Ahead

	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
	OptLinemode        byte = 34
)

// MaxLineLength bounds a single input line. Longer lines are rejected.
const MaxLineLength = 512

// ErrLineTooLong is returned by ReadLine when a line exceeds MaxLineLength.
// The rest of the offending line is discarded.
var ErrLineTooLong = errors.New("telnet: input line too long")

// Conn wraps a TCP connection with Telnet protocol handling.
// It filters IAC sequences from input and provides line-based reading.
// Writes are serialized; reads must come from a single goroutine.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection with Telnet protocol handling.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate asks the client to suppress go-ahead.
//
// Postcondition: Negotiation bytes are written to the connection.
func (c *Conn) Negotiate() error {
	return c.Write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine reads a single line of input, filtering Telnet IAC sequences and
// control characters. The returned line has no trailing \r\n.
//
// Postcondition: Returns the next line of text input, or an error (including
// io.EOF and ErrLineTooLong).
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line bytes.Buffer
	overflow := false
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return line.String(), err
		}

		if b == IAC {
			if err := c.skipCommand(); err != nil {
				return line.String(), err
			}
			continue
		}
		if b == '\n' {
			break
		}
		if b == '\r' {
			if next, err := c.reader.Peek(1); err == nil && next[0] == '\n' {
				_, _ = c.reader.ReadByte()
			}
			break
		}
		if b < 32 && b != '\t' {
			continue
		}
		if line.Len() >= MaxLineLength {
			overflow = true
			continue
		}
		line.WriteByte(b)
	}

	if overflow {
		return "", ErrLineTooLong
	}
	return line.String(), nil
}

// skipCommand consumes the remainder of an IAC sequence whose leading IAC
// byte has already been read.
func (c *Conn) skipCommand() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}

	switch cmd {
	case WILL, WONT, DO, DONT:
		_, err := c.reader.ReadByte()
		return err
	case SB:
		for {
			b, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if b != IAC {
				continue
			}
			next, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if next == SE {
				return nil
			}
		}
	}
	// NOP, GA, escaped IAC and the remaining commands carry no payload.
	return nil
}

// WriteLine sends a line of text followed by \r\n to the client.
//
// Precondition: text should not contain trailing newline characters.
// Postcondition: text + \r\n is written to the connection.
func (c *Conn) WriteLine(text string) error {
	return c.Write([]byte(text + "\r\n"))
}

// WriteLines sends each line followed by \r\n in a single write.
func (c *Conn) WriteLines(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	return c.Write([]byte(strings.Join(lines, "\r\n") + "\r\n"))
}

// WritePrompt sends a prompt string without a trailing newline.
//
// Postcondition: The prompt text is written to the connection.
func (c *Conn) WritePrompt(prompt string) error {
	return c.Write([]byte(prompt))
}

// Write sends raw bytes to the client.
//
// Postcondition: The data is written to the connection.
func (c *Conn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the underlying TCP connection.
//
// Postcondition: The connection is closed; a blocked ReadLine returns an error.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// FilterIAC removes Telnet IAC sequences from raw input bytes.
//
// Postcondition: Returns input with all IAC sequences removed and escaped
// IAC IAC pairs collapsed to a single 0xFF.
func FilterIAC(input []byte) []byte {
	result := make([]byte, 0, len(input))
	i := 0
	for i < len(input) {
		if input[i] == IAC && i+1 < len(input) {
			switch input[i+1] {
			case WILL, WONT, DO, DONT:
				i += 3
				continue
			case SB:
				// An unterminated sub-negotiation swallows the rest of the input.
				end := len(input)
				for j := i + 2; j < len(input)-1; j++ {
					if input[j] == IAC && input[j+1] == SE {
						end = j + 2
						break
					}
				}
				i = end
				continue
			case IAC:
				result = append(result, IAC)
				i += 2
				continue
			default:
				i += 2
				continue
			}
		}
		result = append(result, input[i])
		i++
	}
	return result
}
