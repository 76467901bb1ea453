package rsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	packetStart   = '$'
	packetEnd     = '#'
	packetAck     = '+'
	packetNak     = '-'
	packetEscape  = '}'
	packetRunLen  = '*'
	interruptByte = 0x03

	escapeXor = 0x20

	// runLenBias is subtracted from the repeat character per the RSP
	// run-length encoding ("n-29 repeats of the previous character").
	runLenBias = 29

	// maxPayload bounds a single decoded payload. Matches the PacketSize
	// the server advertises, with slack for expansion.
	maxPayload = 16 * 1024
)

// ErrInterrupted is returned by ReadPacket when the client sends the
// out-of-band interrupt byte (a bare 0x03, what GDB sends for Ctrl-C).
var ErrInterrupted = errors.New("client interrupt")

// Conn frames RSP packets over a byte stream. It handles checksums,
// acknowledgements (including retransmission on a client nak), the
// escape encoding, and inbound run-length expansion.
//
// Conn is not safe for concurrent use; the protocol itself is strictly
// request/reply over a single stream.
type Conn struct {
	br        *bufio.Reader
	w         io.Writer
	lastFrame []byte
}

// NewConn wraps a byte stream in an RSP packet framer.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{
		br: bufio.NewReader(rw),
		w:  rw,
	}
}

// ReadPacket reads the next well-formed packet and returns its decoded
// payload. It acknowledges good packets with '+', answers a bad checksum
// with '-' and keeps reading, retransmits the previous reply when the
// client naks it, and swallows stray acks. A bare interrupt byte yields
// ErrInterrupted.
func (c *Conn) ReadPacket() ([]byte, error) {
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading packet start: %w", err)
		}

		switch b {
		case packetAck:
			continue
		case packetNak:
			if err := c.retransmit(); err != nil {
				return nil, err
			}

			continue
		case interruptByte:
			return nil, ErrInterrupted
		case packetStart:
			// Fall through to the framed read below.
		default:
			// Noise between packets; GDB clients may emit stray bytes
			// when a session is torn down mid-stream.
			continue
		}

		raw, sum, err := c.readFrame()
		if err != nil {
			return nil, err
		}

		if checksum(raw) != sum {
			if _, err := c.w.Write([]byte{packetNak}); err != nil {
				return nil, fmt.Errorf("sending nak: %w", err)
			}

			continue
		}

		if _, err := c.w.Write([]byte{packetAck}); err != nil {
			return nil, fmt.Errorf("sending ack: %w", err)
		}

		return expand(raw)
	}
}

// readFrame consumes payload bytes up to '#' plus the two checksum digits.
func (c *Conn) readFrame() (raw []byte, sum byte, err error) {
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			return nil, 0, fmt.Errorf("reading packet body: %w", err)
		}

		if b == packetEnd {
			break
		}

		if len(raw) >= maxPayload {
			return nil, 0, fmt.Errorf("%w: payload exceeds %d bytes", ErrMalformed, maxPayload)
		}

		raw = append(raw, b)
	}

	var digits [2]byte
	if _, err := io.ReadFull(c.br, digits[:]); err != nil {
		return nil, 0, fmt.Errorf("reading checksum: %w", err)
	}

	decoded, err := decodeHex(digits[:])
	if err != nil {
		return nil, 0, err
	}

	return raw, decoded[0], nil
}

// WritePacket escapes and frames payload, remembers the frame for
// retransmission, and sends it. Acknowledgements are consumed lazily by
// the next ReadPacket call rather than awaited here.
func (c *Conn) WritePacket(payload []byte) error {
	escaped := escape(payload)

	frame := make([]byte, 0, len(escaped)+4)
	frame = append(frame, packetStart)
	frame = append(frame, escaped...)
	frame = append(frame, packetEnd)
	frame = append(frame, encodeHex([]byte{checksum(escaped)})...)

	c.lastFrame = frame

	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}

	return nil
}

func (c *Conn) retransmit() error {
	if c.lastFrame == nil {
		return nil
	}

	if _, err := c.w.Write(c.lastFrame); err != nil {
		return fmt.Errorf("retransmitting packet: %w", err)
	}

	return nil
}

// checksum is the mod-256 sum of the transmitted payload bytes, i.e. the
// escaped form.
func checksum(raw []byte) byte {
	var sum byte
	for _, b := range raw {
		sum += b
	}

	return sum
}

// escape encodes '#', '$', '}' and '*' as '}' followed by the byte XOR 0x20.
func escape(payload []byte) []byte {
	out := make([]byte, 0, len(payload))

	for _, b := range payload {
		switch b {
		case packetStart, packetEnd, packetEscape, packetRunLen:
			out = append(out, packetEscape, b^escapeXor)
		default:
			out = append(out, b)
		}
	}

	return out
}

// expand reverses the escape encoding and applies inbound run-length
// expansion: "X*N" repeats X another N-29 times.
func expand(raw []byte) ([]byte, error) {
	out := make([]byte, 0, len(raw))

	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case packetEscape:
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("%w: dangling escape", ErrMalformed)
			}

			i++
			out = append(out, raw[i]^escapeXor)
		case packetRunLen:
			if len(out) == 0 || i+1 >= len(raw) {
				return nil, fmt.Errorf("%w: dangling run-length marker", ErrMalformed)
			}

			i++

			repeat := int(raw[i]) - runLenBias
			if repeat < 0 {
				return nil, fmt.Errorf("%w: run-length count %d", ErrMalformed, repeat)
			}

			if len(out)+repeat > maxPayload {
				return nil, fmt.Errorf("%w: run-length expansion exceeds %d bytes", ErrMalformed, maxPayload)
			}

			last := out[len(out)-1]
			for j := 0; j < repeat; j++ {
				out = append(out, last)
			}
		default:
			out = append(out, raw[i])
		}
	}

	return out, nil
}
