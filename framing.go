package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// Each wire message is a 4-byte big-endian length prefix followed by that
// many bytes of JSON. A declared length of zero, or one past maxFrameSize,
// is a framing fault that kills only the offending connection.
const maxFrameSize = 1 << 20

const writeTimeout = 5 * time.Second

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 || len(payload) > maxFrameSize {
		return ErrBadFrameLength
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing frame prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}

	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("reading frame prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 || length > maxFrameSize {
		return nil, ErrBadFrameLength
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}

	return payload, nil
}

// wire abstracts one envelope-at-a-time transport so the hub treats TCP and
// WebSocket clients identically.
type wire interface {
	ReadEnvelope() (Envelope, error)
	WriteEnvelope(Envelope) error
	Close() error
	RemoteAddr() string
}

type tcpWire struct {
	conn net.Conn
	r    *bufio.Reader
}

func newTCPWire(conn net.Conn) *tcpWire {
	return &tcpWire{
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

func (t *tcpWire) ReadEnvelope() (Envelope, error) {
	payload, err := readFrame(t.r)
	if err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}

	return env, nil
}

func (t *tcpWire) WriteEnvelope(env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	return writeFrame(t.conn, payload)
}

func (t *tcpWire) Close() error {
	return t.conn.Close()
}

func (t *tcpWire) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
