package main

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte(`{"tag":"heartbeat"}`)
	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer

	assert.ErrorIs(t, writeFrame(&buf, nil), ErrBadFrameLength)
	assert.Zero(t, buf.Len())
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})

	_, err := readFrame(buf)
	assert.ErrorIs(t, err, ErrBadFrameLength)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], maxFrameSize+1)

	_, err := readFrame(bytes.NewBuffer(prefix[:]))
	assert.ErrorIs(t, err, ErrBadFrameLength)
}

func TestReadFrameTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	// Drop the last payload byte: the declared length can no longer be
	// satisfied.
	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-1])

	_, err := readFrame(truncated)
	assert.Error(t, err)
}

func TestTCPWireEnvelopeRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sent := envelopeOf(TagPublicMessage, "hello")

	errCh := make(chan error, 1)
	go func() {
		errCh <- newTCPWire(client).WriteEnvelope(sent)
	}()

	got, err := newTCPWire(server).ReadEnvelope()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, sent.Tag, got.Tag)

	var text string
	require.NoError(t, got.decode(&text))
	assert.Equal(t, "hello", text)
}

func TestTCPWireGarbagePayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_ = writeFrame(client, []byte("not json"))
	}()

	_, err := newTCPWire(server).ReadEnvelope()
	assert.Error(t, err)
}
