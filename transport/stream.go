package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
)

// maxFrameLen bounds a single request/response frame; a PushEvents batch of
// reasonable size fits comfortably under this, and it keeps a misbehaving
// peer from making a reader allocate an unbounded buffer.
const maxFrameLen = 32 << 20 // 32 MiB

// writeFrame writes a 4-byte big-endian length prefix followed by data.
func writeFrame(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFrame reads one length-prefixed frame.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, fmt.Errorf("transport: frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Request opens a new stream to peerID, sends req, and waits for the
// matching Response, bounded by RequestTimeout (§4.9).
func (t *Host) Request(ctx context.Context, peerID peer.ID, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	s, err := t.h.NewStream(ctx, peerID, ProtocolID)
	if err != nil {
		return Response{}, fmt.Errorf("transport: opening stream to %s: %w", peerID, err)
	}
	defer s.Close()

	if deadline, ok := ctx.Deadline(); ok {
		s.SetDeadline(deadline)
	}

	data, err := EncodeRequest(req)
	if err != nil {
		return Response{}, err
	}
	if err := writeFrame(s, data); err != nil {
		return Response{}, fmt.Errorf("transport: writing request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		return Response{}, fmt.Errorf("transport: closing write side: %w", err)
	}

	respData, err := readFrame(s)
	if err != nil {
		return Response{}, fmt.Errorf("transport: reading response: %w", err)
	}
	return DecodeResponse(respData)
}

// handleStream is the libp2p stream handler registered for ProtocolID: it
// reads one framed Request, invokes the handler, and writes back one framed
// Response.
func (t *Host) handleStream(s network.Stream) {
	defer s.Close()

	s.SetDeadline(time.Now().Add(RequestTimeout))

	data, err := readFrame(s)
	if err != nil {
		t.log.WithFields(logrus.Fields{"peer": s.Conn().RemotePeer(), "error": err}).Debug("reading inbound request frame")
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		writeFrame(s, mustEncodeResponse(ErrorResponse("malformed request")))
		return
	}

	resp := t.handler(s.Conn().RemotePeer(), req)
	respData, err := EncodeResponse(resp)
	if err != nil {
		t.log.WithField("error", err).Warn("encoding response")
		return
	}
	if err := writeFrame(s, respData); err != nil {
		t.log.WithFields(logrus.Fields{"peer": s.Conn().RemotePeer(), "error": err}).Debug("writing response frame")
	}
}

func mustEncodeResponse(resp Response) []byte {
	data, err := EncodeResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
