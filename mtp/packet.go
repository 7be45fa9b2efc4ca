package mtp

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// EndpointBufferSize is the size of each of the two double-buffer slots
// used when streaming an object to or from the host, matching
// original_source/src/usb.hpp's endpoint_buffer_size.
const EndpointBufferSize = 0x400000

// NumBuffers is the number of overlapped transfer slots (usb.hpp's
// num_buffers): while one buffer is in flight over USB, the other is
// being filled from (or drained to) disk.
const NumBuffers = 2

// ReadCommand parses a Command packet header and its parameters from r.
func ReadCommand(r io.Reader) (CommandPacket, error) {
	var cp CommandPacket
	if err := binary.Read(r, byteOrder, &cp.Header); err != nil {
		return cp, err
	}
	if cp.Header.Type != uint16(PT_Command) {
		return cp, fmt.Errorf("mtp: expected Command packet, got type %d", cp.Header.Type)
	}
	n := (int(cp.Header.Length) - PacketHeaderLen) / 4
	if n < 0 || n > MaxParams {
		return cp, fmt.Errorf("mtp: command packet has invalid param count %d", n)
	}
	for i := 0; i < n; i++ {
		if err := binary.Read(r, byteOrder, &cp.Params[i]); err != nil {
			return cp, err
		}
	}
	cp.NParam = n
	return cp, nil
}

// WriteResponse serializes a Response packet with the given code,
// transaction ID and parameters.
func WriteResponse(w io.Writer, code ResponseCode, transactionID uint32, params ...uint32) error {
	if len(params) > MaxParams {
		return fmt.Errorf("mtp: too many response params (%d)", len(params))
	}
	hdr := PacketHeader{
		Length:        uint32(PacketHeaderLen + 4*len(params)),
		Type:          uint16(PT_Response),
		Code:          uint16(code),
		TransactionID: transactionID,
	}
	if err := binary.Write(w, byteOrder, &hdr); err != nil {
		return err
	}
	for _, p := range params {
		if err := binary.Write(w, byteOrder, p); err != nil {
			return err
		}
	}
	return nil
}

// WriteDataHeader writes a Data packet header whose payload of payloadLen
// bytes the caller streams immediately afterwards.
func WriteDataHeader(w io.Writer, code OperationCode, transactionID uint32, payloadLen uint32) error {
	hdr := PacketHeader{
		Length:        PacketHeaderLen + payloadLen,
		Type:          uint16(PT_Data),
		Code:          uint16(code),
		TransactionID: transactionID,
	}
	return binary.Write(w, byteOrder, &hdr)
}

// ReadDataHeader reads and validates a Data packet header, returning the
// payload length that follows.
func ReadDataHeader(r io.Reader, wantCode OperationCode, wantTransactionID uint32) (uint32, error) {
	var hdr PacketHeader
	if err := binary.Read(r, byteOrder, &hdr); err != nil {
		return 0, err
	}
	if hdr.Type != uint16(PT_Data) {
		return 0, fmt.Errorf("mtp: expected Data packet, got type %d", hdr.Type)
	}
	if hdr.Code != uint16(wantCode) || hdr.TransactionID != wantTransactionID {
		return 0, SyncError(fmt.Sprintf("mtp: data packet mismatch: code=%#x tid=%d, want code=%#x tid=%d",
			hdr.Code, hdr.TransactionID, wantCode, wantTransactionID))
	}
	if hdr.Length < PacketHeaderLen {
		return 0, fmt.Errorf("mtp: data packet length underflow")
	}
	return hdr.Length - PacketHeaderLen, nil
}

// StreamToHost sends size bytes read from src as one Data packet, in
// EndpointBufferSize chunks, overlapping the disk read for chunk N+1 with
// the USB write of chunk N via a bounded channel — the Go equivalent of
// original_source/src/mtp_packet.cpp's stream_from_file double buffer.
// A short read from src ends the transfer early and is not an error: the
// actual byte count sent is returned so callers can detect a short
// transfer (spec.md's Incomplete_Transfer case).
func StreamToHost(w io.Writer, src io.Reader, size int64) (int64, error) {
	if size == 0 {
		return 0, nil
	}

	type chunk struct {
		buf []byte
		n   int
	}
	chunks := make(chan chunk, NumBuffers-1)
	g := new(errgroup.Group)

	g.Go(func() error {
		defer close(chunks)
		remaining := size
		for remaining > 0 {
			bufSize := int64(EndpointBufferSize)
			if remaining < bufSize {
				bufSize = remaining
			}
			buf := make([]byte, bufSize)
			n, err := io.ReadFull(src, buf)
			if n > 0 {
				chunks <- chunk{buf: buf, n: n}
			}
			remaining -= int64(n)
			if err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil
				}
				return err
			}
		}
		return nil
	})

	var sent int64
	g.Go(func() error {
		for c := range chunks {
			n, err := w.Write(c.buf[:c.n])
			sent += int64(n)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return sent, err
	}
	return sent, nil
}

// StreamFromHost receives size bytes from r and writes them to dst,
// overlapping the USB read for chunk N+1 with the disk write of chunk N —
// the Go equivalent of stream_to_file. Returns the number of bytes
// actually written.
func StreamFromHost(dst io.Writer, r io.Reader, size int64) (int64, error) {
	if size == 0 {
		return 0, nil
	}

	type chunk struct {
		buf []byte
		n   int
	}
	chunks := make(chan chunk, NumBuffers-1)
	g := new(errgroup.Group)
	br := bufio.NewReaderSize(r, EndpointBufferSize)

	g.Go(func() error {
		defer close(chunks)
		remaining := size
		for remaining > 0 {
			bufSize := int64(EndpointBufferSize)
			if remaining < bufSize {
				bufSize = remaining
			}
			buf := make([]byte, bufSize)
			n, err := io.ReadFull(br, buf)
			if n > 0 {
				chunks <- chunk{buf: buf, n: n}
			}
			remaining -= int64(n)
			if err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					return nil
				}
				return err
			}
		}
		return nil
	})

	var written int64
	g.Go(func() error {
		for c := range chunks {
			n, err := dst.Write(c.buf[:c.n])
			written += int64(n)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return written, err
	}
	return written, nil
}
