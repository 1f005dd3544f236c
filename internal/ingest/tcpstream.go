package ingest

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"emgstream/internal/config"
)

// StartTCPStream accepts wireless-link relay connections delivering
// length-prefixed binary frames: a uvarint byte count followed by the
// frame payload. Frames are forwarded in arrival order per connection.
func StartTCPStream(ctx context.Context, cfg *config.Manager, out chan<- []byte, logger *slog.Logger) {
	current := cfg.Get().Ingest
	if !current.TCPStream.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", current.TCPStream.Addr)
	}
	ln, err := net.Listen("tcp", current.TCPStream.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp stream listen error", "err", err)
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			go handleTCPStreamConn(ctx, conn, current.MaxFrameBytes, out, logger)
		}
	}()
}

func handleTCPStreamConn(ctx context.Context, conn net.Conn, maxFrameBytes int, out chan<- []byte, logger *slog.Logger) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		frame, err := ReadFrame(r, maxFrameBytes)
		if err != nil {
			if err != io.EOF && logger != nil {
				logger.Warn("tcp stream read error", "err", err)
			}
			return
		}
		SendFrame(ctx, out, frame, logger)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// ReadFrame reads one uvarint-length-prefixed frame. The returned slice is
// freshly allocated; callers may retain it.
func ReadFrame(r *bufio.Reader, maxFrameBytes int) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if maxFrameBytes > 0 && n > uint64(maxFrameBytes) {
		return nil, fmt.Errorf("frame length %d exceeds limit %d", n, maxFrameBytes)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// WriteFrame is the inverse of ReadFrame, used by relay clients and tests.
func WriteFrame(w io.Writer, frame []byte) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(frame)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}
