package jsonrpc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const headerContentLength = "Content-Length"

// DefaultMaxFrameSize bounds the body a FrameReader accepts.
const DefaultMaxFrameSize = 32 << 20

// FrameReader reads Content-Length framed message bodies.
type FrameReader struct {
	r       *bufio.Reader
	maxSize int64
}

// NewFrameReader wraps r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), maxSize: DefaultMaxFrameSize}
}

// SetMaxSize changes the largest body Read accepts. Non-positive values are
// ignored.
func (f *FrameReader) SetMaxSize(n int64) {
	if n > 0 {
		f.maxSize = n
	}
}

// FrameError reports a malformed frame header. The stream stays usable; the
// next read starts at the following header block.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string {
	return "malformed frame: " + e.Reason
}

// Read returns the next message body. It returns io.EOF when the stream ends
// between frames.
func (f *FrameReader) Read() ([]byte, error) {
	var contentLength int64 = -1
	sawHeader := false
	for {
		line, err := f.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && (sawHeader || line != "") {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if !sawHeader {
				continue
			}
			break
		}
		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FrameError{Reason: fmt.Sprintf("header line %q", line)}
		}
		if strings.EqualFold(strings.TrimSpace(name), headerContentLength) {
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil || n < 0 {
				return nil, &FrameError{Reason: fmt.Sprintf("invalid Content-Length %q", value)}
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, &FrameError{Reason: "missing Content-Length header"}
	}

	if contentLength > f.maxSize {
		// Skip the body so the next read starts at a header block.
		if _, err := io.CopyN(io.Discard, f.r, contentLength); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("skipping oversized frame body: %w", err)
		}
		return nil, &FrameError{Reason: fmt.Sprintf("Content-Length %d exceeds limit %d", contentLength, f.maxSize)}
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}
	return body, nil
}

// WriteFrame writes body with its Content-Length header.
func WriteFrame(w io.Writer, body []byte) error {
	if _, err := fmt.Fprintf(w, "%s: %d\r\n\r\n", headerContentLength, len(body)); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
