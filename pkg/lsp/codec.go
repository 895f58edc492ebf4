package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// ErrMissingContentLength is returned when a message's header block has
	// no Content-Length header.
	ErrMissingContentLength = errors.New("missing Content-Length header")

	// ErrInvalidBody is returned when a message body is not valid UTF-8.
	ErrInvalidBody = errors.New("message body is not valid UTF-8")
)

// ReadMessage reads one framed message: header lines terminated by a blank
// line, then exactly Content-Length body bytes. Any I/O error while reading
// headers, including EOF, is returned as-is so callers can treat it as a
// closed stream.
func ReadMessage(r *bufio.Reader) ([]byte, error) {
	contentLength := -1

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read headers: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if rest, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			contentLength, err = strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength < 0 {
		return nil, ErrMissingContentLength
	}

	body := make([]byte, contentLength)

	_, err := io.ReadFull(r, body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if !utf8.Valid(body) {
		return nil, ErrInvalidBody
	}

	return body, nil
}

// WriteMessage writes one framed message to w.
func WriteMessage(w io.Writer, body []byte) error {
	_, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(body))
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	_, err = w.Write(body)
	if err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// SyncWriter serializes framed writes to one stream. The proxy main loop and
// the backend notification relays share it.
type SyncWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

// Write writes one framed message under the lock.
func (sw *SyncWriter) Write(body []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	err := WriteMessage(sw.w, body)
	if err != nil {
		return err
	}

	if f, ok := sw.w.(interface{ Flush() error }); ok {
		err = f.Flush()
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}

	return nil
}
