package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// backendQueueSize bounds each backend's decoded message queue.
const backendQueueSize = 32

var (
	// ErrBackendTimeout is returned when a backend produces no response
	// within the read timeout.
	ErrBackendTimeout = errors.New("backend read timeout")

	// ErrBackendClosed is returned when a backend's output stream ended.
	ErrBackendClosed = errors.New("backend closed")

	// ErrBackendNotFound is returned when no backend is registered for a
	// config path.
	ErrBackendNotFound = errors.New("backend not found")
)

// Backend is one running formatter process in language server mode, bound to
// one effective config. A dedicated goroutine drains its output stream onto
// a bounded ordered queue.
type Backend struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	messages chan []byte
}

// SpawnBackend starts `<bin> lsp --config <configPath>` and begins draining
// its output.
func SpawnBackend(bin, configPath string) (*Backend, error) {
	cmd := exec.Command(bin, "lsp", "--config", configPath)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdout: %w", err)
	}

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("spawn %s lsp --config %s: %w", bin, configPath, err)
	}

	b := NewBackend(stdin, stdout)
	b.cmd = cmd

	return b, nil
}

// NewBackend wraps an already connected message stream. Useful for
// in-process backends in tests; real processes go through [SpawnBackend].
func NewBackend(stdin io.WriteCloser, stdout io.Reader) *Backend {
	b := &Backend{
		stdin:    stdin,
		messages: make(chan []byte, backendQueueSize),
	}

	go b.drain(stdout)

	return b
}

// drain reads framed messages until the stream closes, preserving arrival
// order on the queue.
func (b *Backend) drain(stdout io.Reader) {
	defer close(b.messages)

	r := bufio.NewReader(stdout)

	for {
		msg, err := ReadMessage(r)
		if err != nil {
			return
		}

		b.messages <- msg
	}
}

// Send writes one framed message to the backend's input.
func (b *Backend) Send(body []byte) error {
	err := WriteMessage(b.stdin, body)
	if err != nil {
		return fmt.Errorf("send to backend: %w", err)
	}

	return nil
}

// Receive waits up to timeout for the backend's next identifier-bearing
// message. Notifications that arrive first are handed to notify so
// asynchronous pushes (diagnostics) are never dropped.
func (b *Backend) Receive(timeout time.Duration, notify func(body []byte)) ([]byte, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case msg, ok := <-b.messages:
			if !ok {
				return nil, ErrBackendClosed
			}

			m, err := ParseMessage(msg)
			if err != nil {
				slog.Debug("discarding unparseable backend message", slog.Any("error", err))

				continue
			}

			if m.IsRequest() {
				// Identifier present: this is the correlated response.
				return msg, nil
			}

			if notify != nil {
				notify(msg)
			}

		case <-deadline.C:
			return nil, ErrBackendTimeout
		}
	}
}

// Wait blocks until the backend process exits.
func (b *Backend) Wait() error {
	if b.cmd == nil {
		return nil
	}

	err := b.cmd.Wait()
	if err != nil {
		return fmt.Errorf("backend exit: %w", err)
	}

	return nil
}

// Registry maps effective config paths to running backends. The lock guards
// lookups and inserts only; it is never held across I/O.
type Registry struct {
	backends map[string]*Backend
	order    []string
	mu       sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{backends: map[string]*Backend{}}
}

// Get returns the backend for configPath, if any.
func (r *Registry) Get(configPath string) (*Backend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backends[configPath]

	return b, ok
}

// Put registers a backend under configPath.
func (r *Registry) Put(configPath string, b *Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.backends[configPath]; !ok {
		r.order = append(r.order, configPath)
	}

	r.backends[configPath] = b
}

// Paths returns the registered config paths in insertion order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, len(r.order))
	copy(paths, r.order)

	return paths
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.backends)
}
