package lsp_test

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksoul/dprintx/pkg/lsp"
)

// pipeBackend returns a backend plus the ends the test drives: w feeds the
// backend's output stream, r exposes what the proxy side sent to it.
func pipeBackend(t *testing.T) (b *lsp.Backend, out *io.PipeWriter, in *io.PipeReader) {
	t.Helper()

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	t.Cleanup(func() {
		_ = stdinW.Close()
		_ = stdoutW.Close()
	})

	return lsp.NewBackend(stdinW, stdoutR), stdoutW, stdinR
}

func TestBackend_Receive(t *testing.T) {
	t.Parallel()

	t.Run("response returned", func(t *testing.T) {
		t.Parallel()

		b, out, _ := pipeBackend(t)

		go func() {
			_ = lsp.WriteMessage(out, []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
		}()

		resp, err := b.Receive(time.Second, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, string(resp))
	})

	t.Run("notifications relayed first", func(t *testing.T) {
		t.Parallel()

		b, out, _ := pipeBackend(t)

		go func() {
			_ = lsp.WriteMessage(out, []byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{}}`))
			_ = lsp.WriteMessage(out, []byte(`{"jsonrpc":"2.0","id":7,"result":null}`))
		}()

		var notified [][]byte

		resp, err := b.Receive(time.Second, func(body []byte) {
			notified = append(notified, body)
		})
		require.NoError(t, err)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":null}`, string(resp))
		require.Len(t, notified, 1)
		assert.Contains(t, string(notified[0]), "publishDiagnostics")
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		b, _, _ := pipeBackend(t)

		t0 := time.Now()

		resp, err := b.Receive(50*time.Millisecond, nil)
		require.ErrorIs(t, err, lsp.ErrBackendTimeout)
		assert.Nil(t, resp)
		assert.Less(t, time.Since(t0), time.Second)
	})

	t.Run("closed stream", func(t *testing.T) {
		t.Parallel()

		b, out, _ := pipeBackend(t)
		require.NoError(t, out.Close())

		_, err := b.Receive(time.Second, nil)
		require.ErrorIs(t, err, lsp.ErrBackendClosed)
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := lsp.NewRegistry()

	_, ok := reg.Get("/a.json")
	assert.False(t, ok)
	assert.Zero(t, reg.Len())

	a, _, _ := pipeBackend(t)
	b, _, _ := pipeBackend(t)

	reg.Put("/a.json", a)
	reg.Put("/b.json", b)

	got, ok := reg.Get("/a.json")
	assert.True(t, ok)
	assert.Same(t, a, got)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"/a.json", "/b.json"}, reg.Paths())

	// Re-registering a path does not duplicate it in the order.
	reg.Put("/a.json", b)
	assert.Equal(t, []string{"/a.json", "/b.json"}, reg.Paths())
	assert.Equal(t, 2, reg.Len())
}
