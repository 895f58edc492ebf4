package lsp_test

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mocksoul/dprintx/pkg/lsp"
)

func TestReadMessage(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err   error
		input string
		want  string
	}{
		"simple message": {
			input: "Content-Length: 8\r\n\r\n{\"id\":1}",
			want:  `{"id":1}`,
		},
		"bare lf header separator": {
			input: "Content-Length: 8\n\n{\"id\":2}",
			want:  `{"id":2}`,
		},
		"extra headers ignored": {
			input: "Content-Type: application/vscode-jsonrpc\r\nContent-Length: 2\r\n\r\n{}",
			want:  `{}`,
		},
		"missing content length": {
			input: "Content-Type: text\r\n\r\n{}",
			err:   lsp.ErrMissingContentLength,
		},
		"eof in headers": {
			input: "Content-Length: 2\r\n",
			err:   io.EOF,
		},
		"short body": {
			input: "Content-Length: 10\r\n\r\n{}",
			err:   io.ErrUnexpectedEOF,
		},
		"invalid utf8 body": {
			input: "Content-Length: 2\r\n\r\n\xff\xfe",
			err:   lsp.ErrInvalidBody,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := lsp.ReadMessage(bufio.NewReader(strings.NewReader(tc.input)))

			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestWriteMessage_Roundtrip(t *testing.T) {
	t.Parallel()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)

	buf := &bytes.Buffer{}
	require.NoError(t, lsp.WriteMessage(buf, body))

	assert.True(t, strings.HasPrefix(buf.String(),
		fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))))

	got, err := lsp.ReadMessage(bufio.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestSyncWriter(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	sw := lsp.NewSyncWriter(buf)

	require.NoError(t, sw.Write([]byte(`{"a":1}`)))
	require.NoError(t, sw.Write([]byte(`{"b":2}`)))

	r := bufio.NewReader(buf)

	first, err := lsp.ReadMessage(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))

	second, err := lsp.ReadMessage(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(second))
}
