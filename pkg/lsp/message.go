package lsp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message is a lazily parsed JSON-RPC envelope. Raw keeps the exact bytes
// received so relayed messages are forwarded verbatim, never re-marshaled.
type Message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	Raw []byte `json:"-"`
}

// ParseMessage decodes the envelope fields of raw.
func ParseMessage(raw []byte) (*Message, error) {
	m := &Message{}

	err := json.Unmarshal(raw, m)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	m.Raw = raw

	return m, nil
}

// IsRequest reports whether the message carries an identifier.
func (m *Message) IsRequest() bool {
	return len(m.ID) > 0 && string(m.ID) != "null"
}

// DocumentURI extracts params.textDocument.uri, if present.
func (m *Message) DocumentURI() (string, bool) {
	var params struct {
		TextDocument struct {
			URI string `json:"uri"`
		} `json:"textDocument"`
	}

	err := json.Unmarshal(m.Params, &params)
	if err != nil || params.TextDocument.URI == "" {
		return "", false
	}

	return params.TextDocument.URI, true
}

// URIToPath converts a file:// URI to a filesystem path, percent-decoding
// escaped characters. Non-file URIs are returned unchanged.
func URIToPath(uri string) string {
	path, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return uri
	}

	return percentDecode(path)
}

func percentDecode(input string) string {
	b := make([]byte, 0, len(input))

	for i := 0; i < len(input); i++ {
		if input[i] == '%' && i+2 < len(input) {
			if hi, lo, ok := hexPair(input[i+1], input[i+2]); ok {
				b = append(b, hi<<4|lo)
				i += 2

				continue
			}
		}

		b = append(b, input[i])
	}

	return string(b)
}

func hexPair(a, b byte) (byte, byte, bool) {
	hi, ok := hexVal(a)
	if !ok {
		return 0, 0, false
	}

	lo, ok := hexVal(b)
	if !ok {
		return 0, 0, false
	}

	return hi, lo, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}

	return 0, false
}
