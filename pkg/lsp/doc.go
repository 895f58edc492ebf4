// Package lsp multiplexes one editor-facing language server connection
// across multiple formatter backends.
//
// The editor speaks to a single [Proxy]. The proxy routes each document
// message to a backend chosen by the file's profile resolution, spawning
// backends lazily and performing the initialize handshake on the editor's
// behalf. Lifecycle messages are broadcast to every backend.
package lsp
