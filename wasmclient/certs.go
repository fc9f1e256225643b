//go:build js && wasm

package wasmclient

import (
	_ "embed"
)

// embeddedRoots carries a root-CA bundle alongside the compiled bundle so a
// browser-hosted client never depends on the host filesystem for trust
// material. The browser's own fetch()/WebSocket implementation validates
// TLS itself; this pool exists for the rare embedding (a wasm runtime
// outside a browser sandbox) that hands control of certificate validation
// back to Go.
//
//go:embed certs/roots.pem
var embeddedRoots []byte

// EmbeddedRootCAs returns the PEM-encoded root bundle shipped in the wasm
// binary.
func EmbeddedRootCAs() []byte {
	return embeddedRoots
}
