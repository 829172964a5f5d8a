// Package engineio implements the small subset of the Engine.IO v4 / Socket.IO
// wire format that the bridge needs to talk to an upstream AIS unit.
//
// It covers three things:
//   - parsing the open packet returned by the long-polling handshake
//   - building the polling and websocket endpoint URLs
//   - classifying text frames received once the websocket transport is up
//
// Nothing in this package performs I/O. Classification returns the reply a
// frame requires (if any) and leaves it to the caller to write it back on the
// connection the frame arrived on.
package engineio
