// Package sseframe reassembles an upstream Server-Sent Events byte stream
// into discrete "data:" frames, independent of how the underlying transport
// chunks the bytes across Read calls. It is the mirror image of the
// teacher's proxy.SSEWriter (internal/proxy/sse.go): where that type frames
// outgoing bytes onto the wire, this package unframes incoming bytes off of
// it.
package sseframe
