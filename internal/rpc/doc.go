// Package rpc is the mutually authenticated request/response transport used
// between relay hops.
//
// Each call is framed on a pooled TLS connection as a msgpack request frame
// (method, headers, body) answered by a response frame (status code, message,
// body). Servers require and verify a client certificate signed by the shared
// CA before reading any frame; a failed handshake closes that connection and
// no handler runs.
//
// Clients never retry. Network, TLS and deadline failures surface as
// *UnavailableError; handler rejections surface as *Status.
package rpc
