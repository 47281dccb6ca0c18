// Package net implements network communication primitives for the logon protocol.
//
// This includes the envelope (a single packet read from or written to a
// client, plus the flags that steer its processing), the middleware pipelines
// envelopes pass through, and the session that owns one client connection.
package net
