// Package ws owns the lifecycle of one WebSocket-connected client.
//
// A Session attaches itself to the registry, announces the assigned id to
// the peer as its first text frame, and then serves the connection:
//   - heartbeat pings every 5s, terminating a peer silent for 10s
//   - inbound text frames echoed back verbatim
//   - pushed payloads (registry prompts) written out as text frames
//
// The registry only ever sees the Session through its Deliver method; all
// WebSocket framing stays inside this package.
package ws
