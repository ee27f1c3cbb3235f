// Package stream moves Server-Sent Events between an upstream provider
// and a downstream client.
//
// Reader parses SSE frames from an upstream body. Pipeline forwards
// them downstream, either verbatim or through a per-request stream
// translator, flushing after every frame so the client sees tokens as
// they arrive. One frame is in flight at a time; a slow client slows
// the upstream read, which is the intended backpressure.
//
// Collect aggregates an OpenAI-shaped chunk stream into one complete
// response, for clients that asked for a non-streaming answer from a
// provider that only streams.
package stream
