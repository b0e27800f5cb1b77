// Package stream consumes the brokerage's chunked JSON streaming endpoints.
//
// A Session opens a stream through an Opener, cuts the response body into
// JSON fragments with a Parser, classifies each fragment as data, error or
// heartbeat, and hands the resulting events to a Dispatcher in arrival
// order. A watchdog declares the connection stale when neither heartbeats
// nor data arrive within Config.HeartbeatTimeout; the session then
// reconnects with exponential backoff until MaxRetries consecutive attempts
// have failed.
//
// Handler failures never reach the session: a returned error or a panic in
// the data or heartbeat slot is routed to the error slot as a *HandlerError,
// and failures of the error slot are only logged.
package stream
