// ABOUTME: Package bridge implements the duplex PCM streaming engines
// ABOUTME: Generic supervised sessions with direction-specific policies
//
// Package bridge contains the connection/reconnection state machine that
// keeps a long-lived TCP audio session alive. One generic Engine supervises
// a sequence of Sessions; the playback and capture pipelines instantiate it
// with direction-specific session procedures and retry policies. The two
// pipelines run on independent workers, share no state, and report to the
// outside world only through an asynchronous status sink.
package bridge
