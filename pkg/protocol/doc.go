// ABOUTME: Package protocol implements the AudioLink wire header
// ABOUTME: One 16-byte little-endian header per connection, then raw PCM
//
// Package protocol defines the session header exchanged once per TCP
// connection. The data producer sends the header (the desktop peer on the
// playback stream, this device on the microphone stream) and the consumer
// validates it. Everything after the header is raw interleaved 16-bit PCM
// with no further framing.
package protocol
