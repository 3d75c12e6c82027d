// ABOUTME: Package output provides playback device backends
// ABOUTME: Common byte-oriented sink interface over oto and malgo
package output
