// ABOUTME: Package capture provides microphone source backends
// ABOUTME: Fixed-block PCM capture over malgo/miniaudio
package capture
