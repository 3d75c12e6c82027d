// ABOUTME: Package audio provides PCM sample helpers shared by both pipelines
// ABOUTME: Frame-size math and software volume for interleaved 16-bit samples
package audio
