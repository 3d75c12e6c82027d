// ABOUTME: Build and product identification constants
// ABOUTME: Shown in logs, the TUI, and the status endpoint
package version

const (
	// Product is the human-readable product name.
	Product = "AudioLink Bridge"

	// Manufacturer identifies the project.
	Manufacturer = "AudioLink Project"

	// Version is the semantic version of this build.
	Version = "0.3.0"
)
